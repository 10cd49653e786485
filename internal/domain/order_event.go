package domain

import (
	"fmt"
	"time"
)

type OrderEventType string

const (
	EventOrderCreated   OrderEventType = "order.created"
	EventOrderPaid      OrderEventType = "order.paid"
	EventOrderCancelled OrderEventType = "order.cancelled"
	EventOrderExpired   OrderEventType = "order.expired"
	EventOrderRefunded  OrderEventType = "order.refunded"
	EventOrderStatus    OrderEventType = "order.status_updated"

	// EventPaymentCapturedOnCancelled flags money the gateway captured for
	// an order that was cancelled before it could be confirmed. It needs a
	// manual refund.
	EventPaymentCapturedOnCancelled OrderEventType = "payment.captured_on_cancelled"
)

type OrderEvent struct {
	Type          OrderEventType `json:"type"`
	OrderID       uint64         `json:"orderId"`
	OrderNumber   string         `json:"orderNumber"`
	UserID        *uint64        `json:"userId,omitempty"`
	Status        OrderStatus    `json:"status"`
	PaymentStatus PaymentStatus  `json:"paymentStatus"`
	TotalAmount   int64          `json:"totalAmount"`
	PaymentRefID  string         `json:"paymentRefId,omitempty"`
	OccurredAt    time.Time      `json:"occurredAt"`
}

func NewOrderEvent(t OrderEventType, o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          t,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		PaymentRefID:  o.PaymentRefID,
		OccurredAt:    at,
	}
}

// EventKey is the message key used by the Kafka publisher.
func (e OrderEvent) EventKey() string {
	return fmt.Sprintf("order-%s-%d", e.Type, e.OrderID)
}
