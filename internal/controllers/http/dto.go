package http

import "github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"

type CreateOrderItemRequest struct {
	ProductID uint64  `json:"productId" binding:"required"`
	VariantID *uint64 `json:"variantId"`
	Quantity  int     `json:"quantity" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	Items          []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
	CouponCode     string                   `json:"couponCode"`
	CustomerMobile string                   `json:"customerMobile"`
	CustomerEmail  string                   `json:"customerEmail"`
}

type PaymentResponse struct {
	OrderID    uint64 `json:"orderId"`
	Authority  string `json:"authority"`
	PaymentURL string `json:"paymentUrl"`
	Amount     int64  `json:"amount"`
}

// RefundRequest leaves RefundAmount empty for a full refund. The customer is
// notified unless NotifyCustomer is false.
type RefundRequest struct {
	Reason         string `json:"reason" binding:"max=500"`
	RefundAmount   *int64 `json:"refundAmount"`
	NotifyCustomer *bool  `json:"notifyCustomer"`
}

type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

type ErrorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind"`
}
