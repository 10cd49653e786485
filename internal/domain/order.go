package domain

import "time"

type OrderStatus string

const (
	StatusPending           OrderStatus = "PENDING"
	StatusConfirmed         OrderStatus = "CONFIRMED"
	StatusProcessing        OrderStatus = "PROCESSING"
	StatusShipped           OrderStatus = "SHIPPED"
	StatusDelivered         OrderStatus = "DELIVERED"
	StatusCancelled         OrderStatus = "CANCELLED"
	StatusRefunded          OrderStatus = "REFUNDED"
	StatusPartiallyRefunded OrderStatus = "PARTIALLY_REFUNDED"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentPaid              PaymentStatus = "PAID"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// Order amounts are stored in the smallest currency unit.
type Order struct {
	ID             uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber    string        `json:"orderNumber" gorm:"size:32;not null;uniqueIndex"`
	UserID         *uint64       `json:"userId,omitempty" gorm:"index"`
	AccessToken    string        `json:"accessToken,omitempty" gorm:"size:64"`
	Status         OrderStatus   `json:"status" gorm:"size:32;not null;index"`
	PaymentStatus  PaymentStatus `json:"paymentStatus" gorm:"size:32;not null;index"`
	Subtotal       int64         `json:"subtotal" gorm:"not null"`
	TaxAmount      int64         `json:"taxAmount" gorm:"not null"`
	ShippingAmount int64         `json:"shippingAmount" gorm:"not null"`
	DiscountAmount int64         `json:"discountAmount" gorm:"not null"`
	TotalAmount    int64         `json:"totalAmount" gorm:"not null"`
	RefundedAmount int64         `json:"refundedAmount" gorm:"not null;default:0"`
	CouponID       *uint64       `json:"couponId,omitempty" gorm:"index"`
	PaymentID      *string       `json:"paymentId,omitempty" gorm:"size:64;uniqueIndex"`
	PaymentRefID   string        `json:"paymentRefId,omitempty" gorm:"size:64"`
	PaymentAmount  int64         `json:"paymentAmount,omitempty" gorm:"not null;default:0"`
	CustomerMobile string        `json:"customerMobile,omitempty" gorm:"size:20"`
	CustomerEmail  string        `json:"customerEmail,omitempty" gorm:"size:255"`
	RefundReason   string        `json:"refundReason,omitempty" gorm:"size:500"`
	ExpiresAt      *time.Time    `json:"expiresAt,omitempty" gorm:"index"`
	PaidAt         *time.Time    `json:"paidAt,omitempty"`
	ShippedAt      *time.Time    `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time    `json:"deliveredAt,omitempty"`
	CancelledAt    *time.Time    `json:"cancelledAt,omitempty"`
	RefundedAt     *time.Time    `json:"refundedAt,omitempty"`
	Version        uint          `json:"version" gorm:"not null;default:1"`
	Items          []OrderItem   `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time     `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt      time.Time     `json:"updatedAt" gorm:"autoUpdateTime"`
}

// OrderItem is a snapshot of the catalog at purchase time. Product and
// variant ids are kept only to return stock on reversal.
type OrderItem struct {
	ID         uint64  `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID    uint64  `json:"orderId" gorm:"not null;index"`
	ProductID  uint64  `json:"productId" gorm:"not null;index"`
	VariantID  *uint64 `json:"variantId,omitempty" gorm:"index"`
	Name       string  `json:"name" gorm:"size:255;not null"`
	SKU        string  `json:"sku" gorm:"size:64"`
	Image      string  `json:"image,omitempty" gorm:"size:500"`
	UnitPrice  int64   `json:"unitPrice" gorm:"not null"`
	Quantity   int     `json:"quantity" gorm:"not null"`
	TotalPrice int64   `json:"totalPrice" gorm:"not null"`
}

// IsExpiryCandidate reports whether the reconciler may cancel the order.
func (o *Order) IsExpiryCandidate(now time.Time) bool {
	return o.PaymentStatus == PaymentPending &&
		o.ShippedAt == nil &&
		o.ExpiresAt != nil &&
		o.ExpiresAt.Before(now)
}

// HoldsReservation reports whether stock and coupon usage taken at checkout
// are still held by this order.
func (o *Order) HoldsReservation() bool {
	switch o.Status {
	case StatusCancelled, StatusRefunded, StatusPartiallyRefunded:
		return false
	}
	return true
}

func (o *Order) CustomerID() uint64 {
	if o.UserID == nil {
		return 0
	}
	return *o.UserID
}
