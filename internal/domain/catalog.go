package domain

import "time"

type Product struct {
	ID            uint64           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name          string           `json:"name" gorm:"size:255;not null"`
	SKU           string           `json:"sku" gorm:"size:64;uniqueIndex"`
	Image         string           `json:"image,omitempty" gorm:"size:500"`
	Price         int64            `json:"price" gorm:"not null"`
	CategoryID    *uint64          `json:"categoryId,omitempty" gorm:"index"`
	StockQuantity int              `json:"stockQuantity" gorm:"not null;default:0"`
	IsInStock     bool             `json:"isInStock" gorm:"not null;default:false"`
	IsActive      bool             `json:"isActive" gorm:"not null;default:true"`
	Variants      []ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID"`
	CreatedAt     time.Time        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time        `json:"updatedAt" gorm:"autoUpdateTime"`
}

type ProductVariant struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID     uint64    `json:"productId" gorm:"not null;index"`
	Name          string    `json:"name" gorm:"size:255;not null"`
	SKU           string    `json:"sku" gorm:"size:64;uniqueIndex"`
	Price         *int64    `json:"price,omitempty"`
	StockQuantity int       `json:"stockQuantity" gorm:"not null;default:0"`
	IsInStock     bool      `json:"isInStock" gorm:"not null;default:false"`
	IsActive      bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// StockRef points at the counter an order line consumes: the variant when
// one was bought, the product otherwise.
type StockRef struct {
	ProductID uint64
	VariantID *uint64
}

func (i OrderItem) StockRef() StockRef {
	return StockRef{ProductID: i.ProductID, VariantID: i.VariantID}
}

type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

type CouponScope string

const (
	ScopeAll        CouponScope = "ALL"
	ScopeCategories CouponScope = "CATEGORIES"
	ScopeProducts   CouponScope = "PRODUCTS"
)

type Coupon struct {
	ID              uint64       `json:"id" gorm:"primaryKey;autoIncrement"`
	Code            string       `json:"code" gorm:"size:64;not null;uniqueIndex"`
	DiscountType    DiscountType `json:"discountType" gorm:"size:32;not null"`
	DiscountValue   int64        `json:"discountValue" gorm:"not null"`
	MaximumDiscount *int64       `json:"maximumDiscount,omitempty"`
	MinimumAmount   *int64       `json:"minimumAmount,omitempty"`
	UsageLimit      *int         `json:"usageLimit,omitempty"`
	UsageCount      int          `json:"usageCount" gorm:"not null;default:0"`
	UserUsageLimit  *int         `json:"userUsageLimit,omitempty"`
	ValidFrom       *time.Time   `json:"validFrom,omitempty"`
	ValidUntil      *time.Time   `json:"validUntil,omitempty"`
	IsActive        bool         `json:"isActive" gorm:"not null;default:true"`
	ApplicableTo    CouponScope  `json:"applicableTo" gorm:"size:32;not null"`
	CategoryIDs     []uint64     `json:"categoryIds,omitempty" gorm:"type:text;serializer:json"`
	ProductIDs      []uint64     `json:"productIds,omitempty" gorm:"type:text;serializer:json"`
	CreatedAt       time.Time    `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt       time.Time    `json:"updatedAt" gorm:"autoUpdateTime"`
}
