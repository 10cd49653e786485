package repository

import (
	"context"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
)

// Store is the persistence boundary of the order subsystem. Find methods
// return nil, nil when the row does not exist.
type Store interface {
	// WithinTx runs fn against a Store bound to one database transaction.
	// The transaction commits when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	OrderRepository
	InventoryRepository
	CouponRepository
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	FindOrderByID(ctx context.Context, id uint64, forUpdate bool) (*domain.Order, error)
	FindOrderByPaymentID(ctx context.Context, paymentID string, forUpdate bool) (*domain.Order, error)
	// UpdateOrder writes the mutable columns when the stored version still
	// equals order.Version and bumps it, otherwise it fails with
	// domain.ErrStaleOrder.
	UpdateOrder(ctx context.Context, order *domain.Order) error
	ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
	// CountPendingPayments counts unshipped orders awaiting payment; a
	// non-nil expiresBefore narrows it to deadlines before that instant.
	CountPendingPayments(ctx context.Context, expiresBefore *time.Time) (int64, error)
	OldestPendingExpiry(ctx context.Context) (*time.Time, error)
	CountUserCouponUsage(ctx context.Context, couponID, userID uint64) (int64, error)
}

type InventoryRepository interface {
	FindProductsByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
	FindVariantsByIDs(ctx context.Context, ids []uint64) ([]domain.ProductVariant, error)
	DecrementStock(ctx context.Context, ref domain.StockRef, qty int) error
	IncrementStock(ctx context.Context, ref domain.StockRef, qty int) error
}

type CouponRepository interface {
	FindCouponByCode(ctx context.Context, code string, forUpdate bool) (*domain.Coupon, error)
	IncrementCouponUsage(ctx context.Context, id uint64) error
	// DecrementCouponUsage never takes the counter below zero.
	DecrementCouponUsage(ctx context.Context, id uint64) error
}
