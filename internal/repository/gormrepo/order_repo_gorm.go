package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var reversedStatuses = []string{
	string(domain.StatusCancelled),
	string(domain.StatusRefunded),
	string(domain.StatusPartiallyRefunded),
}

func (s *store) CreateOrder(ctx context.Context, order *domain.Order) error {
	result := s.db.WithContext(ctx).Create(order)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Str("orderNumber", order.OrderNumber).Msg("create order failed")
		return result.Error
	}
	if order.ID == 0 {
		return errors.New("failed to assign order ID")
	}
	return nil
}

func (s *store) FindOrderByID(ctx context.Context, id uint64, forUpdate bool) (*domain.Order, error) {
	return s.findOrder(ctx, forUpdate, "id = ?", id)
}

func (s *store) FindOrderByPaymentID(ctx context.Context, paymentID string, forUpdate bool) (*domain.Order, error) {
	return s.findOrder(ctx, forUpdate, "payment_id = ?", paymentID)
}

func (s *store) findOrder(ctx context.Context, forUpdate bool, query string, args ...any) (*domain.Order, error) {
	var o domain.Order
	err := s.conn(ctx, forUpdate).
		Preload("Items").
		Where(query, args...).
		Take(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

func (s *store) UpdateOrder(ctx context.Context, order *domain.Order) error {
	now := time.Now().UTC()
	values := map[string]any{
		"status":          order.Status,
		"payment_status":  order.PaymentStatus,
		"refunded_amount": order.RefundedAmount,
		"payment_id":      order.PaymentID,
		"payment_ref_id":  order.PaymentRefID,
		"payment_amount":  order.PaymentAmount,
		"refund_reason":   order.RefundReason,
		"paid_at":         order.PaidAt,
		"shipped_at":      order.ShippedAt,
		"delivered_at":    order.DeliveredAt,
		"cancelled_at":    order.CancelledAt,
		"refunded_at":     order.RefundedAt,
		"version":         order.Version + 1,
		"updated_at":      now,
	}

	result := s.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("update order %d: %w", order.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrStaleOrder
	}

	order.Version++
	order.UpdatedAt = now
	return nil
}

func (s *store) ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := s.pendingPayments(ctx).
		Where("expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list expiry candidates: %w", err)
	}
	return out, nil
}

func (s *store) CountPendingPayments(ctx context.Context, expiresBefore *time.Time) (int64, error) {
	q := s.pendingPayments(ctx)
	if expiresBefore != nil {
		q = q.Where("expires_at < ?", *expiresBefore)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count pending payments: %w", err)
	}
	return n, nil
}

func (s *store) OldestPendingExpiry(ctx context.Context) (*time.Time, error) {
	var o domain.Order
	err := s.pendingPayments(ctx).
		Select("id", "expires_at").
		Where("expires_at IS NOT NULL").
		Order("expires_at ASC").
		Take(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("oldest pending expiry: %w", err)
	}
	return o.ExpiresAt, nil
}

// pendingPayments scopes to orders whose payment deadline still matters.
func (s *store) pendingPayments(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("payment_status = ? AND shipped_at IS NULL", string(domain.PaymentPending))
}

func (s *store) CountUserCouponUsage(ctx context.Context, couponID, userID uint64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("coupon_id = ? AND user_id = ? AND status NOT IN ?", couponID, userID, reversedStatuses).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count coupon usage: %w", err)
	}
	return n, nil
}
