package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// FindCouponByCode matches codes case-insensitively, whatever case they were
// stored in.
func (s *store) FindCouponByCode(ctx context.Context, code string, forUpdate bool) (*domain.Coupon, error) {
	var c domain.Coupon
	err := s.conn(ctx, forUpdate).
		Where("UPPER(code) = ?", NormalizeCouponCode(code)).
		Take(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return &c, nil
}

func (s *store) IncrementCouponUsage(ctx context.Context, id uint64) error {
	result := s.db.WithContext(ctx).
		Model(&domain.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", id).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("increment coupon usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrCouponExhausted
	}
	return nil
}

func (s *store) DecrementCouponUsage(ctx context.Context, id uint64) error {
	result := s.db.WithContext(ctx).
		Model(&domain.Coupon{}).
		Where("id = ? AND usage_count > 0", id).
		Update("usage_count", gorm.Expr("usage_count - 1"))
	if result.Error != nil {
		return fmt.Errorf("decrement coupon usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		log.Ctx(ctx).Warn().Uint64("couponId", id).Msg("coupon usage already at zero or coupon missing")
	}
	return nil
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
