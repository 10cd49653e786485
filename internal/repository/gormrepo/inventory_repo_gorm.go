package gormrepo

import (
	"context"
	"fmt"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"

	"gorm.io/gorm"
)

func (s *store) FindProductsByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return out, nil
}

func (s *store) FindVariantsByIDs(ctx context.Context, ids []uint64) ([]domain.ProductVariant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.ProductVariant
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find variants: %w", err)
	}
	return out, nil
}

// DecrementStock takes qty units in a single guarded statement so two
// checkouts can never both pass a read-then-write check.
func (s *store) DecrementStock(ctx context.Context, ref domain.StockRef, qty int) error {
	model, id := stockTarget(ref)
	result := s.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND stock_quantity >= ?", id, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if result.Error != nil {
		return fmt.Errorf("decrement stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		exists, err := s.stockTargetExists(ctx, model, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrProductNotFound
		}
		return domain.ErrInsufficientStock
	}
	return s.syncInStock(ctx, model, id)
}

func (s *store) IncrementStock(ctx context.Context, ref domain.StockRef, qty int) error {
	model, id := stockTarget(ref)
	result := s.db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	if result.Error != nil {
		return fmt.Errorf("increment stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrMissingStockTarget
	}
	return s.syncInStock(ctx, model, id)
}

func (s *store) syncInStock(ctx context.Context, model any, id uint64) error {
	err := s.db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Update("is_in_stock", gorm.Expr("stock_quantity > 0")).Error
	if err != nil {
		return fmt.Errorf("sync stock flag: %w", err)
	}
	return nil
}

func (s *store) stockTargetExists(ctx context.Context, model any, id uint64) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check stock target: %w", err)
	}
	return n > 0, nil
}

func stockTarget(ref domain.StockRef) (any, uint64) {
	if ref.VariantID != nil {
		return &domain.ProductVariant{}, *ref.VariantID
	}
	return &domain.Product{}, ref.ProductID
}
