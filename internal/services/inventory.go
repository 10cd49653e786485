package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/repository"

	"github.com/rs/zerolog/log"
)

// ReserveStock takes every line's quantity from its product or variant. Any
// shortage fails the whole reservation; the caller's transaction undoes the
// lines already taken.
func ReserveStock(ctx context.Context, tx repository.Store, items []domain.OrderItem) error {
	for _, item := range items {
		if err := tx.DecrementStock(ctx, item.StockRef(), item.Quantity); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return domain.Wrap(domain.KindConflict, err, fmt.Sprintf("not enough stock for %q", item.Name))
			}
			return err
		}
	}
	return nil
}

// RestoreOrderStock puts every line's quantity back. It is not idempotent:
// run it once per order, in the transaction that moves the order out of a
// reservation holding status.
func RestoreOrderStock(ctx context.Context, tx repository.Store, order *domain.Order) error {
	for _, item := range order.Items {
		if err := tx.IncrementStock(ctx, item.StockRef(), item.Quantity); err != nil {
			if errors.Is(err, domain.ErrMissingStockTarget) {
				return domain.Wrap(domain.KindIntegrity, err,
					fmt.Sprintf("order %s item %d points at product %d which no longer exists", order.OrderNumber, item.ID, item.ProductID))
			}
			return err
		}
	}
	return nil
}

// releaseReservation returns stock and coupon usage held by order. The
// status gate makes it run at most once per order.
func releaseReservation(ctx context.Context, tx repository.Store, order *domain.Order) error {
	if !order.HoldsReservation() {
		return domain.Conflict("order %s already released its reservation", order.OrderNumber)
	}
	if err := RestoreOrderStock(ctx, tx, order); err != nil {
		return err
	}
	if order.CouponID != nil {
		if err := tx.DecrementCouponUsage(ctx, *order.CouponID); err != nil {
			return err
		}
	}
	log.Ctx(ctx).Debug().Str("orderNumber", order.OrderNumber).Int("lines", len(order.Items)).Msg("reservation released")
	return nil
}
