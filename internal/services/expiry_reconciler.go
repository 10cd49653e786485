package services

import (
	"context"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/config"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/metrics"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const expiryLockKey = "expire-orders"

type ExpiryError struct {
	OrderID     uint64 `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Error       string `json:"error"`
}

// ExpirySummary reports a run; a run with errors is still a completed run.
type ExpirySummary struct {
	ExpiredCount int           `json:"expiredCount"`
	ErrorCount   int           `json:"errorCount"`
	Errors       []ExpiryError `json:"errors"`
}

type ExpiryStats struct {
	PendingCount         int64      `json:"pendingCount"`
	ExpiredAwaitingCount int64      `json:"expiredAwaitingCount"`
	ExpiringSoonCount    int64      `json:"expiringSoonCount"`
	OldestExpiresAt      *time.Time `json:"oldestExpiresAt,omitempty"`
}

type ExpiryReconciler struct {
	store     repository.Store
	locker    infra.LockerInterface
	publisher infra.EventPublisherInterface
	notifier  infra.NotifierInterface
	cfg       config.ExpiryConfig
	now       func() time.Time
}

func NewExpiryReconciler(store repository.Store, pub infra.EventPublisherInterface, notifier infra.NotifierInterface, cfg config.ExpiryConfig) *ExpiryReconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &ExpiryReconciler{
		store:     store,
		publisher: pub,
		notifier:  notifier,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetLocker makes runs exclusive across replicas.
func (r *ExpiryReconciler) SetLocker(l infra.LockerInterface) {
	r.locker = l
}

// Run cancels up to BatchSize unpaid orders whose payment window closed
// before now, one transaction per order.
func (r *ExpiryReconciler) Run(ctx context.Context, now time.Time) (*ExpirySummary, error) {
	if r.locker != nil {
		release, ok, err := r.locker.Acquire(ctx, expiryLockKey, r.cfg.LockTTL)
		if err != nil {
			return nil, domain.Wrap(domain.KindDependency, err, "acquire expiry lock")
		}
		if !ok {
			return nil, domain.ErrReconcilerBusy
		}
		defer release(context.Background())
	}

	candidates, err := r.store.ListExpiryCandidates(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	summary := &ExpirySummary{Errors: []ExpiryError{}}
	var expired []*domain.Order
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		o, err := r.expireOne(ctx, c.ID, now)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("orderNumber", c.OrderNumber).Msg("failed to expire order")
			summary.Errors = append(summary.Errors, ExpiryError{
				OrderID:     c.ID,
				OrderNumber: c.OrderNumber,
				Error:       err.Error(),
			})
			continue
		}
		if o != nil {
			expired = append(expired, o)
		}
	}
	summary.ExpiredCount = len(expired)
	summary.ErrorCount = len(summary.Errors)
	metrics.AddOrdersExpired(summary.ExpiredCount)

	for _, o := range expired {
		notifyCustomer(r.notifier, domain.NotifyOrderExpired, o, nil)
		publishAsync(r.publisher, domain.NewOrderEvent(domain.EventOrderExpired, o, now))
	}

	log.Ctx(ctx).Info().
		Int("candidates", len(candidates)).
		Int("expired", summary.ExpiredCount).
		Int("errors", summary.ErrorCount).
		Msg("expiry run finished")
	return summary, nil
}

// expireOne returns nil, nil when the order stopped being a candidate
// between listing and locking.
func (r *ExpiryReconciler) expireOne(ctx context.Context, id uint64, now time.Time) (*domain.Order, error) {
	var expired *domain.Order
	err := r.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.FindOrderByID(ctx, id, true)
		if err != nil {
			return err
		}
		if o == nil || !o.IsExpiryCandidate(now) {
			return nil
		}
		if o.Status != domain.StatusPending {
			return domain.Conflict("order is %s with an unpaid payment", o.Status)
		}
		if err := releaseReservation(ctx, tx, o); err != nil {
			return err
		}

		o.Status = domain.StatusCancelled
		o.PaymentStatus = domain.PaymentFailed
		o.CancelledAt = &now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		expired = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// Stats reports the pending-payment backlog without changing anything.
func (r *ExpiryReconciler) Stats(ctx context.Context, now time.Time) (*ExpiryStats, error) {
	stats := &ExpiryStats{}
	soon := now.Add(r.cfg.ExpiringWindow)
	var beforeSoon int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.store.CountPendingPayments(gctx, nil)
		stats.PendingCount = n
		return err
	})
	g.Go(func() error {
		n, err := r.store.CountPendingPayments(gctx, &now)
		stats.ExpiredAwaitingCount = n
		return err
	})
	g.Go(func() error {
		n, err := r.store.CountPendingPayments(gctx, &soon)
		beforeSoon = n
		return err
	})
	g.Go(func() error {
		t, err := r.store.OldestPendingExpiry(gctx)
		stats.OldestExpiresAt = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.ExpiringSoonCount = beforeSoon - stats.ExpiredAwaitingCount
	if stats.ExpiringSoonCount < 0 {
		stats.ExpiringSoonCount = 0
	}
	return stats, nil
}

// Start runs the reconciler every interval until ctx is done. A zero
// interval leaves expiry to the HTTP trigger.
func (r *ExpiryReconciler) Start(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.Run(ctx, r.now()); err != nil {
					log.Warn().Err(err).Msg("scheduled expiry run failed")
				}
			}
		}
	}()
}
