package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/config"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/metrics"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/repository"

	"github.com/rs/zerolog/log"
)

const callbackStatusOK = "OK"

// VerificationResult values for Status.
const (
	PaymentResultPaid   = "PAID"
	PaymentResultFailed = "FAILED"
)

type PaymentStart struct {
	OrderID    uint64 `json:"orderId"`
	Authority  string `json:"authority"`
	PaymentURL string `json:"paymentUrl"`
	Amount     int64  `json:"amount"`
}

type VerificationResult struct {
	OrderID         uint64 `json:"orderId"`
	OrderNumber     string `json:"orderNumber"`
	Status          string `json:"status"`
	RefID           string `json:"refId,omitempty"`
	AlreadyVerified bool   `json:"alreadyVerified,omitempty"`
}

type PaymentService struct {
	store     repository.Store
	gateway   infra.PaymentGatewayInterface
	publisher infra.EventPublisherInterface
	notifier  infra.NotifierInterface
	cfg       config.GatewayConfig
	now       func() time.Time
}

func NewPaymentService(store repository.Store, gw infra.PaymentGatewayInterface, pub infra.EventPublisherInterface, notifier infra.NotifierInterface, cfg config.GatewayConfig) *PaymentService {
	if cfg.AmountDivisor <= 0 {
		cfg.AmountDivisor = 1
	}
	return &PaymentService{
		store:     store,
		gateway:   gw,
		publisher: pub,
		notifier:  notifier,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GatewayAmount converts a stored total to the gateway unit, truncating.
func GatewayAmount(total, divisor int64) int64 {
	return total / divisor
}

// RequestPayment opens a gateway session and stores its authority on the
// order so the callback can find it.
func (s *PaymentService) RequestPayment(ctx context.Context, orderID uint64, actor domain.Actor) (*PaymentStart, error) {
	order, err := s.store.FindOrderByID(ctx, orderID, false)
	if err != nil {
		return nil, err
	}
	if order == nil || !actor.CanAccess(order) {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status != domain.StatusPending || order.PaymentStatus != domain.PaymentPending {
		return nil, domain.ErrNotPayable
	}
	if order.ExpiresAt != nil && !s.now().Before(*order.ExpiresAt) {
		return nil, domain.ErrOrderExpired
	}

	amount := GatewayAmount(order.TotalAmount, s.cfg.AmountDivisor)
	if amount <= 0 {
		return nil, domain.Validation("order total %d is below the gateway minimum", order.TotalAmount)
	}

	session, err := s.gateway.RequestPayment(ctx, infra.PaymentRequest{
		Amount:      amount,
		Description: fmt.Sprintf("پرداخت سفارش %s", order.OrderNumber),
		CallbackURL: s.cfg.CallbackURL,
		Mobile:      order.CustomerMobile,
		Email:       order.CustomerEmail,
		OrderNumber: order.OrderNumber,
	})
	if err != nil {
		metrics.RecordOrderOperation("payment_request", false)
		log.Ctx(ctx).Error().Err(err).Str("orderNumber", order.OrderNumber).Msg("payment request failed")
		return nil, err
	}

	// compare-and-swap on the version read above: an order cancelled or
	// expired during the gateway call is not overwritten
	authority := session.Authority
	order.PaymentID = &authority
	order.PaymentAmount = amount
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		metrics.RecordOrderOperation("payment_request", false)
		return nil, err
	}

	metrics.RecordOrderOperation("payment_request", true)
	log.Ctx(ctx).Info().Str("orderNumber", order.OrderNumber).Str("authority", authority).Int64("amount", amount).Msg("payment session opened")
	return &PaymentStart{
		OrderID:    order.ID,
		Authority:  authority,
		PaymentURL: session.PaymentURL,
		Amount:     amount,
	}, nil
}

// VerifyPayment handles the gateway callback. A non-OK status leaves the
// order pending so the expiry job reclaims its stock.
func (s *PaymentService) VerifyPayment(ctx context.Context, authority, status string) (*VerificationResult, error) {
	authority = strings.TrimSpace(authority)
	if authority == "" {
		return nil, domain.Validation("authority is required")
	}

	order, err := s.store.FindOrderByPaymentID(ctx, authority, false)
	if err != nil {
		return nil, err
	}
	if order == nil {
		metrics.RecordPaymentVerification("unknown_authority")
		return nil, domain.ErrOrderNotFound
	}
	result := &VerificationResult{OrderID: order.ID, OrderNumber: order.OrderNumber}

	if order.PaymentStatus == domain.PaymentPaid {
		metrics.RecordPaymentVerification("already_paid")
		result.Status = PaymentResultPaid
		result.RefID = order.PaymentRefID
		result.AlreadyVerified = true
		return result, nil
	}
	if !strings.EqualFold(strings.TrimSpace(status), callbackStatusOK) {
		metrics.RecordPaymentVerification("cancelled")
		log.Ctx(ctx).Info().Str("orderNumber", order.OrderNumber).Str("status", status).Msg("payment cancelled by customer or gateway")
		result.Status = PaymentResultFailed
		return result, nil
	}
	if order.Status != domain.StatusPending || order.PaymentStatus != domain.PaymentPending {
		metrics.RecordPaymentVerification("not_payable")
		return nil, domain.ErrNotPayable
	}

	expected := GatewayAmount(order.TotalAmount, s.cfg.AmountDivisor)
	if expected != order.PaymentAmount {
		metrics.RecordPaymentVerification("amount_mismatch")
		log.Ctx(ctx).Error().
			Str("orderNumber", order.OrderNumber).
			Int64("expected", expected).
			Int64("requested", order.PaymentAmount).
			Msg("payment amount does not match order total")
		return nil, domain.NewError(domain.KindIntegrity, "payment amount does not match the order total")
	}

	verification, err := s.gateway.VerifyPayment(ctx, authority, order.PaymentAmount)
	if err != nil {
		metrics.RecordPaymentVerification("gateway_error")
		log.Ctx(ctx).Error().Err(err).Str("orderNumber", order.OrderNumber).Msg("payment verification failed")
		return nil, err
	}

	var paid, captured *domain.Order
	var raced bool
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.FindOrderByPaymentID(ctx, authority, true)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrOrderNotFound
		}
		if o.PaymentStatus == domain.PaymentPaid {
			paid, raced = o, true
			return nil
		}
		if o.Status != domain.StatusPending || o.PaymentStatus != domain.PaymentPending {
			captured = o
			return domain.ErrNotPayable
		}

		now := s.now()
		o.Status = domain.StatusConfirmed
		o.PaymentStatus = domain.PaymentPaid
		o.PaidAt = &now
		o.PaymentRefID = verification.RefID
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		paid = o
		return nil
	})
	if err != nil && captured != nil {
		// cancelled or expired while the gateway was verifying
		metrics.RecordPaymentVerification("captured_on_cancelled")
		log.Ctx(ctx).Error().Err(err).
			Str("orderNumber", captured.OrderNumber).
			Str("status", string(captured.Status)).
			Str("authority", authority).
			Str("refId", verification.RefID).
			Msg("payment captured for a cancelled order, manual refund needed")
		captured.PaymentRefID = verification.RefID
		publishAsync(s.publisher, domain.NewOrderEvent(domain.EventPaymentCapturedOnCancelled, captured, s.now()))
		return nil, err
	}
	if err != nil {
		metrics.RecordPaymentVerification("store_error")
		log.Ctx(ctx).Error().Err(err).
			Str("orderNumber", order.OrderNumber).
			Str("authority", authority).
			Str("refId", verification.RefID).
			Msg("verified payment could not be recorded, manual refund needed")
		return nil, err
	}

	result.Status = PaymentResultPaid
	result.RefID = paid.PaymentRefID
	result.AlreadyVerified = verification.AlreadyVerified || raced
	if raced {
		metrics.RecordPaymentVerification("already_paid")
		return result, nil
	}

	metrics.RecordPaymentVerification("paid")

	log.Ctx(ctx).Info().Str("orderNumber", paid.OrderNumber).Str("refId", paid.PaymentRefID).Msg("order paid")
	notifyCustomer(s.notifier, domain.NotifyOrderPaid, paid, map[string]string{"refId": paid.PaymentRefID})
	publishAsync(s.publisher, domain.NewOrderEvent(domain.EventOrderPaid, paid, s.now()))
	return result, nil
}
