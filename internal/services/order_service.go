package services

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/config"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/metrics"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var mobilePattern = regexp.MustCompile(`^(\+98|0098|0)?9\d{9}$`)

type CreateOrderItem struct {
	ProductID uint64  `json:"productId"`
	VariantID *uint64 `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
}

type CreateOrderInput struct {
	Actor          domain.Actor
	Items          []CreateOrderItem
	CouponCode     string
	CustomerMobile string
	CustomerEmail  string
	IdempotencyKey string
}

type RefundInput struct {
	Reason         string
	RefundAmount   *int64
	NotifyCustomer bool
}

type OrderService struct {
	store       repository.Store
	publisher   infra.EventPublisherInterface
	notifier    infra.NotifierInterface
	idempotency infra.IdempotencyStoreInterface
	cfg         config.OrderConfig
	taxRate     decimal.Decimal
	now         func() time.Time
}

func NewOrderService(store repository.Store, pub infra.EventPublisherInterface, notifier infra.NotifierInterface, cfg config.OrderConfig) *OrderService {
	return &OrderService{
		store:     store,
		publisher: pub,
		notifier:  notifier,
		cfg:       cfg,
		taxRate:   cfg.TaxRate(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetIdempotencyStore enables Idempotency-Key handling on checkout.
func (s *OrderService) SetIdempotencyStore(store infra.IdempotencyStoreInterface) {
	s.idempotency = store
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if err := validateCreateOrder(in); err != nil {
		return nil, err
	}

	idemKey := ""
	if in.IdempotencyKey != "" && s.idempotency != nil {
		idemKey = idempotencyScope(in)
		ok, err := s.idempotency.Claim(ctx, idemKey, s.cfg.IdempotencyTTL)
		if err != nil {
			return nil, domain.Wrap(domain.KindDependency, err, "idempotency store unavailable")
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	now := s.now()
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		order, err = s.checkout(ctx, tx, in, now)
		return err
	})
	if err != nil {
		metrics.RecordOrderOperation("create", false)
		if idemKey != "" {
			if ferr := s.idempotency.Forget(ctx, idemKey); ferr != nil {
				log.Ctx(ctx).Warn().Err(ferr).Msg("failed to release idempotency key")
			}
		}
		return nil, err
	}

	metrics.RecordOrderOperation("create", true)
	log.Ctx(ctx).Info().
		Uint64("orderId", order.ID).
		Str("orderNumber", order.OrderNumber).
		Int64("total", order.TotalAmount).
		Msg("order created")

	s.publish(domain.EventOrderCreated, order)
	return order, nil
}

func (s *OrderService) checkout(ctx context.Context, tx repository.Store, in CreateOrderInput, now time.Time) (*domain.Order, error) {
	items, lines, err := s.snapshotItems(ctx, tx, in.Items)
	if err != nil {
		return nil, err
	}
	if err := ReserveStock(ctx, tx, items); err != nil {
		return nil, err
	}

	var subtotal int64
	for _, it := range items {
		subtotal += it.TotalPrice
	}

	var coupon *domain.Coupon
	var discount int64
	if code := strings.TrimSpace(in.CouponCode); code != "" {
		coupon, err = tx.FindCouponByCode(ctx, code, true)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			return nil, domain.ErrCouponNotFound
		}
		check := CouponCheck{Now: now, Subtotal: subtotal, Lines: lines, UserID: in.Actor.UserID}
		if in.Actor.UserID != nil && coupon.UserUsageLimit != nil {
			check.UserUsage, err = tx.CountUserCouponUsage(ctx, coupon.ID, *in.Actor.UserID)
			if err != nil {
				return nil, err
			}
		}
		discount, err = EvaluateCoupon(coupon, check)
		if err != nil {
			return nil, err
		}
	}

	taxable := subtotal - discount
	tax := decimal.NewFromInt(taxable).Mul(s.taxRate).Div(decimal.NewFromInt(100)).Truncate(0).IntPart()
	shipping := s.cfg.ShippingFee
	if s.cfg.FreeShippingThreshold > 0 && taxable >= s.cfg.FreeShippingThreshold {
		shipping = 0
	}

	expiresAt := now.Add(s.cfg.PaymentTTL)
	order := &domain.Order{
		OrderNumber:    newOrderNumber(now),
		UserID:         in.Actor.UserID,
		Status:         domain.StatusPending,
		PaymentStatus:  domain.PaymentPending,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingAmount: shipping,
		DiscountAmount: discount,
		TotalAmount:    taxable + tax + shipping,
		CustomerMobile: normalizeMobile(in.CustomerMobile),
		CustomerEmail:  strings.TrimSpace(in.CustomerEmail),
		ExpiresAt:      &expiresAt,
		Version:        1,
		Items:          items,
	}
	if coupon != nil {
		order.CouponID = &coupon.ID
	}
	if order.UserID == nil {
		order.AccessToken = newAccessToken()
	}

	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	if coupon != nil {
		if err := tx.IncrementCouponUsage(ctx, coupon.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// snapshotItems copies catalog data onto order lines so later catalog
// edits never change what the customer bought.
func (s *OrderService) snapshotItems(ctx context.Context, tx repository.Store, req []CreateOrderItem) ([]domain.OrderItem, []pricedLine, error) {
	var productIDs, variantIDs []uint64
	for _, it := range req {
		productIDs = append(productIDs, it.ProductID)
		if it.VariantID != nil {
			variantIDs = append(variantIDs, *it.VariantID)
		}
	}

	products, err := tx.FindProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, nil, err
	}
	variants, err := tx.FindVariantsByIDs(ctx, variantIDs)
	if err != nil {
		return nil, nil, err
	}
	productByID := make(map[uint64]domain.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}
	variantByID := make(map[uint64]domain.ProductVariant, len(variants))
	for _, v := range variants {
		variantByID[v.ID] = v
	}

	items := make([]domain.OrderItem, 0, len(req))
	lines := make([]pricedLine, 0, len(req))
	for _, it := range req {
		p, ok := productByID[it.ProductID]
		if !ok {
			return nil, nil, domain.Wrap(domain.KindNotFound, domain.ErrProductNotFound, fmt.Sprintf("product %d", it.ProductID))
		}
		if !p.IsActive {
			return nil, nil, domain.Validation("product %q is not available", p.Name)
		}

		item := domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			SKU:       p.SKU,
			Image:     p.Image,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		}
		if it.VariantID != nil {
			v, ok := variantByID[*it.VariantID]
			if !ok || v.ProductID != p.ID {
				return nil, nil, domain.Validation("variant %d does not belong to product %d", *it.VariantID, p.ID)
			}
			if !v.IsActive {
				return nil, nil, domain.Validation("variant %q is not available", v.Name)
			}
			item.VariantID = &v.ID
			item.Name = p.Name + " - " + v.Name
			if v.SKU != "" {
				item.SKU = v.SKU
			}
			if v.Price != nil {
				item.UnitPrice = *v.Price
			}
		}
		item.TotalPrice = item.UnitPrice * int64(item.Quantity)

		items = append(items, item)
		lines = append(lines, pricedLine{ProductID: p.ID, CategoryID: p.CategoryID, Total: item.TotalPrice})
	}
	return items, lines, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uint64, actor domain.Actor) (*domain.Order, error) {
	o, err := s.store.FindOrderByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if o == nil || !actor.CanAccess(o) {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// CancelOrder releases an unpaid order's reservation. Paid orders must be
// refunded instead.
func (s *OrderService) CancelOrder(ctx context.Context, id uint64, actor domain.Actor) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.FindOrderByID(ctx, id, true)
		if err != nil {
			return err
		}
		if o == nil || !actor.CanAccess(o) {
			return domain.ErrOrderNotFound
		}
		if err := o.CheckCancellable(); err != nil {
			return err
		}
		if err := releaseReservation(ctx, tx, o); err != nil {
			return err
		}

		now := s.now()
		o.Status = domain.StatusCancelled
		o.PaymentStatus = domain.PaymentFailed
		o.CancelledAt = &now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	metrics.RecordOrderOperation("cancel", err == nil)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("orderNumber", order.OrderNumber).Msg("order cancelled")
	s.notify(domain.NotifyOrderCancelled, order, nil)
	s.publish(domain.EventOrderCancelled, order)
	return order, nil
}

// UpdateStatus moves a paid order through fulfilment. Cancellation is
// delegated to CancelOrder; refunds have their own endpoint.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint64, next domain.OrderStatus) (*domain.Order, error) {
	switch {
	case !next.Valid():
		return nil, domain.Validation("unknown order status %q", next)
	case next == domain.StatusCancelled:
		return s.CancelOrder(ctx, id, domain.Actor{Role: domain.RoleAdmin})
	case next == domain.StatusRefunded || next == domain.StatusPartiallyRefunded:
		return nil, domain.Validation("use the refund endpoint to refund an order")
	case next == domain.StatusConfirmed || next == domain.StatusPending:
		return nil, domain.Validation("status %s is set by the payment flow", next)
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.FindOrderByID(ctx, id, true)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrOrderNotFound
		}
		if !o.Status.CanTransitionTo(next) {
			return domain.Wrap(domain.KindConflict, domain.ErrInvalidTransition, fmt.Sprintf("%s -> %s", o.Status, next))
		}

		now := s.now()
		switch next {
		case domain.StatusShipped:
			o.ShippedAt = &now
		case domain.StatusDelivered:
			o.DeliveredAt = &now
		}
		o.Status = next
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	metrics.RecordOrderOperation("update_status", err == nil)
	if err != nil {
		return nil, err
	}

	s.publish(domain.EventOrderStatus, order)
	return order, nil
}

// RefundOrder reverses a paid order once. A missing amount refunds the
// whole total.
func (s *OrderService) RefundOrder(ctx context.Context, id uint64, in RefundInput) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.FindOrderByID(ctx, id, true)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrOrderNotFound
		}
		if err := o.CheckRefundable(); err != nil {
			return err
		}

		amount := o.TotalAmount
		if in.RefundAmount != nil {
			amount = *in.RefundAmount
		}
		if amount <= 0 || amount > o.TotalAmount {
			return domain.Validation("refund amount must be between 1 and %d", o.TotalAmount)
		}

		if err := releaseReservation(ctx, tx, o); err != nil {
			return err
		}

		now := s.now()
		if amount == o.TotalAmount {
			o.Status = domain.StatusRefunded
			o.PaymentStatus = domain.PaymentRefunded
		} else {
			o.Status = domain.StatusPartiallyRefunded
			o.PaymentStatus = domain.PaymentPartiallyRefunded
		}
		o.RefundedAmount = amount
		o.RefundReason = strings.TrimSpace(in.Reason)
		o.RefundedAt = &now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	metrics.RecordOrderOperation("refund", err == nil)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("orderNumber", order.OrderNumber).
		Int64("amount", order.RefundedAmount).
		Str("status", string(order.Status)).
		Msg("order refunded")

	if in.NotifyCustomer {
		s.notify(domain.NotifyOrderRefunded, order, map[string]string{
			"amount": strconv.FormatInt(order.RefundedAmount, 10),
		})
	}
	s.publish(domain.EventOrderRefunded, order)
	return order, nil
}

func (s *OrderService) notify(tmpl domain.NotificationTemplate, o *domain.Order, extra map[string]string) {
	notifyCustomer(s.notifier, tmpl, o, extra)
}

func (s *OrderService) publish(t domain.OrderEventType, o *domain.Order) {
	publishAsync(s.publisher, domain.NewOrderEvent(t, o, s.now()))
}

func notifyCustomer(n infra.NotifierInterface, tmpl domain.NotificationTemplate, o *domain.Order, extra map[string]string) {
	if n == nil {
		return
	}
	params := map[string]string{
		"orderNumber": o.OrderNumber,
		"total":       strconv.FormatInt(o.TotalAmount, 10),
	}
	for k, v := range extra {
		params[k] = v
	}
	n.Notify(tmpl, o.CustomerMobile, params)
}

// publishAsync hands the event to the broker without holding up the
// request; failures are logged only.
func publishAsync(pub infra.EventPublisherInterface, evt domain.OrderEvent) {
	if pub == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pub.Publish(ctx, string(evt.Type), evt); err != nil {
			log.Error().Err(err).Str("event", string(evt.Type)).Uint64("orderId", evt.OrderID).Msg("failed to publish event")
			return
		}
		log.Debug().Str("event", string(evt.Type)).Uint64("orderId", evt.OrderID).Msg("event published")
	}()
}

func validateCreateOrder(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return domain.Validation("order must contain at least one item")
	}
	for i, it := range in.Items {
		if it.ProductID == 0 {
			return domain.Validation("item %d: productId is required", i)
		}
		if it.VariantID != nil && *it.VariantID == 0 {
			return domain.Validation("item %d: variantId must be positive", i)
		}
		if it.Quantity < 1 {
			return domain.Validation("item %d: quantity must be at least 1", i)
		}
	}
	if m := strings.TrimSpace(in.CustomerMobile); m != "" && !mobilePattern.MatchString(m) {
		return domain.Validation("invalid mobile number %q", m)
	}
	if e := strings.TrimSpace(in.CustomerEmail); e != "" {
		if _, err := mail.ParseAddress(e); err != nil {
			return domain.Validation("invalid email %q", e)
		}
	}
	return nil
}

// normalizeMobile stores Iranian numbers in the 09xxxxxxxxx form.
func normalizeMobile(m string) string {
	m = strings.TrimSpace(m)
	switch {
	case strings.HasPrefix(m, "+98"):
		return "0" + m[3:]
	case strings.HasPrefix(m, "0098"):
		return "0" + m[4:]
	case strings.HasPrefix(m, "9") && len(m) == 10:
		return "0" + m
	}
	return m
}

// idempotencyScope namespaces the client supplied key by caller. Guests are
// told apart by their mobile number.
func idempotencyScope(in CreateOrderInput) string {
	key := strings.TrimSpace(in.IdempotencyKey)
	if in.Actor.UserID == nil {
		return "guest:" + normalizeMobile(in.CustomerMobile) + ":" + key
	}
	return "user:" + strconv.FormatUint(*in.Actor.UserID, 10) + ":" + key
}

func newAccessToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
