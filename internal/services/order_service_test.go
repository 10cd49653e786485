package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/mocks"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{8}$`)

func TestOrderService_CreateOrder(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T, env *testEnv) CreateOrderInput
		expectedError error
		expectedKind  domain.ErrorKind
		check         func(t *testing.T, env *testEnv, in CreateOrderInput, o *domain.Order)
	}{
		{
			name: "reserves stock and snapshots items",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				p := testutil.SeedProduct(t, env.db, "Drill", 250000, 5)
				return CreateOrderInput{
					Actor:          customer,
					Items:          []CreateOrderItem{{ProductID: p.ID, Quantity: 2}},
					CustomerMobile: "+989121234567",
				}
			},
			check: func(t *testing.T, env *testEnv, in CreateOrderInput, o *domain.Order) {
				assert.Regexp(t, orderNumberPattern, o.OrderNumber)
				assert.Equal(t, domain.StatusPending, o.Status)
				assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
				assert.Equal(t, int64(500000), o.Subtotal)
				assert.Equal(t, int64(500000), o.TotalAmount)
				assert.Equal(t, "09121234567", o.CustomerMobile)
				require.NotNil(t, o.ExpiresAt)
				assert.WithinDuration(t, time.Now().UTC().Add(30*time.Minute), *o.ExpiresAt, 5*time.Second)
				require.Len(t, o.Items, 1)
				assert.Equal(t, "Drill", o.Items[0].Name)
				assert.Equal(t, 3, testutil.StockOf(t, env.db, in.Items[0].ProductID))
			},
		},
		{
			name: "variant price and stock are used",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				p := testutil.SeedProduct(t, env.db, "Saw", 90000, 5)
				v := testutil.SeedVariant(t, env.db, p.ID, "Large", testutil.Ptr(int64(120000)), 3)
				return CreateOrderInput{Items: []CreateOrderItem{{ProductID: p.ID, VariantID: &v.ID, Quantity: 3}}}
			},
			check: func(t *testing.T, env *testEnv, in CreateOrderInput, o *domain.Order) {
				assert.Nil(t, o.UserID)
				assert.Equal(t, int64(360000), o.Subtotal)
				assert.Equal(t, "Saw - Large", o.Items[0].Name)
				assert.Equal(t, 0, testutil.VariantStockOf(t, env.db, *in.Items[0].VariantID))
				assert.Equal(t, 5, testutil.StockOf(t, env.db, in.Items[0].ProductID))
			},
		},
		{
			name: "percentage coupon is capped and counted",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				p := testutil.SeedProduct(t, env.db, "Wrench", 100000, 5)
				testutil.SeedCoupon(t, env.db, &domain.Coupon{
					Code:            "SPRING20",
					DiscountType:    domain.DiscountPercentage,
					DiscountValue:   20,
					MaximumDiscount: testutil.Ptr(int64(30000)),
					UsageLimit:      testutil.Ptr(5),
					IsActive:        true,
				})
				return CreateOrderInput{
					Actor:      customer,
					Items:      []CreateOrderItem{{ProductID: p.ID, Quantity: 2}},
					CouponCode: "spring20",
				}
			},
			check: func(t *testing.T, env *testEnv, in CreateOrderInput, o *domain.Order) {
				assert.Equal(t, int64(30000), o.DiscountAmount)
				assert.Equal(t, int64(170000), o.TotalAmount)
				require.NotNil(t, o.CouponID)
				assert.Equal(t, 1, testutil.CouponUsage(t, env.db, *o.CouponID))
			},
		},
		{
			name: "exhausted coupon rejects the sixth order",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				p := testutil.SeedProduct(t, env.db, "Pliers", 50000, 5)
				testutil.SeedCoupon(t, env.db, &domain.Coupon{
					Code:          "FIVE",
					DiscountValue: 1000,
					UsageLimit:    testutil.Ptr(5),
					UsageCount:    5,
					IsActive:      true,
				})
				return CreateOrderInput{Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}}, CouponCode: "FIVE"}
			},
			expectedError: domain.ErrCouponExhausted,
			check: func(t *testing.T, env *testEnv, in CreateOrderInput, o *domain.Order) {
				assert.Equal(t, 5, testutil.StockOf(t, env.db, in.Items[0].ProductID))
			},
		},
		{
			name: "insufficient stock rolls back every line",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				a := testutil.SeedProduct(t, env.db, "Tape", 10000, 5)
				b := testutil.SeedProduct(t, env.db, "Glue", 10000, 1)
				return CreateOrderInput{Items: []CreateOrderItem{
					{ProductID: a.ID, Quantity: 2},
					{ProductID: b.ID, Quantity: 2},
				}}
			},
			expectedError: domain.ErrInsufficientStock,
			check: func(t *testing.T, env *testEnv, in CreateOrderInput, o *domain.Order) {
				assert.Equal(t, 5, testutil.StockOf(t, env.db, in.Items[0].ProductID))
				assert.Equal(t, 1, testutil.StockOf(t, env.db, in.Items[1].ProductID))
			},
		},
		{
			name: "unknown coupon",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				p := testutil.SeedProduct(t, env.db, "Level", 10000, 5)
				return CreateOrderInput{Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}}, CouponCode: "NOPE"}
			},
			expectedError: domain.ErrCouponNotFound,
		},
		{
			name: "inactive product",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				p := testutil.SeedProduct(t, env.db, "Old", 10000, 5)
				require.NoError(t, env.db.Model(p).Update("is_active", false).Error)
				return CreateOrderInput{Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}}}
			},
			expectedKind: domain.KindValidation,
		},
		{
			name: "missing product",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				return CreateOrderInput{Items: []CreateOrderItem{{ProductID: 999, Quantity: 1}}}
			},
			expectedError: domain.ErrProductNotFound,
		},
		{
			name: "empty cart",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				return CreateOrderInput{}
			},
			expectedKind: domain.KindValidation,
		},
		{
			name: "zero quantity",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				return CreateOrderInput{Items: []CreateOrderItem{{ProductID: 1, Quantity: 0}}}
			},
			expectedKind: domain.KindValidation,
		},
		{
			name: "bad mobile",
			setup: func(t *testing.T, env *testEnv) CreateOrderInput {
				return CreateOrderInput{Items: []CreateOrderItem{{ProductID: 1, Quantity: 1}}, CustomerMobile: "12345"}
			},
			expectedKind: domain.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := tt.setup(t, env)

			o, err := env.orders.CreateOrder(context.Background(), in)

			switch {
			case tt.expectedError != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, o)
			case tt.expectedKind != "":
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, domain.KindOf(err))
				assert.Nil(t, o)
			default:
				require.NoError(t, err)
				require.NotNil(t, o)
				assert.NotZero(t, o.ID)
			}
			if tt.check != nil {
				tt.check(t, env, in, o)
			}
		})
	}
}

func TestOrderService_CreateOrder_TaxAndShipping(t *testing.T) {
	env := newTestEnv(t)
	cfg := testOrderConfig()
	cfg.TaxRatePercent = "9"
	cfg.ShippingFee = 50000
	cfg.FreeShippingThreshold = 1000000
	svc := NewOrderService(env.store, env.publisher, env.notifier, cfg)

	p := testutil.SeedProduct(t, env.db, "Vise", 333333, 10)

	o, err := svc.CreateOrder(context.Background(), CreateOrderInput{Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, int64(29999), o.TaxAmount)
	assert.Equal(t, int64(50000), o.ShippingAmount)
	assert.Equal(t, int64(333333+29999+50000), o.TotalAmount)

	o, err = svc.CreateOrder(context.Background(), CreateOrderInput{Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 4}}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), o.ShippingAmount)
}

func TestOrderService_CreateOrder_Idempotency(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(*mocks.MockIdempotencyStore)
		productStock  int
		expectedError error
		expectedKind  domain.ErrorKind
	}{
		{
			name: "first submission goes through",
			setupMocks: func(m *mocks.MockIdempotencyStore) {
				m.On("Claim", mock.Anything, "user:7:key-1", time.Hour).Return(true, nil)
			},
			productStock: 5,
		},
		{
			name: "replayed submission is rejected",
			setupMocks: func(m *mocks.MockIdempotencyStore) {
				m.On("Claim", mock.Anything, "user:7:key-1", time.Hour).Return(false, nil)
			},
			productStock:  5,
			expectedError: domain.ErrDuplicateRequest,
		},
		{
			name: "failed checkout frees the key for a retry",
			setupMocks: func(m *mocks.MockIdempotencyStore) {
				m.On("Claim", mock.Anything, "user:7:key-1", time.Hour).Return(true, nil)
				m.On("Forget", mock.Anything, "user:7:key-1").Return(nil)
			},
			productStock:  0,
			expectedError: domain.ErrInsufficientStock,
		},
		{
			name: "store outage surfaces as dependency error",
			setupMocks: func(m *mocks.MockIdempotencyStore) {
				m.On("Claim", mock.Anything, "user:7:key-1", time.Hour).Return(false, errors.New("redis down"))
			},
			productStock: 5,
			expectedKind: domain.KindDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			idem := new(mocks.MockIdempotencyStore)
			tt.setupMocks(idem)
			env.orders.SetIdempotencyStore(idem)

			p := testutil.SeedProduct(t, env.db, "Clamp", 1000, tt.productStock)
			o, err := env.orders.CreateOrder(context.Background(), CreateOrderInput{
				Actor:          customer,
				Items:          []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
				IdempotencyKey: "key-1",
			})

			switch {
			case tt.expectedKind != "":
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, domain.KindOf(err))
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, o)
			default:
				require.NoError(t, err)
				assert.NotNil(t, o)
			}
			idem.AssertExpectations(t)
		})
	}
}

func TestIdempotencyScope(t *testing.T) {
	other := uint64(8)
	tests := []struct {
		name     string
		input    CreateOrderInput
		expected string
	}{
		{
			name:     "customer",
			input:    CreateOrderInput{Actor: customer, IdempotencyKey: "key-1"},
			expected: "user:7:key-1",
		},
		{
			name:     "another customer with the same key",
			input:    CreateOrderInput{Actor: domain.Actor{UserID: &other}, IdempotencyKey: "key-1"},
			expected: "user:8:key-1",
		},
		{
			name:     "guest keyed by normalised mobile",
			input:    CreateOrderInput{CustomerMobile: "+989121234567", IdempotencyKey: " key-1 "},
			expected: "guest:09121234567:key-1",
		},
		{
			name:     "guest without mobile",
			input:    CreateOrderInput{IdempotencyKey: "key-1"},
			expected: "guest::key-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, idempotencyScope(tt.input))
		})
	}
}

func TestOrderService_CreateOrder_IdempotencyPerCustomer(t *testing.T) {
	env := newTestEnv(t)
	idem := new(mocks.MockIdempotencyStore)
	idem.On("Claim", mock.Anything, "user:7:shared", time.Hour).Return(true, nil).Once()
	idem.On("Claim", mock.Anything, "user:8:shared", time.Hour).Return(true, nil).Once()
	env.orders.SetIdempotencyStore(idem)

	other := uint64(8)
	p := testutil.SeedProduct(t, env.db, "Clamp", 1000, 5)
	for _, actor := range []domain.Actor{customer, {UserID: &other}} {
		_, err := env.orders.CreateOrder(context.Background(), CreateOrderInput{
			Actor:          actor,
			Items:          []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			IdempotencyKey: "shared",
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, testutil.StockOf(t, env.db, p.ID))
	idem.AssertExpectations(t)
}

func TestOrderService_CancelOrder(t *testing.T) {
	t.Run("restores stock and coupon once", func(t *testing.T) {
		env := newTestEnv(t)
		p := testutil.SeedProduct(t, env.db, "Chisel", 20000, 4)
		c := testutil.SeedCoupon(t, env.db, &domain.Coupon{Code: "OFF", DiscountValue: 1000, IsActive: true})

		o, err := env.orders.CreateOrder(context.Background(), CreateOrderInput{
			Actor:          customer,
			Items:          []CreateOrderItem{{ProductID: p.ID, Quantity: 3}},
			CouponCode:     "OFF",
			CustomerMobile: TestMobile,
		})
		require.NoError(t, err)
		require.Equal(t, 1, testutil.StockOf(t, env.db, p.ID))
		require.Equal(t, 1, testutil.CouponUsage(t, env.db, c.ID))

		cancelled, err := env.orders.CancelOrder(context.Background(), o.ID, customer)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Equal(t, domain.PaymentFailed, cancelled.PaymentStatus)
		assert.NotNil(t, cancelled.CancelledAt)
		assert.Equal(t, 4, testutil.StockOf(t, env.db, p.ID))
		assert.Equal(t, 0, testutil.CouponUsage(t, env.db, c.ID))
		env.notifier.AssertCalled(t, "Notify", domain.NotifyOrderCancelled, TestMobile, mock.Anything)

		_, err = env.orders.CancelOrder(context.Background(), o.ID, customer)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, 4, testutil.StockOf(t, env.db, p.ID))
		assert.Equal(t, 0, testutil.CouponUsage(t, env.db, c.ID))
	})

	t.Run("paid order needs a refund", func(t *testing.T) {
		env := newTestEnv(t)
		o, p := env.placeOrder(t, 2)
		env.markPaid(t, o)

		_, err := env.orders.CancelOrder(context.Background(), o.ID, admin)
		assert.ErrorIs(t, err, domain.ErrRefundRequired)
		assert.Equal(t, TestProductStock-2, testutil.StockOf(t, env.db, p.ID))
	})

	t.Run("other customers cannot see the order", func(t *testing.T) {
		env := newTestEnv(t)
		o, _ := env.placeOrder(t, 1)
		stranger := uint64(99)

		_, err := env.orders.CancelOrder(context.Background(), o.ID, domain.Actor{UserID: &stranger})
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)

		_, err = env.orders.GetOrder(context.Background(), o.ID, domain.Actor{UserID: &stranger})
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)

		got, err := env.orders.GetOrder(context.Background(), o.ID, customer)
		require.NoError(t, err)
		assert.Equal(t, o.OrderNumber, got.OrderNumber)
	})

	t.Run("guest orders need their access token", func(t *testing.T) {
		env := newTestEnv(t)
		p := testutil.SeedProduct(t, env.db, "Pliers", TestProductPrice, 5)
		o, err := env.orders.CreateOrder(context.Background(), CreateOrderInput{
			Items:          []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
			CustomerMobile: TestMobile,
			CustomerEmail:  "guest@example.com",
		})
		require.NoError(t, err)
		require.Nil(t, o.UserID)
		require.Len(t, o.AccessToken, 64)

		stranger := uint64(99)
		outsiders := map[string]domain.Actor{
			"stranger":    {UserID: &stranger},
			"anonymous":   {},
			"wrong token": {OrderToken: strings.Repeat("0", 64)},
		}
		for name, actor := range outsiders {
			_, err = env.orders.GetOrder(context.Background(), o.ID, actor)
			assert.ErrorIs(t, err, domain.ErrOrderNotFound, name)
			_, err = env.orders.CancelOrder(context.Background(), o.ID, actor)
			assert.ErrorIs(t, err, domain.ErrOrderNotFound, name)
			_, err = env.payments.RequestPayment(context.Background(), o.ID, actor)
			assert.ErrorIs(t, err, domain.ErrOrderNotFound, name)
		}
		assert.Equal(t, 4, testutil.StockOf(t, env.db, p.ID))
		assert.Equal(t, domain.StatusPending, env.reload(t, o.ID).Status)

		holder := domain.Actor{OrderToken: o.AccessToken}
		got, err := env.orders.GetOrder(context.Background(), o.ID, holder)
		require.NoError(t, err)
		assert.Equal(t, "guest@example.com", got.CustomerEmail)

		cancelled, err := env.orders.CancelOrder(context.Background(), o.ID, holder)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Equal(t, 5, testutil.StockOf(t, env.db, p.ID))
	})

	t.Run("signed in orders carry no access token", func(t *testing.T) {
		env := newTestEnv(t)
		o, _ := env.placeOrder(t, 1)
		assert.Empty(t, o.AccessToken)
	})
}

func TestOrderService_RefundOrder(t *testing.T) {
	tests := []struct {
		name           string
		paid           bool
		input          RefundInput
		expectedError  error
		expectedKind   domain.ErrorKind
		expectedStatus domain.OrderStatus
		expectedPay    domain.PaymentStatus
		stockRestored  bool
	}{
		{
			name:           "full refund",
			paid:           true,
			input:          RefundInput{Reason: "damaged", NotifyCustomer: true},
			expectedStatus: domain.StatusRefunded,
			expectedPay:    domain.PaymentRefunded,
			stockRestored:  true,
		},
		{
			name:           "partial refund",
			paid:           true,
			input:          RefundInput{RefundAmount: testutil.Ptr(int64(50000))},
			expectedStatus: domain.StatusPartiallyRefunded,
			expectedPay:    domain.PaymentPartiallyRefunded,
			stockRestored:  true,
		},
		{
			name:          "unpaid order",
			input:         RefundInput{},
			expectedError: domain.ErrNotPaid,
		},
		{
			name:         "amount above total",
			paid:         true,
			input:        RefundInput{RefundAmount: testutil.Ptr(int64(10_000_000))},
			expectedKind: domain.KindValidation,
		},
		{
			name:         "zero amount",
			paid:         true,
			input:        RefundInput{RefundAmount: testutil.Ptr(int64(0))},
			expectedKind: domain.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			o, p := env.placeOrder(t, 2)
			if tt.paid {
				env.markPaid(t, o)
			}

			refunded, err := env.orders.RefundOrder(context.Background(), o.ID, tt.input)

			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
			case tt.expectedKind != "":
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, domain.KindOf(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expectedStatus, refunded.Status)
				assert.Equal(t, tt.expectedPay, refunded.PaymentStatus)
				assert.NotNil(t, refunded.RefundedAt)
			}

			expectedStock := TestProductStock - 2
			if tt.stockRestored {
				expectedStock = TestProductStock
			}
			assert.Equal(t, expectedStock, testutil.StockOf(t, env.db, p.ID))

			if tt.input.NotifyCustomer {
				env.notifier.AssertCalled(t, "Notify", domain.NotifyOrderRefunded, TestMobile, mock.Anything)
			} else {
				env.notifier.AssertNotCalled(t, "Notify", domain.NotifyOrderRefunded, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOrderService_RefundTwice(t *testing.T) {
	env := newTestEnv(t)
	c := testutil.SeedCoupon(t, env.db, &domain.Coupon{Code: "TWICE", DiscountValue: 500, IsActive: true, UsageCount: 3})
	p := testutil.SeedProduct(t, env.db, "Anvil", 80000, 6)

	o, err := env.orders.CreateOrder(context.Background(), CreateOrderInput{
		Actor:      customer,
		Items:      []CreateOrderItem{{ProductID: p.ID, Quantity: 2}},
		CouponCode: "TWICE",
	})
	require.NoError(t, err)
	env.markPaid(t, o)

	_, err = env.orders.RefundOrder(context.Background(), o.ID, RefundInput{})
	require.NoError(t, err)
	require.Equal(t, 6, testutil.StockOf(t, env.db, p.ID))
	require.Equal(t, 3, testutil.CouponUsage(t, env.db, c.ID))
	before := env.reload(t, o.ID)

	_, err = env.orders.RefundOrder(context.Background(), o.ID, RefundInput{})
	assert.ErrorIs(t, err, domain.ErrAlreadyRefunded)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	after := env.reload(t, o.ID)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, 6, testutil.StockOf(t, env.db, p.ID))
	assert.Equal(t, 3, testutil.CouponUsage(t, env.db, c.ID))
}

func TestOrderService_UpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	o, _ := env.placeOrder(t, 1)
	ctx := context.Background()

	_, err := env.orders.UpdateStatus(ctx, o.ID, domain.StatusShipped)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.orders.UpdateStatus(ctx, o.ID, domain.StatusConfirmed)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = env.orders.UpdateStatus(ctx, o.ID, domain.StatusRefunded)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = env.orders.UpdateStatus(ctx, o.ID, domain.OrderStatus("LOST"))
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	env.markPaid(t, o)

	updated, err := env.orders.UpdateStatus(ctx, o.ID, domain.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, updated.Status)

	updated, err = env.orders.UpdateStatus(ctx, o.ID, domain.StatusShipped)
	require.NoError(t, err)
	assert.NotNil(t, updated.ShippedAt)

	updated, err = env.orders.UpdateStatus(ctx, o.ID, domain.StatusDelivered)
	require.NoError(t, err)
	assert.NotNil(t, updated.DeliveredAt)

	_, err = env.orders.UpdateStatus(ctx, o.ID, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrRefundRequired)

	missing, err := env.orders.UpdateStatus(ctx, 4242, domain.StatusShipped)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Nil(t, missing)
}

func TestOrderService_PublishesCreatedEvent(t *testing.T) {
	env := newTestEnv(t)
	published := make(chan domain.OrderEvent, 1)
	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, "order.created", mock.AnythingOfType("domain.OrderEvent")).
		Return(nil).
		Run(func(args mock.Arguments) {
			published <- args.Get(2).(domain.OrderEvent)
		})
	svc := NewOrderService(env.store, pub, env.notifier, testOrderConfig())

	p := testutil.SeedProduct(t, env.db, "Rasp", 1000, 1)
	o, err := svc.CreateOrder(context.Background(), CreateOrderInput{Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	select {
	case evt := <-published:
		assert.Equal(t, domain.EventOrderCreated, evt.Type)
		assert.Equal(t, o.ID, evt.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("order.created was not published")
	}
}
