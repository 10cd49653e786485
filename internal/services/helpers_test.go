package services

import (
	"context"
	"testing"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/config"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/mocks"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/repository"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/repository/gormrepo"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/testutil"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	TestMerchantID   = "1344b5d4-0048-11e8-94db-005056a205be"
	TestAuthority    = "A00000000000000000000000000217885159"
	TestProductPrice = int64(100000)
	TestProductStock = 10
	TestMobile       = "09121234567"
)

var (
	customerID = uint64(7)
	customer   = domain.Actor{UserID: &customerID}
	admin      = domain.Actor{Role: domain.RoleAdmin}
)

type testEnv struct {
	db        *gorm.DB
	store     repository.Store
	publisher *mocks.MockPublisher
	notifier  *mocks.MockNotifier
	gateway   *mocks.MockPaymentGateway

	orders     *OrderService
	payments   *PaymentService
	reconciler *ExpiryReconciler
}

func testOrderConfig() config.OrderConfig {
	return config.OrderConfig{
		PaymentTTL:     30 * time.Minute,
		TaxRatePercent: "0",
		IdempotencyTTL: time.Hour,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	store := gormrepo.NewStore(db)

	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier := new(mocks.MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	gateway := new(mocks.MockPaymentGateway)

	return &testEnv{
		db:         db,
		store:      store,
		publisher:  pub,
		notifier:   notifier,
		gateway:    gateway,
		orders:     NewOrderService(store, pub, notifier, testOrderConfig()),
		payments:   NewPaymentService(store, gateway, pub, notifier, config.GatewayConfig{AmountDivisor: 10, CallbackURL: "https://shop.test/api/payments/callback"}),
		reconciler: NewExpiryReconciler(store, pub, notifier, config.ExpiryConfig{BatchSize: 100, ExpiringWindow: time.Hour}),
	}
}

// placeOrder checks out qty units of a fresh product for the customer.
func (e *testEnv) placeOrder(t *testing.T, qty int) (*domain.Order, *domain.Product) {
	t.Helper()
	p := testutil.SeedProduct(t, e.db, "Hammer", TestProductPrice, TestProductStock)
	o, err := e.orders.CreateOrder(context.Background(), CreateOrderInput{
		Actor:          customer,
		Items:          []CreateOrderItem{{ProductID: p.ID, Quantity: qty}},
		CustomerMobile: TestMobile,
	})
	require.NoError(t, err)
	return o, p
}

func (e *testEnv) markPaid(t *testing.T, o *domain.Order) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, e.db.Model(&domain.Order{}).Where("id = ?", o.ID).Updates(map[string]any{
		"status":         domain.StatusConfirmed,
		"payment_status": domain.PaymentPaid,
		"paid_at":        now,
	}).Error)
}

func (e *testEnv) reload(t *testing.T, id uint64) *domain.Order {
	t.Helper()
	o, err := e.store.FindOrderByID(context.Background(), id, false)
	require.NoError(t, err)
	require.NotNil(t, o)
	return o
}

func (e *testEnv) expireNow(t *testing.T, o *domain.Order) {
	t.Helper()
	require.NoError(t, e.db.Model(&domain.Order{}).Where("id = ?", o.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)
}
