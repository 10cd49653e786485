package mocks

import (
	"context"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

type MockPaymentGateway struct {
	mock.Mock
}

type MockSMSSender struct {
	mock.Mock
}

type MockNotifier struct {
	mock.Mock
}

type MockLocker struct {
	mock.Mock
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message any) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

func (m *MockPaymentGateway) RequestPayment(ctx context.Context, req infra.PaymentRequest) (*infra.PaymentSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.PaymentSession), args.Error(1)
}

func (m *MockPaymentGateway) VerifyPayment(ctx context.Context, authority string, amount int64) (*infra.PaymentVerification, error) {
	args := m.Called(ctx, authority, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.PaymentVerification), args.Error(1)
}

func (m *MockSMSSender) Send(ctx context.Context, receptor, message string) error {
	args := m.Called(ctx, receptor, message)
	return args.Error(0)
}

func (m *MockNotifier) Notify(tmpl domain.NotificationTemplate, receptor string, params map[string]string) {
	m.Called(tmpl, receptor, params)
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	args := m.Called(ctx, key, ttl)
	release, _ := args.Get(0).(func(context.Context))
	return release, args.Bool(1), args.Error(2)
}

func (m *MockIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Forget(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

var (
	_ infra.EventPublisherInterface   = (*MockPublisher)(nil)
	_ infra.PaymentGatewayInterface   = (*MockPaymentGateway)(nil)
	_ infra.SMSSenderInterface        = (*MockSMSSender)(nil)
	_ infra.NotifierInterface         = (*MockNotifier)(nil)
	_ infra.LockerInterface           = (*MockLocker)(nil)
	_ infra.IdempotencyStoreInterface = (*MockIdempotencyStore)(nil)
)
