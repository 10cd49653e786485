package infra

import (
	"context"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
)

type PaymentGatewayInterface interface {
	RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	VerifyPayment(ctx context.Context, authority string, amount int64) (*PaymentVerification, error)
}

type SMSSenderInterface interface {
	Send(ctx context.Context, receptor, message string) error
}

// NotifierInterface queues a customer message. It never blocks and never
// reports delivery failures to the caller.
type NotifierInterface interface {
	Notify(tmpl domain.NotificationTemplate, receptor string, params map[string]string)
}

// EventPublisherInterface is satisfied by every broker adapter.
type EventPublisherInterface interface {
	Publish(ctx context.Context, routingKey string, data any) error
}

type LockerInterface interface {
	// Acquire returns ok=false when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

type IdempotencyStoreInterface interface {
	// Claim returns false when the key was already claimed within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

var (
	_ PaymentGatewayInterface = (*ZarinpalClient)(nil)
	_ SMSSenderInterface      = (*SMSClient)(nil)
	_ EventPublisherInterface = NopPublisher{}
)

// NopPublisher drops events; used when EVENT_BROKER=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

func (NopPublisher) Close() error { return nil }
