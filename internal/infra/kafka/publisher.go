package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/infra"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

var _ infra.EventPublisherInterface = (*Publisher)(nil)

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           10 * time.Second,
	}
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{writer: NewKafkaWriter(brokers, topic)}
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, data any) error {
	msg, err := buildMessage(routingKey, data)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	log.Ctx(ctx).Debug().Str("key", string(msg.Key)).Msg("event written to kafka")
	return nil
}

// keyed is implemented by payloads that carry their own partition key.
type keyed interface {
	EventKey() string
}

func buildMessage(routingKey string, data any) (kafka.Message, error) {
	value, err := json.Marshal(data)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	key := routingKey
	if k, ok := data.(keyed); ok {
		key = k.EventKey()
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "pattern", Value: []byte(routingKey)},
		},
	}, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
