// internal/infrastructure/messaging/kafka/publisher.go
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/your-org/commerce-session/internal/domain/events"
)

// Event types carried in the event_type header
const (
	EventCouponRedeemed    = "coupon.redeemed"
	EventCheckoutCompleted = "checkout.completed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes coupon redemption events to Kafka
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a new Kafka publisher for topic
func NewPublisher(topic string, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w}
}

// PublishCouponRedeemed publishes evt keyed by coupon code so one code's events stay ordered
func (p *Publisher) PublishCouponRedeemed(ctx context.Context, evt events.CouponRedeemed) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal coupon event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.Code),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCouponRedeemed)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish coupon event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
