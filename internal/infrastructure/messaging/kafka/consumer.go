// internal/infrastructure/messaging/kafka/consumer.go
package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/events"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CheckoutConsumer feeds completed checkouts to a handler
type CheckoutConsumer struct {
	reader  messageReader
	handler events.CheckoutHandler
	log     *logrus.Entry
}

// NewCheckoutConsumer creates a consumer in groupID reading topic
func NewCheckoutConsumer(handler events.CheckoutHandler, log *logrus.Logger, topic, groupID string, brokers ...string) *CheckoutConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &CheckoutConsumer{
		reader:  reader,
		handler: handler,
		log:     log.WithFields(logrus.Fields{"component": "checkout_consumer", "topic": topic}),
	}
}

// Run reads until ctx is cancelled
func (c *CheckoutConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

// Close closes the reader
func (c *CheckoutConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.WithError(err).Warn("Failed to close kafka reader")
	}
}

func (c *CheckoutConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.WithError(err).Error("Failed to read message")
		return
	}
	c.handle(ctx, m)
}

func (c *CheckoutConsumer) handle(ctx context.Context, m kafka.Message) {
	entry := c.log.WithFields(logrus.Fields{"partition": m.Partition, "offset": m.Offset})

	if t := header(m, "event_type"); t != "" && t != EventCheckoutCompleted {
		entry.WithField("event_type", t).Debug("Skipping unrelated event")
		return
	}

	var evt events.CheckoutCompleted
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		entry.WithError(err).Warn("Skipping unparseable checkout event")
		return
	}
	if evt.UserID == "" && evt.SessionID == "" {
		entry.Warn("Skipping checkout event without user or session")
		return
	}

	if err := c.handler.HandleCheckoutCompleted(ctx, evt); err != nil {
		entry.WithError(err).WithField("user_id", evt.UserID).Error("Failed to handle checkout event")
		return
	}
	entry.WithFields(logrus.Fields{"user_id": evt.UserID, "session_id": evt.SessionID}).Info("Checkout event handled")
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
