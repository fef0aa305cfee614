package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/commerce-session/internal/domain/events"
	"github.com/your-org/commerce-session/internal/pkg/logger"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *mockWriter) Close() error { return nil }

type mockReader struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (r *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		m := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *mockReader) Close() error { return nil }

type mockHandler struct {
	mu     sync.Mutex
	events []events.CheckoutCompleted
	err    error
}

func (h *mockHandler) HandleCheckoutCompleted(_ context.Context, evt events.CheckoutCompleted) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, evt)
	return h.err
}

func (h *mockHandler) received() []events.CheckoutCompleted {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.CheckoutCompleted(nil), h.events...)
}

func newTestConsumer(reader messageReader, handler events.CheckoutHandler) *CheckoutConsumer {
	return &CheckoutConsumer{reader: reader, handler: handler, log: logger.Discard()}
}

func checkoutMessage(t *testing.T, evt events.CheckoutCompleted, eventType string) kafka.Message {
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	m := kafka.Message{Value: payload}
	if eventType != "" {
		m.Headers = []kafka.Header{{Key: "event_type", Value: []byte(eventType)}}
	}
	return m
}

func TestPublisher_PublishCouponRedeemed(t *testing.T) {
	w := &mockWriter{}
	p := &Publisher{writer: w}

	evt := events.CouponRedeemed{
		Code:         "SAVE10",
		UserID:       "u1",
		SessionID:    "s1",
		DiscountType: "percentage",
		TimesUsed:    3,
		RedeemedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.PublishCouponRedeemed(context.Background(), evt))

	require.Len(t, w.messages, 1)
	m := w.messages[0]
	assert.Equal(t, "SAVE10", string(m.Key))
	assert.Equal(t, EventCouponRedeemed, header(m, "event_type"))

	var got events.CouponRedeemed
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, evt, got)
}

func TestPublisher_WriteError(t *testing.T) {
	p := &Publisher{writer: &mockWriter{err: errors.New("broker down")}}
	err := p.PublishCouponRedeemed(context.Background(), events.CouponRedeemed{Code: "SAVE10"})
	assert.ErrorContains(t, err, "broker down")
}

func TestCheckoutConsumer_HandlesCheckoutEvents(t *testing.T) {
	reader := &mockReader{}
	handler := &mockHandler{}
	c := newTestConsumer(reader, handler)

	reader.messages = []kafka.Message{
		checkoutMessage(t, events.CheckoutCompleted{UserID: "u1", SessionID: "s1", OrderID: "o1"}, EventCheckoutCompleted),
		{Value: []byte("not json")},
		checkoutMessage(t, events.CheckoutCompleted{UserID: "u2"}, "order.shipped"),
		checkoutMessage(t, events.CheckoutCompleted{}, EventCheckoutCompleted),
		checkoutMessage(t, events.CheckoutCompleted{SessionID: "s3"}, ""),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(handler.received()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	got := handler.received()
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, "o1", got[0].OrderID)
	assert.Equal(t, "s3", got[1].SessionID)
}

func TestCheckoutConsumer_HandlerErrorDoesNotStopLoop(t *testing.T) {
	reader := &mockReader{}
	handler := &mockHandler{err: errors.New("store down")}
	c := newTestConsumer(reader, handler)

	reader.messages = []kafka.Message{
		checkoutMessage(t, events.CheckoutCompleted{UserID: "u1"}, EventCheckoutCompleted),
		checkoutMessage(t, events.CheckoutCompleted{UserID: "u2"}, EventCheckoutCompleted),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool { return len(handler.received()) == 2 }, time.Second, 5*time.Millisecond)
}
