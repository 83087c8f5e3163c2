package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"bookshelf/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: logger.JSON, Output: io.Discard, Service: "test"})
}

func newTestProducer(w, dlq *fakeWriter) *Producer {
	p := &Producer{
		writer:   w,
		topic:    "library-events",
		dlqTopic: "library-events-dlq",
		log:      testLogger(),
	}
	if dlq != nil {
		p.dlqWriter = dlq
	}
	return p
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w, nil)

	msg := NewMessage().WithKey("book-1").WithRawValue([]byte(`{}`)).WithEventType("book.created").Build()
	require.NoError(t, p.Publish(context.Background(), msg))

	require.Len(t, w.messages, 1)
	assert.Equal(t, "book-1", string(w.messages[0].Key))
	assert.Equal(t, "book.created", header(w.messages[0], HeaderEventType))
}

func TestProducer_PublishValidation(t *testing.T) {
	p := newTestProducer(&fakeWriter{}, nil)

	err := p.Publish(context.Background(), Message{Value: []byte("x")})
	assert.ErrorIs(t, err, ErrEmptyKey)

	err = p.Publish(context.Background(), Message{Key: "k"})
	assert.ErrorIs(t, err, ErrEmptyValue)
}

func TestProducer_MiddlewareOrder(t *testing.T) {
	p := newTestProducer(&fakeWriter{}, nil)

	var order []string
	mark := func(name string) ProducerMiddleware {
		return func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
			order = append(order, name)
			assert.Equal(t, "library-events", msg.Topic)
			return next(ctx, msg)
		}
	}
	p.Use(mark("first"))
	p.Use(mark("second"))

	msg := NewMessage().WithKey("k").WithRawValue([]byte("v")).Build()
	require.NoError(t, p.Publish(context.Background(), msg))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestProducer_FailureGoesToDLQ(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	dlq := &fakeWriter{}
	p := newTestProducer(w, dlq)

	msg := NewMessage().WithKey("k").WithRawValue([]byte("v")).Build()
	err := p.Publish(context.Background(), msg)

	assert.Error(t, err)
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "library-events", header(dlq.messages[0], HeaderOriginalTopic))
	assert.Equal(t, "broker unavailable", header(dlq.messages[0], "dlq-error"))
	_, leaked := msg.Headers[HeaderOriginalTopic]
	assert.False(t, leaked, "caller's headers must not be mutated")
}

func TestProducer_Closed(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w, nil)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	require.NoError(t, p.Close())

	msg := NewMessage().WithKey("k").WithRawValue([]byte("v")).Build()
	assert.ErrorIs(t, p.Publish(context.Background(), msg), ErrProducerClosed)
}

func TestProducer_PublishBatchSkipsInvalid(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w, nil)

	err := p.PublishBatch(context.Background(), []Message{
		{Key: "a", Value: []byte("1"), Timestamp: time.Now()},
		{Key: "", Value: []byte("2")},
		{Key: "c"},
	})
	require.NoError(t, err)
	assert.Len(t, w.messages, 1)

	assert.ErrorIs(t, p.PublishBatch(context.Background(), []Message{{}}), ErrInvalidMessage)
}
