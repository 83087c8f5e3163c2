package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
	once      sync.Once
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	if len(f.queue) == 0 {
		f.once.Do(func() { close(f.drained) })
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func newTestConsumer(r *fakeReader, dlq *fakeWriter, handler MessageHandler) *Consumer {
	c := &Consumer{
		reader:       r,
		topic:        "library-events",
		groupID:      "notifier",
		maxRetries:   2,
		retryBackoff: time.Millisecond,
		handler:      handler,
		log:          testLogger(),
	}
	if dlq != nil {
		c.dlqWriter = dlq
	}
	return c
}

func runUntilDrained(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestConsumer_ProcessesAndCommits(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Key: []byte("b1"), Value: []byte("1"), Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("book.created")}}},
		kafka.Message{Key: []byte("b2"), Value: []byte("2")},
	)

	var seen []string
	c := newTestConsumer(r, nil, func(ctx context.Context, msg Message) error {
		seen = append(seen, msg.Key)
		return nil
	})

	runUntilDrained(t, c, r)

	assert.Equal(t, []string{"b1", "b2"}, seen)
	assert.Len(t, r.committed, 2)
}

func TestConsumer_RetriesTransientErrors(t *testing.T) {
	r := newFakeReader(kafka.Message{Key: []byte("b1"), Value: []byte("1")})

	attempts := 0
	c := newTestConsumer(r, nil, func(ctx context.Context, msg Message) error {
		attempts++
		if attempts < 2 {
			return NewTransientError("mongo timeout", nil)
		}
		return nil
	})

	runUntilDrained(t, c, r)

	assert.Equal(t, 2, attempts)
	assert.Len(t, r.committed, 1)
}

func TestConsumer_PermanentErrorGoesToDLQ(t *testing.T) {
	r := newFakeReader(kafka.Message{Key: []byte("b1"), Value: []byte("{")})
	dlq := &fakeWriter{}

	attempts := 0
	c := newTestConsumer(r, dlq, func(ctx context.Context, msg Message) error {
		attempts++
		return NewPermanentError("deserialization failed", errors.New("unexpected EOF"))
	})

	runUntilDrained(t, c, r)

	assert.Equal(t, 1, attempts)
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "notifier", header(dlq.messages[0], "dlq-consumer-group"))
	assert.Len(t, r.committed, 1, "poison messages are committed so the partition moves on")
}

func TestConsumer_ExhaustedRetries(t *testing.T) {
	r := newFakeReader(kafka.Message{Key: []byte("b1"), Value: []byte("1")})
	dlq := &fakeWriter{}

	attempts := 0
	c := newTestConsumer(r, dlq, func(ctx context.Context, msg Message) error {
		attempts++
		return NewTransientError("connection refused", nil)
	})

	runUntilDrained(t, c, r)

	assert.Equal(t, 3, attempts, "initial attempt plus maxRetries")
	assert.Len(t, dlq.messages, 1)
}

func TestConsumer_StartAfterClose(t *testing.T) {
	c := newTestConsumer(newFakeReader(), nil, func(ctx context.Context, msg Message) error { return nil })
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Start(context.Background()), ErrConsumerClosed)
}
