package events

import (
	"context"
	"fmt"
	"time"

	"bookshelf/pkg/kafka"
	"bookshelf/pkg/logger"
	"bookshelf/pkg/middleware"
)

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, e Event) error { return nil }

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer messagePublisher
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}

	payload, err := Encode(e)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
	}

	builder := kafka.NewMessage().
		WithKey(e.Key()).
		WithRawValue(payload).
		WithEventID(e.ID).
		WithEventType(string(e.Type)).
		WithSource(p.source).
		WithSchemaVersion(SchemaVersion)
	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		builder = builder.WithCorrelationID(requestID)
	}

	return p.producer.Publish(ctx, builder.Build())
}

// Emitter publishes after the triggering write has committed. Failures are
// logged and never reach the caller.
type Emitter struct {
	publisher Publisher
	timeout   time.Duration
	log       *logger.Logger
}

func NewEmitter(publisher Publisher, timeout time.Duration, log *logger.Logger) *Emitter {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Emitter{publisher: publisher, timeout: timeout, log: log}
}

func (em *Emitter) Emit(ctx context.Context, e Event) {
	if em == nil {
		return
	}

	// the request may already be done; the event must still go out
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), em.timeout)
	defer cancel()

	if err := em.publisher.Publish(pubCtx, e); err != nil {
		em.log.Warn("failed to publish event",
			"event_id", e.ID,
			"event_type", e.Type,
			"book_id", e.BookID,
			"user_id", e.UserID,
			"error", err,
		)
	}
}
