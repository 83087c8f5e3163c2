// Package notifier turns library domain events into member notices.
package notifier

import (
	"context"
	"fmt"
	"time"

	"bookshelf/pkg/events"
	"bookshelf/pkg/kafka"
	"bookshelf/pkg/logger"
)

const dueDateLayout = "Mon, 02 Jan 2006"

type Notice struct {
	UserID   string
	BorrowID string
	Kind     events.Type
	Subject  string
	Body     string
}

// Sink delivers a rendered notice to the member.
type Sink interface {
	Deliver(ctx context.Context, n Notice) error
}

// LogSink writes notices to the service log. It stands in for a mail or
// push gateway.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Deliver(ctx context.Context, n Notice) error {
	s.log.Info("member notice",
		"user_id", n.UserID,
		"borrow_id", n.BorrowID,
		"kind", n.Kind,
		"subject", n.Subject,
		"body", n.Body,
	)
	return nil
}

type Notifier struct {
	sink Sink
	log  *logger.Logger
}

func New(sink Sink, log *logger.Logger) *Notifier {
	return &Notifier{sink: sink, log: log}
}

// Handle is a kafka.MessageHandler. Undecodable payloads are permanent
// failures and end up in the DLQ; sink failures are retried.
func (n *Notifier) Handle(ctx context.Context, msg kafka.Message) error {
	e, err := events.Decode(msg.Value)
	if err != nil {
		return kafka.NewPermanentError("deserialization failed", err).
			WithDetail("event_id", msg.GetEventID())
	}

	notice, ok := Render(e)
	if !ok {
		n.log.Debug("event needs no notice",
			"event_id", e.ID,
			"event_type", e.Type,
			"correlation_id", msg.GetCorrelationID(),
		)
		return nil
	}

	if err := n.sink.Deliver(ctx, notice); err != nil {
		return kafka.NewTransientError("notice delivery failed", err).
			WithDetail("event_id", e.ID).
			WithDetail("correlation_id", msg.GetCorrelationID()).
			WithDetail("user_id", notice.UserID)
	}
	return nil
}

// Render builds the notice for e. The second result is false for events
// members are not told about.
func Render(e events.Event) (Notice, bool) {
	n := Notice{UserID: e.UserID, BorrowID: e.BorrowID, Kind: e.Type}
	if n.UserID == "" {
		return Notice{}, false
	}

	switch e.Type {
	case events.BorrowRequested:
		n.Subject = "Borrow request received"
		n.Body = fmt.Sprintf("Your request to borrow %s is waiting for librarian approval.", bookLabel(e))
		if e.DueDate != nil {
			n.Body += fmt.Sprintf(" Requested due date: %s.", e.DueDate.UTC().Format(dueDateLayout))
		}

	case events.BorrowApproved:
		if e.DueDate == nil {
			return Notice{}, false
		}
		n.Subject = "Borrow approved"
		n.Body = fmt.Sprintf("Your borrow of %s was approved. Please return it by %s.",
			bookLabel(e), e.DueDate.UTC().Format(dueDateLayout))

	case events.BorrowReturned:
		if e.LateFee <= 0 {
			return Notice{}, false
		}
		n.Subject = "Late return fee"
		n.Body = fmt.Sprintf("%s came back %s late. A late fee of %d is due.",
			bookLabel(e), plural(e.DaysLate, "day"), e.LateFee)

	default:
		return Notice{}, false
	}

	return n, true
}

func bookLabel(e events.Event) string {
	if e.BookTitle != "" {
		return fmt.Sprintf("%q", e.BookTitle)
	}
	return "book " + e.BookID
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ReportEvery logs report() on every tick until ctx is done.
func ReportEvery(ctx context.Context, interval time.Duration, report func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report()
		}
	}
}
