package notifier

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/pkg/events"
	"bookshelf/pkg/kafka"
	"bookshelf/pkg/logger"
)

// ──────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────

type recordingSink struct {
	notices []Notice
	err     error
}

func (s *recordingSink) Deliver(ctx context.Context, n Notice) error {
	if s.err != nil {
		return s.err
	}
	s.notices = append(s.notices, n)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		Output:    io.Discard,
		AddSource: false,
		Service:   "test",
	})
}

func encoded(t *testing.T, e events.Event) kafka.Message {
	t.Helper()
	payload, err := events.Encode(e)
	require.NoError(t, err)
	return kafka.NewMessage().WithRawValue(payload).WithEventID(e.ID).Build()
}

var due = time.Date(2026, 3, 24, 12, 0, 0, 0, time.UTC)

// ──────────────────────────────────────────────
// Render
// ──────────────────────────────────────────────

func TestRender(t *testing.T) {
	approved := events.New(events.BorrowApproved, due)
	approved.UserID = "u1"
	approved.BookID = "b1"
	approved.DueDate = &due

	lateReturn := events.New(events.BorrowReturned, due)
	lateReturn.UserID = "u1"
	lateReturn.BookID = "b1"
	lateReturn.DaysLate = 3
	lateReturn.LateFee = 30

	onTimeReturn := events.New(events.BorrowReturned, due)
	onTimeReturn.UserID = "u1"

	requested := events.New(events.BorrowRequested, due)
	requested.UserID = "u1"
	requested.BookTitle = "Dune"
	requested.DueDate = &due

	statusChanged := events.New(events.BookStatusChanged, due)
	statusChanged.UserID = "u1"

	tests := []struct {
		name        string
		event       events.Event
		wantOK      bool
		wantSubject string
		wantInBody  string
	}{
		{"approval carries due date", approved, true, "Borrow approved", "Tue, 24 Mar 2026"},
		{"late return carries fee", lateReturn, true, "Late return fee", "3 days late. A late fee of 30"},
		{"on-time return is silent", onTimeReturn, false, "", ""},
		{"request names the title", requested, true, "Borrow request received", `"Dune"`},
		{"catalog events are silent", statusChanged, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := Render(tt.event)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, "u1", n.UserID)
			assert.Equal(t, tt.wantSubject, n.Subject)
			assert.Contains(t, n.Body, tt.wantInBody)
		})
	}
}

// ──────────────────────────────────────────────
// Handle
// ──────────────────────────────────────────────

func TestHandle_DeliversNotice(t *testing.T) {
	sink := &recordingSink{}
	n := New(sink, testLogger())

	e := events.New(events.BorrowApproved, due)
	e.UserID = "u1"
	e.DueDate = &due

	require.NoError(t, n.Handle(context.Background(), encoded(t, e)))
	require.Len(t, sink.notices, 1)
	assert.Equal(t, events.BorrowApproved, sink.notices[0].Kind)
}

func TestHandle_UndecodablePayloadIsPermanent(t *testing.T) {
	n := New(&recordingSink{}, testLogger())

	msg := kafka.NewMessage().WithRawValue([]byte("{not json")).Build()
	err := n.Handle(context.Background(), msg)

	require.Error(t, err)
	assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
}

func TestHandle_SinkFailureIsTransient(t *testing.T) {
	n := New(&recordingSink{err: errors.New("gateway down")}, testLogger())

	e := events.New(events.BorrowApproved, due)
	e.UserID = "u1"
	e.DueDate = &due

	err := n.Handle(context.Background(), encoded(t, e))

	require.Error(t, err)
	assert.Equal(t, kafka.ErrorTypeTransient, kafka.ClassifyError(err))
}

func TestHandle_IgnoredEvent(t *testing.T) {
	sink := &recordingSink{}
	n := New(sink, testLogger())

	e := events.New(events.BookCreated, due)
	e.BookID = "b1"

	require.NoError(t, n.Handle(context.Background(), encoded(t, e)))
	assert.Empty(t, sink.notices)
}
