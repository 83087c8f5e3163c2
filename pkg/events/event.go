// Package events defines the domain events emitted by the library service
// and the publishers that deliver them.
package events

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

type Type string

const (
	BookCreated       Type = "book.created"
	BookStatusChanged Type = "book.status_changed"
	BookDeleted       Type = "book.deleted"
	BorrowRequested   Type = "borrow.requested"
	BorrowApproved    Type = "borrow.approved"
	BorrowReturned    Type = "borrow.returned"
)

const SchemaVersion = "1"

var codec = jsoniter.ConfigFastest

var knownTypes = map[Type]bool{
	BookCreated:       true,
	BookStatusChanged: true,
	BookDeleted:       true,
	BorrowRequested:   true,
	BorrowApproved:    true,
	BorrowReturned:    true,
}

func (t Type) Valid() bool {
	return knownTypes[t]
}

// Event is a flat envelope. Only the fields relevant to Type are set.
type Event struct {
	ID         string     `json:"id"`
	Type       Type       `json:"type"`
	OccurredAt time.Time  `json:"occurred_at"`
	BookID     string     `json:"book_id,omitempty"`
	BookTitle  string     `json:"book_title,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	BorrowID   string     `json:"borrow_id,omitempty"`
	ActorID    string     `json:"actor_id,omitempty"`
	Status     string     `json:"status,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	LateFee    int64      `json:"late_fee,omitempty"`
	DaysLate   int64      `json:"days_late,omitempty"`
	Condition  string     `json:"condition,omitempty"`
}

func New(t Type, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: at.UTC(),
	}
}

// Key is the partition key: book events stay ordered per book.
func (e Event) Key() string {
	if e.BookID != "" {
		return e.BookID
	}
	return e.UserID
}

func Encode(e Event) ([]byte, error) {
	return codec.Marshal(e)
}

func Decode(data []byte) (Event, error) {
	var e Event
	if err := codec.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
