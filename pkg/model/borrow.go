package model

import "time"

type BorrowStatus string

const (
	BorrowPending  BorrowStatus = "pending"
	BorrowApproved BorrowStatus = "approved"
	BorrowActive   BorrowStatus = "active"
	BorrowReturned BorrowStatus = "returned"
	BorrowOverdue  BorrowStatus = "overdue"
)

var BorrowStatuses = []BorrowStatus{BorrowPending, BorrowApproved, BorrowActive, BorrowReturned, BorrowOverdue}

// OutstandingBorrowStatuses count against a member's borrow limit.
var OutstandingBorrowStatuses = []BorrowStatus{BorrowPending, BorrowApproved, BorrowActive}

// ReturnableBorrowStatuses are the record states a return can close.
var ReturnableBorrowStatuses = []BorrowStatus{BorrowActive, BorrowOverdue, BorrowPending, BorrowApproved}

func (s BorrowStatus) Valid() bool {
	for _, known := range BorrowStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type BookCondition string

const (
	ConditionGood    BookCondition = "good"
	ConditionDamaged BookCondition = "damaged"
)

type BorrowRecord struct {
	ID         string        `json:"id,omitempty" bson:"_id,omitempty"`
	BookID     string        `json:"book_id" bson:"book_id"`
	UserID     string        `json:"user_id" bson:"user_id"`
	BorrowedAt time.Time     `json:"borrowed_at" bson:"borrowed_at"`
	DueDate    time.Time     `json:"due_date" bson:"due_date"`
	ReturnedAt *time.Time    `json:"returned_at,omitempty" bson:"returned_at,omitempty"`
	Status     BorrowStatus  `json:"status" bson:"status"`
	ApprovedBy string        `json:"approved_by,omitempty" bson:"approved_by,omitempty"`
	Condition  BookCondition `json:"condition,omitempty" bson:"condition,omitempty"`
	LateFee    int64         `json:"late_fee" bson:"late_fee"`
	Notes      string        `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" bson:"updated_at"`
}

// BorrowRequest is the optional body of a borrow call. A missing or
// non-positive duration falls back to the configured default.
type BorrowRequest struct {
	DurationDays int `json:"duration_days,omitempty"`
}

type BorrowResult struct {
	BorrowID   string       `json:"borrow_id"`
	BookID     string       `json:"book_id"`
	UserID     string       `json:"user_id"`
	BorrowedAt time.Time    `json:"borrowed_at"`
	DueDate    time.Time    `json:"due_date"`
	Status     BorrowStatus `json:"status"`
}

type ReturnRequest struct {
	Condition BookCondition `json:"condition,omitempty" validate:"omitempty,oneof=good damaged"`
	Notes     string        `json:"notes,omitempty" validate:"max=500"`
}

// ReturnResult omits LateFee and DaysLate when the book came back on time.
type ReturnResult struct {
	ReturnedAt time.Time `json:"returned_at"`
	LateFee    *int64    `json:"late_fee,omitempty"`
	DaysLate   *int64    `json:"days_late,omitempty"`
}

type HistoryFilter struct {
	UserID string
	Status BorrowStatus
}
