package model

import "time"

type BookStatus string

const (
	BookAvailable BookStatus = "available"
	BookBorrowed  BookStatus = "borrowed"
	BookDamaged   BookStatus = "damaged"
	BookImporting BookStatus = "importing"
	BookLost      BookStatus = "lost"
)

var BookStatuses = []BookStatus{BookAvailable, BookBorrowed, BookDamaged, BookImporting, BookLost}

func (s BookStatus) Valid() bool {
	for _, known := range BookStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Book is a single physical copy in the catalog. BorrowedBy, BorrowedAt and
// DueDate mirror the open loan and are set only while Status is borrowed.
type Book struct {
	ID            string     `json:"id,omitempty" bson:"_id,omitempty"`
	Title         string     `json:"title" bson:"title"`
	Author        string     `json:"author" bson:"author"`
	ISBN          string     `json:"isbn" bson:"isbn"`
	Category      string     `json:"category" bson:"category"`
	PageCount     int        `json:"page_count" bson:"page_count"`
	PublishedYear int        `json:"published_year,omitempty" bson:"published_year,omitempty"`
	Status        BookStatus `json:"status" bson:"status"`
	BorrowedBy    string     `json:"borrowed_by,omitempty" bson:"borrowed_by,omitempty"`
	BorrowedAt    *time.Time `json:"borrowed_at,omitempty" bson:"borrowed_at,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty" bson:"due_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" bson:"updated_at"`
}

// BookInput is the body of a catalog create request. Quantity copies are
// created from one input.
type BookInput struct {
	Title         string     `json:"title" validate:"required,min=1,max=200"`
	Author        string     `json:"author" validate:"required,min=1,max=120"`
	ISBN          string     `json:"isbn" validate:"required,min=10,max=17"`
	Category      string     `json:"category" validate:"required,min=1,max=60"`
	PageCount     int        `json:"page_count" validate:"required,min=1,max=10000"`
	PublishedYear int        `json:"published_year,omitempty" validate:"omitempty,min=1000,max=2100"`
	Quantity      int        `json:"quantity,omitempty" validate:"omitempty,min=1,max=100"`
	Status        BookStatus `json:"status,omitempty" validate:"omitempty,oneof=available borrowed damaged importing lost"`
}

type BookStatusUpdate struct {
	Status BookStatus `json:"status" validate:"required"`
}

type BookFilter struct {
	Title    string
	Author   string
	Status   BookStatus
	Category string
	MinPages *int
	MaxPages *int
}
