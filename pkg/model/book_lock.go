package model

import "time"

// BookLock is an advisory lock held while a workflow operation mutates a book
// or, for borrows, while a member's limit check runs.
// Documents expire through a TTL index on ExpiresAt.
type BookLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
