package repository

import (
	borrowingerrors "bookshelf/internal/borrowing/errors"
	"bookshelf/pkg/config"
	mongotx "bookshelf/pkg/db/mongo"
	"bookshelf/pkg/model"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Book_locks"

// BookLockRepository stores advisory locks. A lock is held while its
// document exists; a TTL index reaps locks whose holder died.
type BookLockRepository interface {
	Create(ctx context.Context, lock *model.BookLock) error
	Delete(ctx context.Context, lockID string) error
}

type mongoBookLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewBookLockRepository(cfg *config.Config) BookLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
	}
}

// Create returns ErrLockHeld if the lock document already exists.
func (r *mongoBookLockRepository) Create(ctx context.Context, lock *model.BookLock) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	lock.CreatedAt = now()

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", borrowingerrors.ErrLockHeld, lock.ID)
		}
		return fmt.Errorf("failed to create book lock: %w", err)
	}
	return nil
}

func (r *mongoBookLockRepository) Delete(ctx context.Context, lockID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID}); err != nil {
		return fmt.Errorf("failed to delete book lock: %w", err)
	}
	return nil
}
