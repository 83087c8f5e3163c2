package repository

import (
	borrowingerrors "bookshelf/internal/borrowing/errors"
	"bookshelf/pkg/config"
	mongotx "bookshelf/pkg/db/mongo"
	"bookshelf/pkg/model"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Borrow_records"
)

type BorrowRepository interface {
	Create(ctx context.Context, record *model.BorrowRecord) error
	FindByID(ctx context.Context, id string) (*model.BorrowRecord, error)
	FindOpen(ctx context.Context, bookID string, userID string) (*model.BorrowRecord, error)
	CountOutstanding(ctx context.Context, userID string) (int64, error)
	Find(ctx context.Context, filter model.HistoryFilter) ([]*model.BorrowRecord, error)
	Approve(ctx context.Context, id string, approverID string) error
	MarkReturned(ctx context.Context, id string, ret Return) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

// Return carries the fields written when a borrow record is closed.
type Return struct {
	ReturnedAt time.Time
	Condition  model.BookCondition
	LateFee    int64
	Notes      string
}

type mongoBorrowRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBorrowRepository(cfg *config.Config) BorrowRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBorrowRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", borrowingerrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoBorrowRepository) Create(ctx context.Context, record *model.BorrowRecord) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	record.CreatedAt = now()
	record.UpdatedAt = record.CreatedAt
	result, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to create borrow record: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		record.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBorrowRepository) FindByID(ctx context.Context, id string) (*model.BorrowRecord, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var record model.BorrowRecord
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, borrowingerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find borrow record: %w", err)
	}

	return &record, nil
}

// FindOpen returns the most recent record of userID for bookID that a
// return can still close.
func (r *mongoBorrowRepository) FindOpen(ctx context.Context, bookID string, userID string) (*model.BorrowRecord, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"book_id": bookID,
		"user_id": userID,
		"status":  bson.M{"$in": model.ReturnableBorrowStatuses},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "borrowed_at", Value: -1}})

	var record model.BorrowRecord
	err := r.collection.FindOne(ctx, filter, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, borrowingerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open borrow record: %w", err)
	}

	return &record, nil
}

// CountOutstanding counts the records of userID that hold against the borrow
// limit.
func (r *mongoBorrowRepository) CountOutstanding(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"user_id": userID,
		"status":  bson.M{"$in": model.OutstandingBorrowStatuses},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count outstanding borrows: %w", err)
	}
	return count, nil
}

// Find lists records in insertion order. Empty filter fields match all.
func (r *mongoBorrowRepository) Find(ctx context.Context, f model.HistoryFilter) ([]*model.BorrowRecord, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find borrow records: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*model.BorrowRecord, 0)
	if err = cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode borrow records: %w", err)
	}

	return records, nil
}

func (r *mongoBorrowRepository) Approve(ctx context.Context, id string, approverID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "status": model.BorrowPending}
	update := bson.M{
		"$set": bson.M{
			"status":      model.BorrowActive,
			"approved_by": approverID,
			"updated_at":  now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to approve borrow record: %w", err)
	}
	if result.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return fmt.Errorf("failed to check borrow record existence: %w", err)
		}
		if n == 0 {
			return borrowingerrors.ErrNotFound
		}
		return borrowingerrors.ErrNotPending
	}
	return nil
}

func (r *mongoBorrowRepository) MarkReturned(ctx context.Context, id string, ret Return) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	set := bson.M{
		"status":      model.BorrowReturned,
		"returned_at": ret.ReturnedAt,
		"condition":   ret.Condition,
		"late_fee":    ret.LateFee,
		"updated_at":  now(),
	}
	if ret.Notes != "" {
		set["notes"] = ret.Notes
	}

	filter := bson.M{
		"_id":    oid,
		"status": bson.M{"$in": model.ReturnableBorrowStatuses},
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to mark borrow record returned: %w", err)
	}
	if result.MatchedCount == 0 {
		return borrowingerrors.ErrNotFound
	}
	return nil
}

func (r *mongoBorrowRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
