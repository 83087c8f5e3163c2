package repository

import (
	catalogerrors "bookshelf/internal/catalog/errors"
	"bookshelf/pkg/config"
	mongotx "bookshelf/pkg/db/mongo"
	"bookshelf/pkg/model"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Books"
)

type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	CreateMany(ctx context.Context, books []*model.Book) error
	FindByID(ctx context.Context, id string) (*model.Book, error)
	Find(ctx context.Context, filter model.BookFilter, limit int, offset int64) ([]*model.Book, error)
	Count(ctx context.Context, filter model.BookFilter) (int64, error)
	UpdateStatus(ctx context.Context, id string, status model.BookStatus) error
	MarkBorrowed(ctx context.Context, id string, userID string, borrowedAt, dueDate time.Time) error
	MarkReturned(ctx context.Context, id string, status model.BookStatus) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookRepository(cfg *config.Config) BookRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookRepository{
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
		return primitive.NilObjectID, fmt.Errorf("%w: %s", catalogerrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoBookRepository) Create(ctx context.Context, book *model.Book) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	book.CreatedAt = now()
	book.UpdatedAt = book.CreatedAt
	result, err := r.collection.InsertOne(ctx, book)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", catalogerrors.ErrDuplicateISBN, book.ISBN)
		}
		return fmt.Errorf("failed to create book: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		book.ID = oid.Hex()
	}
	return nil
}

// CreateMany inserts all copies or none when called inside a transaction.
func (r *mongoBookRepository) CreateMany(ctx context.Context, books []*model.Book) error {
	if len(books) == 0 {
		return nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	createdAt := now()
	docs := make([]any, len(books))
	for i, b := range books {
		b.CreatedAt = createdAt
		b.UpdatedAt = createdAt
		docs[i] = b
	}

	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return catalogerrors.ErrDuplicateISBN
		}
		return fmt.Errorf("failed to create books: %w", err)
	}

	for i, id := range result.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok && i < len(books) {
			books[i].ID = oid.Hex()
		}
	}
	return nil
}

func (r *mongoBookRepository) FindByID(ctx context.Context, id string) (*model.Book, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var book model.Book
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&book)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalogerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find book: %w", err)
	}

	return &book, nil
}

func (r *mongoBookRepository) Find(ctx context.Context, filter model.BookFilter, limit int, offset int64) ([]*model.Book, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, BuildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find books: %w", err)
	}
	defer cursor.Close(ctx)

	books := make([]*model.Book, 0)
	if err = cursor.All(ctx, &books); err != nil {
		return nil, fmt.Errorf("failed to decode books: %w", err)
	}

	return books, nil
}

func (r *mongoBookRepository) Count(ctx context.Context, filter model.BookFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, BuildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

// BuildFilter translates list filters into a Mongo query. Title and author
// match as case-insensitive literal substrings.
func BuildFilter(f model.BookFilter) bson.M {
	filter := bson.M{}

	if f.Title != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Title), Options: "i"}
	}
	if f.Author != "" {
		filter["author"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Author), Options: "i"}
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.MinPages != nil || f.MaxPages != nil {
		pages := bson.M{}
		if f.MinPages != nil {
			pages["$gte"] = *f.MinPages
		}
		if f.MaxPages != nil {
			pages["$lte"] = *f.MaxPages
		}
		filter["page_count"] = pages
	}

	return filter
}

var loanFields = bson.M{
	"borrowed_by": "",
	"borrowed_at": "",
	"due_date":    "",
}

// UpdateStatus sets status directly. Any status other than borrowed drops the
// loan projection.
func (r *mongoBookRepository) UpdateStatus(ctx context.Context, id string, status model.BookStatus) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": now(),
		},
	}
	if status != model.BookBorrowed {
		update["$unset"] = loanFields
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update book status: %w", err)
	}
	if result.MatchedCount == 0 {
		return catalogerrors.ErrNotFound
	}
	return nil
}

// MarkBorrowed flips an available book to borrowed. It fails with
// ErrStatusConflict when the book exists but is no longer available.
func (r *mongoBookRepository) MarkBorrowed(ctx context.Context, id string, userID string, borrowedAt, dueDate time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "status": model.BookAvailable}
	update := bson.M{
		"$set": bson.M{
			"status":      model.BookBorrowed,
			"borrowed_by": userID,
			"borrowed_at": borrowedAt,
			"due_date":    dueDate,
			"updated_at":  now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark book borrowed: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, oid)
	}
	return nil
}

func (r *mongoBookRepository) MarkReturned(ctx context.Context, id string, status model.BookStatus) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": now(),
		},
		"$unset": loanFields,
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to mark book returned: %w", err)
	}
	if result.MatchedCount == 0 {
		return catalogerrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookRepository) missOrConflict(ctx context.Context, oid primitive.ObjectID) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to check book existence: %w", err)
	}
	if n == 0 {
		return catalogerrors.ErrNotFound
	}
	return catalogerrors.ErrStatusConflict
}

func (r *mongoBookRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	if result.DeletedCount == 0 {
		return catalogerrors.ErrNotFound
	}

	return nil
}

func (r *mongoBookRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
