package service

import (
	catalogerrors "bookshelf/internal/catalog/errors"
	"bookshelf/internal/catalog/repository"
	"bookshelf/internal/catalog/validator"
	"bookshelf/internal/policy"
	"bookshelf/pkg/config"
	apperrors "bookshelf/pkg/errors"
	"bookshelf/pkg/events"
	"bookshelf/pkg/model"
	"bookshelf/pkg/sanitizer"
	"bookshelf/pkg/validation"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type BookService interface {
	List(ctx context.Context, filter model.BookFilter, limit int, offset int64) ([]*model.Book, int64, error)
	GetByID(ctx context.Context, id string) (*model.Book, error)
	Create(ctx context.Context, input *model.BookInput, actorID string) ([]*model.Book, error)
	UpdateStatus(ctx context.Context, id string, status model.BookStatus, actor model.Identity) (*model.Book, error)
	Delete(ctx context.Context, id string, actorID string) error
}

type bookService struct {
	repo      repository.BookRepository
	validator *validator.BookValidator
	policy    *policy.Policy
	emitter   *events.Emitter
	cfg       *config.Config
	now       func() time.Time
}

func NewBookService(
	repo repository.BookRepository,
	validator *validator.BookValidator,
	policy *policy.Policy,
	emitter *events.Emitter,
	cfg *config.Config,
) BookService {
	return &bookService{
		repo:      repo,
		validator: validator,
		policy:    policy,
		emitter:   emitter,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookService) List(ctx context.Context, filter model.BookFilter, limit int, offset int64) ([]*model.Book, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status filter: %s", filter.Status))
	}
	if filter.MinPages != nil && filter.MaxPages != nil && *filter.MinPages > *filter.MaxPages {
		return nil, 0, apperrors.InvalidInput("min_pages cannot be greater than max_pages")
	}
	filter.Category = sanitizer.SanitizeCategory(filter.Category)
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var books []*model.Book
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count books", "error", errCount)
			errCount = apperrors.Internal("Failed to count books", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		books, errFind = s.repo.Find(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list books",
				"limit", limit,
				"offset", offset,
				"error", errFind,
			)
			errFind = apperrors.Internal("Failed to retrieve books", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return books, count, nil
}

func (s *bookService) GetByID(ctx context.Context, id string) (*model.Book, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve book")
	}

	return book, nil
}

// Create stores quantity copies of the input. Copies share every field except
// the ISBN, which gets a -<n> suffix when more than one copy is created.
func (s *bookService) Create(ctx context.Context, input *model.BookInput, actorID string) ([]*model.Book, error) {
	if input == nil {
		return nil, apperrors.InvalidInput("Book input is required")
	}

	s.sanitize(input)
	if err := s.validator.Validate(input); err != nil {
		s.cfg.Log.Warn("Book validation failed", "isbn", input.ISBN, "error", err)
		return nil, validationError("Book validation failed", err)
	}

	books := s.buildCopies(input)

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.CreateMany(sessCtx, books); err != nil {
			if errors.Is(err, catalogerrors.ErrDuplicateISBN) {
				return apperrors.Conflict(fmt.Sprintf("Book with ISBN %s already exists", input.ISBN))
			}
			return apperrors.Internal("Failed to create book", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			s.cfg.Log.Warn("Book creation rejected: duplicate ISBN", "isbn", input.ISBN, "quantity", len(books))
		} else {
			s.cfg.Log.Error("Failed to create books", "isbn", input.ISBN, "quantity", len(books), "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Books created successfully",
		"isbn", input.ISBN,
		"quantity", len(books),
		"actor_id", actorID,
	)

	for _, b := range books {
		e := events.New(events.BookCreated, s.now())
		e.BookID = b.ID
		e.BookTitle = b.Title
		e.ActorID = actorID
		e.Status = string(b.Status)
		s.emitter.Emit(ctx, e)
	}

	return books, nil
}

func (s *bookService) UpdateStatus(ctx context.Context, id string, status model.BookStatus, actor model.Identity) (*model.Book, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}
	if err := s.validator.ValidateStatus(status); err != nil {
		return nil, validationError(fmt.Sprintf("Invalid book status: %s", status), err)
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve book")
	}

	if !s.policy.CanSetStatus(actor.Role, status) {
		s.cfg.Log.Warn("Book status change denied",
			"id", id,
			"role", actor.Role,
			"status", status,
		)
		return nil, apperrors.Forbidden(s.policy.StatusDeniedMessage(actor.Role))
	}

	previous := book.Status
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		s.cfg.Log.Error("Failed to update book status", "id", id, "status", status, "error", err)
		return nil, s.mapRepoError(err, id, "Failed to update book status")
	}

	book.Status = status
	book.UpdatedAt = s.now().UTC()
	if status != model.BookBorrowed {
		book.BorrowedBy = ""
		book.BorrowedAt = nil
		book.DueDate = nil
	}

	s.cfg.Log.Info("Book status updated",
		"id", id,
		"from", previous,
		"to", status,
		"actor_id", actor.UserID,
	)

	e := events.New(events.BookStatusChanged, s.now())
	e.BookID = id
	e.BookTitle = book.Title
	e.ActorID = actor.UserID
	e.Status = string(status)
	s.emitter.Emit(ctx, e)

	return book, nil
}

func (s *bookService) Delete(ctx context.Context, id string, actorID string) error {
	if id == "" {
		return apperrors.InvalidInput("Book ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapRepoError(err, id, "Failed to delete book")
	}

	s.cfg.Log.Info("Book deleted successfully", "id", id, "actor_id", actorID)

	e := events.New(events.BookDeleted, s.now())
	e.BookID = id
	e.ActorID = actorID
	s.emitter.Emit(ctx, e)

	return nil
}

// --- Helpers ---

func (s *bookService) sanitize(in *model.BookInput) {
	in.Title = sanitizer.SanitizeTitle(in.Title)
	in.Author = sanitizer.SanitizeAuthor(in.Author)
	in.ISBN = sanitizer.SanitizeISBN(in.ISBN)
	in.Category = sanitizer.SanitizeCategory(in.Category)
}

func (s *bookService) buildCopies(in *model.BookInput) []*model.Book {
	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	status := in.Status
	if status == "" {
		status = model.BookImporting
	}

	books := make([]*model.Book, 0, quantity)
	for i := 1; i <= quantity; i++ {
		isbn := in.ISBN
		if quantity > 1 {
			isbn = fmt.Sprintf("%s-%d", in.ISBN, i)
		}
		books = append(books, &model.Book{
			Title:         in.Title,
			Author:        in.Author,
			ISBN:          isbn,
			Category:      in.Category,
			PageCount:     in.PageCount,
			PublishedYear: in.PublishedYear,
			Status:        status,
		})
	}
	return books
}

func (s *bookService) mapRepoError(err error, id string, internalMsg string) error {
	if errors.Is(err, catalogerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Book", id)
	}
	if errors.Is(err, catalogerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid book ID format")
	}
	return apperrors.Internal(internalMsg, err)
}

func validationError(message string, err error) error {
	if ve, ok := validation.AsValidationErrors(err); ok {
		return apperrors.Validation(message, ve.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
