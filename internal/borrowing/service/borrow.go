package service

import (
	borrowingerrors "bookshelf/internal/borrowing/errors"
	"bookshelf/internal/borrowing/repository"
	"bookshelf/internal/borrowing/validator"
	catalogerrors "bookshelf/internal/catalog/errors"
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
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

const day = 24 * time.Hour

// BookStore is the slice of the catalog the workflow needs.
type BookStore interface {
	FindByID(ctx context.Context, id string) (*model.Book, error)
	MarkBorrowed(ctx context.Context, id string, userID string, borrowedAt, dueDate time.Time) error
	MarkReturned(ctx context.Context, id string, status model.BookStatus) error
}

type BorrowService interface {
	BorrowBook(ctx context.Context, bookID string, userID string, durationDays int) (*model.BorrowResult, error)
	ReturnBook(ctx context.Context, bookID string, userID string, req model.ReturnRequest) (*model.ReturnResult, error)
	ApproveBorrow(ctx context.Context, borrowID string, approverID string) (*model.BorrowRecord, error)
	GetBorrowHistory(ctx context.Context, caller model.Identity, filter model.HistoryFilter) ([]*model.BorrowRecord, error)
}

type borrowService struct {
	books     BookStore
	borrows   repository.BorrowRepository
	locks     repository.BookLockRepository
	validator *validator.BorrowValidator
	policy    *policy.Policy
	emitter   *events.Emitter
	cfg       *config.Config
	now       func() time.Time
}

func NewBorrowService(
	books BookStore,
	borrows repository.BorrowRepository,
	locks repository.BookLockRepository,
	validator *validator.BorrowValidator,
	policy *policy.Policy,
	emitter *events.Emitter,
	cfg *config.Config,
) BorrowService {
	return newBorrowService(books, borrows, locks, validator, policy, emitter, cfg, time.Now)
}

func newBorrowService(
	books BookStore,
	borrows repository.BorrowRepository,
	locks repository.BookLockRepository,
	validator *validator.BorrowValidator,
	policy *policy.Policy,
	emitter *events.Emitter,
	cfg *config.Config,
	now func() time.Time,
) *borrowService {
	return &borrowService{
		books:     books,
		borrows:   borrows,
		locks:     locks,
		validator: validator,
		policy:    policy,
		emitter:   emitter,
		cfg:       cfg,
		now:       now,
	}
}

// BorrowBook opens a pending borrow record and marks the book borrowed in one
// transaction. A non-positive durationDays selects the configured default.
func (s *borrowService) BorrowBook(ctx context.Context, bookID string, userID string, durationDays int) (*model.BorrowResult, error) {
	if bookID == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	if durationDays <= 0 {
		durationDays = s.cfg.BorrowDurationDays
	}
	if err := s.validator.ValidateDuration(durationDays, s.cfg.MaxBorrowDurationDays); err != nil {
		return nil, validationError(fmt.Sprintf("Borrow duration cannot exceed %d days", s.cfg.MaxBorrowDurationDays), err)
	}

	release, err := s.acquireBookLock(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	releaseUser, err := s.acquireUserLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer releaseUser()

	var record *model.BorrowRecord
	var title string
	err = s.borrows.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		book, err := s.books.FindByID(sessCtx, bookID)
		if err != nil {
			return mapBookError(err, bookID)
		}
		title = book.Title

		if book.Status != model.BookAvailable {
			s.cfg.Log.Warn("Borrow rejected: book unavailable",
				"book_id", bookID,
				"user_id", userID,
				"status", book.Status,
			)
			return apperrors.Validation("Book is not available for borrowing", map[string]any{"status": book.Status})
		}

		outstanding, err := s.borrows.CountOutstanding(sessCtx, userID)
		if err != nil {
			return apperrors.Internal("Failed to count active borrows", err)
		}
		if outstanding >= int64(s.cfg.MaxActiveBorrows) {
			s.cfg.Log.Warn("Borrow rejected: limit reached",
				"user_id", userID,
				"outstanding", outstanding,
				"limit", s.cfg.MaxActiveBorrows,
			)
			return apperrors.Validation(fmt.Sprintf("Cannot borrow more than %d books at a time", s.cfg.MaxActiveBorrows), nil)
		}

		borrowedAt := s.timestamp()
		record = &model.BorrowRecord{
			BookID:     bookID,
			UserID:     userID,
			BorrowedAt: borrowedAt,
			DueDate:    borrowedAt.Add(time.Duration(durationDays) * day),
			Status:     model.BorrowPending,
		}
		if err := s.borrows.Create(sessCtx, record); err != nil {
			return apperrors.Internal("Failed to create borrow record", err)
		}

		if err := s.books.MarkBorrowed(sessCtx, bookID, userID, record.BorrowedAt, record.DueDate); err != nil {
			if errors.Is(err, catalogerrors.ErrStatusConflict) {
				return apperrors.Validation("Book is not available for borrowing", nil)
			}
			return mapBookError(err, bookID)
		}

		return nil
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeValidation) && !apperrors.HasCode(err, apperrors.CodeNotFound) {
			s.cfg.Log.Error("Failed to borrow book", "book_id", bookID, "user_id", userID, "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Book borrowed",
		"borrow_id", record.ID,
		"book_id", bookID,
		"user_id", userID,
		"due_date", record.DueDate,
	)

	e := events.New(events.BorrowRequested, record.BorrowedAt)
	e.BookID = bookID
	e.BookTitle = title
	e.UserID = userID
	e.BorrowID = record.ID
	e.ActorID = userID
	e.Status = string(record.Status)
	e.DueDate = &record.DueDate
	s.emitter.Emit(ctx, e)

	return &model.BorrowResult{
		BorrowID:   record.ID,
		BookID:     bookID,
		UserID:     userID,
		BorrowedAt: record.BorrowedAt,
		DueDate:    record.DueDate,
		Status:     record.Status,
	}, nil
}

// ReturnBook closes the caller's open record for bookID and puts the book
// back on the shelf. The ledger is authoritative: a book that disappeared
// from the catalog does not block the return.
func (s *borrowService) ReturnBook(ctx context.Context, bookID string, userID string, req model.ReturnRequest) (*model.ReturnResult, error) {
	if bookID == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	req.Notes = sanitizer.SanitizeNotes(req.Notes)
	if err := s.validator.ValidateReturn(&req); err != nil {
		return nil, validationError("Return validation failed", err)
	}
	condition := req.Condition
	if condition == "" {
		condition = model.ConditionGood
	}

	release, err := s.acquireBookLock(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer release()

	var record *model.BorrowRecord
	var result model.ReturnResult
	err = s.borrows.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		record, err = s.borrows.FindOpen(sessCtx, bookID, userID)
		if err != nil {
			if errors.Is(err, borrowingerrors.ErrNotFound) {
				return apperrors.NotFound("Active borrow record")
			}
			return apperrors.Internal("Failed to find borrow record", err)
		}

		returnedAt := s.timestamp()
		result = model.ReturnResult{ReturnedAt: returnedAt}
		var fee int64
		if days, late := daysLate(record.DueDate, returnedAt); late {
			fee = days * int64(s.cfg.LateFeePerDay)
			result.DaysLate = &days
			result.LateFee = &fee
		}

		ret := repository.Return{
			ReturnedAt: returnedAt,
			Condition:  condition,
			LateFee:    fee,
			Notes:      req.Notes,
		}
		if err := s.borrows.MarkReturned(sessCtx, record.ID, ret); err != nil {
			if errors.Is(err, borrowingerrors.ErrNotFound) {
				return apperrors.NotFound("Active borrow record")
			}
			return apperrors.Internal("Failed to update borrow record", err)
		}

		status := model.BookAvailable
		if condition == model.ConditionDamaged {
			status = model.BookDamaged
		}
		if err := s.books.MarkReturned(sessCtx, bookID, status); err != nil {
			if errors.Is(err, catalogerrors.ErrNotFound) || errors.Is(err, catalogerrors.ErrInvalidID) {
				s.cfg.Log.Warn("Returned book missing from catalog", "book_id", bookID, "borrow_id", record.ID)
				return nil
			}
			return apperrors.Internal("Failed to update book", err)
		}

		return nil
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			s.cfg.Log.Error("Failed to return book", "book_id", bookID, "user_id", userID, "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Book returned",
		"borrow_id", record.ID,
		"book_id", bookID,
		"user_id", userID,
		"condition", condition,
		"late", result.DaysLate != nil,
	)

	e := events.New(events.BorrowReturned, result.ReturnedAt)
	e.BookID = bookID
	e.UserID = userID
	e.BorrowID = record.ID
	e.ActorID = userID
	e.Status = string(model.BorrowReturned)
	e.Condition = string(condition)
	if result.DaysLate != nil {
		e.DaysLate = *result.DaysLate
		e.LateFee = *result.LateFee
	}
	s.emitter.Emit(ctx, e)

	return &result, nil
}

// ApproveBorrow activates a pending record.
func (s *borrowService) ApproveBorrow(ctx context.Context, borrowID string, approverID string) (*model.BorrowRecord, error) {
	if borrowID == "" {
		return nil, apperrors.InvalidInput("Borrow ID cannot be empty")
	}

	record, err := s.borrows.FindByID(ctx, borrowID)
	if err != nil {
		return nil, mapBorrowError(err, borrowID)
	}

	if record.Status != model.BorrowPending {
		s.cfg.Log.Warn("Approval rejected: record not pending", "borrow_id", borrowID, "status", record.Status)
		return nil, apperrors.Validation("Borrow request is not pending", map[string]any{"status": record.Status})
	}

	if err := s.borrows.Approve(ctx, borrowID, approverID); err != nil {
		if errors.Is(err, borrowingerrors.ErrNotPending) {
			return nil, apperrors.Validation("Borrow request is not pending", nil)
		}
		s.cfg.Log.Error("Failed to approve borrow", "borrow_id", borrowID, "error", err)
		return nil, mapBorrowError(err, borrowID)
	}

	record.Status = model.BorrowActive
	record.ApprovedBy = approverID
	record.UpdatedAt = s.timestamp()

	s.cfg.Log.Info("Borrow approved",
		"borrow_id", borrowID,
		"book_id", record.BookID,
		"user_id", record.UserID,
		"approved_by", approverID,
	)

	e := events.New(events.BorrowApproved, record.UpdatedAt)
	e.BookID = record.BookID
	e.UserID = record.UserID
	e.BorrowID = borrowID
	e.ActorID = approverID
	e.Status = string(record.Status)
	e.DueDate = &record.DueDate
	s.emitter.Emit(ctx, e)

	return record, nil
}

// GetBorrowHistory lists borrow records visible to caller. Members only ever
// see their own records regardless of the requested user.
func (s *borrowService) GetBorrowHistory(ctx context.Context, caller model.Identity, filter model.HistoryFilter) ([]*model.BorrowRecord, error) {
	if err := s.validator.ValidateHistoryStatus(filter.Status); err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status filter: %s", filter.Status))
	}

	filter.UserID = s.policy.HistoryUserID(caller, filter.UserID)

	records, err := s.borrows.Find(ctx, filter)
	if err != nil {
		s.cfg.Log.Error("Failed to list borrow history",
			"user_id", filter.UserID,
			"status", filter.Status,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve borrow history", err)
	}

	return records, nil
}

// --- Helpers ---

func (s *borrowService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// acquireBookLock takes the advisory lock for bookID and returns its release
// func. The lock outlives a cancelled request only until its TTL.
func (s *borrowService) acquireBookLock(ctx context.Context, bookID string) (func(), error) {
	return s.acquireLock(ctx, fmt.Sprintf("book_lock_%s", bookID), "book is being processed", "book_id", bookID)
}

// acquireUserLock serializes borrows of one member so that concurrent
// requests for different books cannot both pass the limit check.
func (s *borrowService) acquireUserLock(ctx context.Context, userID string) (func(), error) {
	return s.acquireLock(ctx, fmt.Sprintf("user_lock_%s", userID), "another borrow request for this user is being processed", "user_id", userID)
}

func (s *borrowService) acquireLock(ctx context.Context, lockID string, busyMessage string, key string, id string) (func(), error) {
	lock := &model.BookLock{
		ID:        lockID,
		ExpiresAt: s.now().UTC().Add(s.cfg.BookLockTTL),
	}

	if err := s.locks.Create(ctx, lock); err != nil {
		if errors.Is(err, borrowingerrors.ErrLockHeld) {
			s.cfg.Log.Warn("Lock contended", "lock_id", lockID, key, id)
			return nil, apperrors.Conflict(busyMessage)
		}
		s.cfg.Log.Error("Failed to acquire lock", "lock_id", lockID, key, id, "error", err)
		return nil, apperrors.Internal("Failed to acquire lock", err)
	}

	return func() {
		if err := s.locks.Delete(context.WithoutCancel(ctx), lockID); err != nil {
			s.cfg.Log.Warn("Failed to release lock", "lock_id", lockID, "error", err)
		}
	}, nil
}

// daysLate counts started days past due. It reports false when returnedAt is
// not after due.
func daysLate(due, returnedAt time.Time) (int64, bool) {
	if !returnedAt.After(due) {
		return 0, false
	}
	overdue := returnedAt.Sub(due)
	return int64((overdue + day - 1) / day), true
}

func mapBookError(err error, bookID string) error {
	if errors.Is(err, catalogerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Book", bookID)
	}
	if errors.Is(err, catalogerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid book ID format")
	}
	return apperrors.Internal("Failed to retrieve book", err)
}

func mapBorrowError(err error, borrowID string) error {
	if errors.Is(err, borrowingerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Borrow record", borrowID)
	}
	if errors.Is(err, borrowingerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid borrow ID format")
	}
	return apperrors.Internal("Failed to retrieve borrow record", err)
}

func validationError(message string, err error) error {
	if ve, ok := validation.AsValidationErrors(err); ok {
		return apperrors.Validation(message, ve.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
