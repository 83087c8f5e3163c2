package service

import (
	borrowingerrors "bookshelf/internal/borrowing/errors"
	"bookshelf/internal/borrowing/repository"
	"bookshelf/internal/borrowing/validator"
	catalogerrors "bookshelf/internal/catalog/errors"
	"bookshelf/internal/policy"
	"bookshelf/pkg/config"
	mongotx "bookshelf/pkg/db/mongo"
	apperrors "bookshelf/pkg/errors"
	"bookshelf/pkg/events"
	"bookshelf/pkg/logger"
	"bookshelf/pkg/model"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// ────────────────────────────────────────────────
// Fakes
// ────────────────────────────────────────────────

type fakeBookStore struct {
	books          map[string]*model.Book
	markBorrowedFn func(id string) error
	markedBorrowed int
}

func (f *fakeBookStore) FindByID(ctx context.Context, id string) (*model.Book, error) {
	b, ok := f.books[id]
	if !ok {
		return nil, catalogerrors.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookStore) MarkBorrowed(ctx context.Context, id string, userID string, borrowedAt, dueDate time.Time) error {
	if f.markBorrowedFn != nil {
		if err := f.markBorrowedFn(id); err != nil {
			return err
		}
	}
	b, ok := f.books[id]
	if !ok {
		return catalogerrors.ErrNotFound
	}
	if b.Status != model.BookAvailable {
		return catalogerrors.ErrStatusConflict
	}
	f.markedBorrowed++
	b.Status = model.BookBorrowed
	b.BorrowedBy = userID
	b.BorrowedAt = &borrowedAt
	b.DueDate = &dueDate
	return nil
}

func (f *fakeBookStore) MarkReturned(ctx context.Context, id string, status model.BookStatus) error {
	b, ok := f.books[id]
	if !ok {
		return catalogerrors.ErrNotFound
	}
	b.Status = status
	b.BorrowedBy = ""
	b.BorrowedAt = nil
	b.DueDate = nil
	return nil
}

type fakeBorrowRepository struct {
	records  []*model.BorrowRecord
	nextID   int
	findErr  error
	txCalls  int
	lastFind model.HistoryFilter
}

func (f *fakeBorrowRepository) Create(ctx context.Context, record *model.BorrowRecord) error {
	f.nextID++
	record.ID = fmt.Sprintf("borrow-%d", f.nextID)
	copied := *record
	f.records = append(f.records, &copied)
	return nil
}

func (f *fakeBorrowRepository) FindByID(ctx context.Context, id string) (*model.BorrowRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, borrowingerrors.ErrNotFound
}

func (f *fakeBorrowRepository) FindOpen(ctx context.Context, bookID string, userID string) (*model.BorrowRecord, error) {
	for i := len(f.records) - 1; i >= 0; i-- {
		r := f.records[i]
		if r.BookID == bookID && r.UserID == userID && statusIn(r.Status, model.ReturnableBorrowStatuses) {
			copied := *r
			return &copied, nil
		}
	}
	return nil, borrowingerrors.ErrNotFound
}

func (f *fakeBorrowRepository) CountOutstanding(ctx context.Context, userID string) (int64, error) {
	var n int64
	for _, r := range f.records {
		if r.UserID == userID && statusIn(r.Status, model.OutstandingBorrowStatuses) {
			n++
		}
	}
	return n, nil
}

func (f *fakeBorrowRepository) Find(ctx context.Context, filter model.HistoryFilter) ([]*model.BorrowRecord, error) {
	f.lastFind = filter
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := make([]*model.BorrowRecord, 0)
	for _, r := range f.records {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBorrowRepository) Approve(ctx context.Context, id string, approverID string) error {
	for _, r := range f.records {
		if r.ID == id {
			if r.Status != model.BorrowPending {
				return borrowingerrors.ErrNotPending
			}
			r.Status = model.BorrowActive
			r.ApprovedBy = approverID
			return nil
		}
	}
	return borrowingerrors.ErrNotFound
}

func (f *fakeBorrowRepository) MarkReturned(ctx context.Context, id string, ret repository.Return) error {
	for _, r := range f.records {
		if r.ID == id {
			returnedAt := ret.ReturnedAt
			r.Status = model.BorrowReturned
			r.ReturnedAt = &returnedAt
			r.Condition = ret.Condition
			r.LateFee = ret.LateFee
			r.Notes = ret.Notes
			return nil
		}
	}
	return borrowingerrors.ErrNotFound
}

func (f *fakeBorrowRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	f.txCalls++
	return fn(mongo.NewSessionContext(ctx, nil))
}

func (f *fakeBorrowRepository) byID(id string) *model.BorrowRecord {
	for _, r := range f.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

type fakeLockRepository struct {
	mu      sync.Mutex
	held    map[string]bool
	created int
}

func (f *fakeLockRepository) Create(ctx context.Context, lock *model.BookLock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[lock.ID] {
		return fmt.Errorf("%w: %s", borrowingerrors.ErrLockHeld, lock.ID)
	}
	f.held[lock.ID] = true
	f.created++
	return nil
}

func (f *fakeLockRepository) Delete(ctx context.Context, lockID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, lockID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func statusIn(s model.BorrowStatus, set []model.BorrowStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ────────────────────────────────────────────────
// Harness
// ────────────────────────────────────────────────

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc     *borrowService
	books   *fakeBookStore
	borrows *fakeBorrowRepository
	locks   *fakeLockRepository
	pub     *recordingPublisher
	clock   time.Time
}

func newHarness(books ...*model.Book) *harness {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		Output:    io.Discard,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{
		Log:                   log,
		LateFeePerDay:         config.DefaultLateFeePerDay,
		BorrowDurationDays:    config.DefaultBorrowDurationDays,
		MaxBorrowDurationDays: config.DefaultMaxBorrowDurationDays,
		MaxActiveBorrows:      config.DefaultMaxActiveBorrows,
		BookLockTTL:           config.DefaultBookLockTTL,
	}

	h := &harness{
		books:   &fakeBookStore{books: map[string]*model.Book{}},
		borrows: &fakeBorrowRepository{},
		locks:   &fakeLockRepository{held: map[string]bool{}},
		pub:     &recordingPublisher{},
		clock:   fixedNow,
	}
	for _, b := range books {
		h.books.books[b.ID] = b
	}
	h.svc = newBorrowService(
		h.books,
		h.borrows,
		h.locks,
		validator.NewBorrowValidator(log),
		policy.Default(),
		events.NewEmitter(h.pub, time.Second, log),
		cfg,
		func() time.Time { return h.clock },
	)
	return h
}

func availableBook(id string) *model.Book {
	return &model.Book{ID: id, Title: "Book " + id, Status: model.BookAvailable}
}

func requireCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, code), "expected %s, got %v", code, err)
	return apperrors.AsAppError(err)
}

// ────────────────────────────────────────────────
// BorrowBook
// ────────────────────────────────────────────────

func TestBorrowBook_Success(t *testing.T) {
	h := newHarness(availableBook("b1"))

	res, err := h.svc.BorrowBook(context.Background(), "b1", "u1", 0)
	require.NoError(t, err)

	assert.Equal(t, "borrow-1", res.BorrowID)
	assert.Equal(t, model.BorrowPending, res.Status)
	assert.Equal(t, fixedNow, res.BorrowedAt)
	assert.Equal(t, fixedNow.Add(14*24*time.Hour), res.DueDate)

	book := h.books.books["b1"]
	assert.Equal(t, model.BookBorrowed, book.Status)
	assert.Equal(t, "u1", book.BorrowedBy)
	require.NotNil(t, book.DueDate)
	assert.Equal(t, res.DueDate, *book.DueDate)

	assert.Equal(t, 1, h.borrows.txCalls, "both writes share one transaction")
	assert.Empty(t, h.locks.held, "lock must be released")

	require.Len(t, h.pub.events, 1)
	assert.Equal(t, events.BorrowRequested, h.pub.events[0].Type)
	assert.Equal(t, "b1", h.pub.events[0].BookID)
}

func TestBorrowBook_CustomDuration(t *testing.T) {
	h := newHarness(availableBook("b1"))

	res, err := h.svc.BorrowBook(context.Background(), "b1", "u1", 7)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), res.DueDate)
}

func TestBorrowBook_DurationAboveMaximum(t *testing.T) {
	h := newHarness(availableBook("b1"))

	_, err := h.svc.BorrowBook(context.Background(), "b1", "u1", 91)
	requireCode(t, err, apperrors.CodeValidation)
	assert.Zero(t, h.locks.created, "rejected before locking")
}

func TestBorrowBook_UnavailableBookUnchanged(t *testing.T) {
	for _, status := range []model.BookStatus{model.BookBorrowed, model.BookDamaged, model.BookImporting, model.BookLost} {
		t.Run(string(status), func(t *testing.T) {
			book := availableBook("b1")
			book.Status = status
			h := newHarness(book)

			_, err := h.svc.BorrowBook(context.Background(), "b1", "u1", 0)
			appErr := requireCode(t, err, apperrors.CodeValidation)
			assert.Equal(t, "Book is not available for borrowing", appErr.Message)

			assert.Equal(t, status, h.books.books["b1"].Status)
			assert.Zero(t, h.books.markedBorrowed)
			assert.Empty(t, h.borrows.records)
			assert.Empty(t, h.pub.events)
		})
	}
}

func TestBorrowBook_NotFound(t *testing.T) {
	h := newHarness()

	_, err := h.svc.BorrowBook(context.Background(), "missing", "u1", 0)
	requireCode(t, err, apperrors.CodeNotFound)
	assert.Empty(t, h.locks.held)
}

func TestBorrowBook_LimitReached(t *testing.T) {
	h := newHarness(availableBook("b-next"))
	for i, status := range []model.BorrowStatus{
		model.BorrowPending, model.BorrowActive, model.BorrowActive, model.BorrowApproved, model.BorrowPending,
	} {
		h.borrows.records = append(h.borrows.records, &model.BorrowRecord{
			ID: fmt.Sprintf("old-%d", i), BookID: fmt.Sprintf("b%d", i), UserID: "u1", Status: status,
		})
	}

	_, err := h.svc.BorrowBook(context.Background(), "b-next", "u1", 0)
	appErr := requireCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "Cannot borrow more than 5 books at a time", appErr.Message)
	assert.Equal(t, model.BookAvailable, h.books.books["b-next"].Status)
}

func TestBorrowBook_TerminalRecordsDoNotCount(t *testing.T) {
	h := newHarness(availableBook("b-next"))
	for i := 0; i < 5; i++ {
		h.borrows.records = append(h.borrows.records, &model.BorrowRecord{
			ID: fmt.Sprintf("old-%d", i), UserID: "u1", Status: model.BorrowReturned,
		})
	}
	h.borrows.records = append(h.borrows.records, &model.BorrowRecord{ID: "late", UserID: "u1", Status: model.BorrowOverdue})

	_, err := h.svc.BorrowBook(context.Background(), "b-next", "u1", 0)
	require.NoError(t, err)
}

func TestBorrowBook_LockContended(t *testing.T) {
	h := newHarness(availableBook("b1"))
	h.locks.held["book_lock_b1"] = true

	_, err := h.svc.BorrowBook(context.Background(), "b1", "u1", 0)
	appErr := requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, "book is being processed", appErr.Message)
	assert.True(t, h.locks.held["book_lock_b1"], "foreign lock must not be released")
}

func TestBorrowBook_MemberLockSerializesLimitCheck(t *testing.T) {
	h := newHarness(availableBook("b1"), availableBook("b2"))
	h.locks.held["user_lock_u1"] = true

	_, err := h.svc.BorrowBook(context.Background(), "b2", "u1", 0)
	requireCode(t, err, apperrors.CodeConflict)
	assert.False(t, h.locks.held["book_lock_b2"], "book lock must be released on member conflict")
	assert.True(t, h.locks.held["user_lock_u1"], "foreign lock must not be released")

	_, err = h.svc.BorrowBook(context.Background(), "b1", "u2", 0)
	require.NoError(t, err, "other members are not blocked")
	assert.Equal(t, 3, h.locks.created)
}

func TestBorrowBook_LostCompareAndSet(t *testing.T) {
	h := newHarness(availableBook("b1"))
	h.books.markBorrowedFn = func(id string) error { return catalogerrors.ErrStatusConflict }

	_, err := h.svc.BorrowBook(context.Background(), "b1", "u1", 0)
	requireCode(t, err, apperrors.CodeValidation)
	assert.Empty(t, h.pub.events)
}

func TestBorrowBook_StoreFailureIsInternal(t *testing.T) {
	h := newHarness(availableBook("b1"))
	h.books.markBorrowedFn = func(id string) error { return errors.New("write conflict") }

	_, err := h.svc.BorrowBook(context.Background(), "b1", "u1", 0)
	requireCode(t, err, apperrors.CodeInternal)
}

// ────────────────────────────────────────────────
// ReturnBook
// ────────────────────────────────────────────────

func borrowAt(t *testing.T, h *harness, bookID, userID string, at time.Time, days int) string {
	t.Helper()
	h.clock = at
	res, err := h.svc.BorrowBook(context.Background(), bookID, userID, days)
	require.NoError(t, err)
	return res.BorrowID
}

func TestReturnBook_OnTimeOmitsFee(t *testing.T) {
	h := newHarness(availableBook("b1"))
	id := borrowAt(t, h, "b1", "u1", fixedNow, 14)

	h.clock = fixedNow.Add(14 * 24 * time.Hour)
	res, err := h.svc.ReturnBook(context.Background(), "b1", "u1", model.ReturnRequest{})
	require.NoError(t, err)

	assert.Nil(t, res.LateFee)
	assert.Nil(t, res.DaysLate)

	rec := h.borrows.byID(id)
	assert.Equal(t, model.BorrowReturned, rec.Status)
	assert.Equal(t, model.ConditionGood, rec.Condition)
	assert.Zero(t, rec.LateFee)

	book := h.books.books["b1"]
	assert.Equal(t, model.BookAvailable, book.Status)
	assert.Empty(t, book.BorrowedBy)
	assert.Nil(t, book.DueDate)
}

func TestReturnBook_ThreeDaysLate(t *testing.T) {
	h := newHarness(availableBook("b1"))
	id := borrowAt(t, h, "b1", "u1", fixedNow, 14)

	h.clock = fixedNow.Add(17 * 24 * time.Hour)
	res, err := h.svc.ReturnBook(context.Background(), "b1", "u1", model.ReturnRequest{})
	require.NoError(t, err)

	require.NotNil(t, res.DaysLate)
	require.NotNil(t, res.LateFee)
	assert.Equal(t, int64(3), *res.DaysLate)
	assert.Equal(t, int64(3*config.DefaultLateFeePerDay), *res.LateFee)
	assert.Equal(t, *res.LateFee, h.borrows.byID(id).LateFee)

	last := h.pub.events[len(h.pub.events)-1]
	assert.Equal(t, events.BorrowReturned, last.Type)
	assert.Equal(t, int64(3), last.DaysLate)
}

func TestReturnBook_PartialDayRoundsUp(t *testing.T) {
	h := newHarness(availableBook("b1"))
	borrowAt(t, h, "b1", "u1", fixedNow, 14)

	h.clock = fixedNow.Add(14*24*time.Hour + time.Minute)
	res, err := h.svc.ReturnBook(context.Background(), "b1", "u1", model.ReturnRequest{})
	require.NoError(t, err)

	require.NotNil(t, res.DaysLate)
	assert.Equal(t, int64(1), *res.DaysLate)
}

func TestReturnBook_DamagedCondition(t *testing.T) {
	h := newHarness(availableBook("b1"))
	id := borrowAt(t, h, "b1", "u1", fixedNow, 14)

	_, err := h.svc.ReturnBook(context.Background(), "b1", "u1", model.ReturnRequest{
		Condition: model.ConditionDamaged,
		Notes:     "  water damage  ",
	})
	require.NoError(t, err)

	assert.Equal(t, model.BookDamaged, h.books.books["b1"].Status)
	rec := h.borrows.byID(id)
	assert.Equal(t, model.ConditionDamaged, rec.Condition)
	assert.Equal(t, "water damage", rec.Notes)
}

func TestReturnBook_ClosesPendingRecord(t *testing.T) {
	h := newHarness(availableBook("b1"))
	id := borrowAt(t, h, "b1", "u1", fixedNow, 14)
	require.Equal(t, model.BorrowPending, h.borrows.byID(id).Status)

	_, err := h.svc.ReturnBook(context.Background(), "b1", "u1", model.ReturnRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.BorrowReturned, h.borrows.byID(id).Status)
}

func TestReturnBook_NoOpenRecord(t *testing.T) {
	h := newHarness(availableBook("b1"))
	borrowAt(t, h, "b1", "u1", fixedNow, 14)

	_, err := h.svc.ReturnBook(context.Background(), "b1", "someone-else", model.ReturnRequest{})
	requireCode(t, err, apperrors.CodeNotFound)
	assert.Equal(t, model.BookBorrowed, h.books.books["b1"].Status)
}

func TestReturnBook_MissingBookStillReturns(t *testing.T) {
	h := newHarness(availableBook("b1"))
	id := borrowAt(t, h, "b1", "u1", fixedNow, 14)
	delete(h.books.books, "b1")

	_, err := h.svc.ReturnBook(context.Background(), "b1", "u1", model.ReturnRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.BorrowReturned, h.borrows.byID(id).Status)
}

func TestReturnBook_InvalidCondition(t *testing.T) {
	h := newHarness(availableBook("b1"))
	borrowAt(t, h, "b1", "u1", fixedNow, 14)

	_, err := h.svc.ReturnBook(context.Background(), "b1", "u1", model.ReturnRequest{Condition: "torn"})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestDaysLate(t *testing.T) {
	due := fixedNow
	tests := []struct {
		returned time.Time
		wantDays int64
		wantLate bool
	}{
		{due.Add(-time.Hour), 0, false},
		{due, 0, false},
		{due.Add(time.Millisecond), 1, true},
		{due.Add(24 * time.Hour), 1, true},
		{due.Add(25 * time.Hour), 2, true},
	}

	for _, tt := range tests {
		days, late := daysLate(due, tt.returned)
		assert.Equal(t, tt.wantLate, late, "returned %s", tt.returned)
		assert.Equal(t, tt.wantDays, days, "returned %s", tt.returned)
	}
}

// ────────────────────────────────────────────────
// ApproveBorrow
// ────────────────────────────────────────────────

func TestApproveBorrow_Success(t *testing.T) {
	h := newHarness(availableBook("b1"))
	id := borrowAt(t, h, "b1", "u1", fixedNow, 14)

	rec, err := h.svc.ApproveBorrow(context.Background(), id, "lib-1")
	require.NoError(t, err)

	assert.Equal(t, model.BorrowActive, rec.Status)
	assert.Equal(t, "lib-1", rec.ApprovedBy)
	assert.Equal(t, model.BorrowActive, h.borrows.byID(id).Status)

	last := h.pub.events[len(h.pub.events)-1]
	assert.Equal(t, events.BorrowApproved, last.Type)
	assert.Equal(t, "u1", last.UserID)
	require.NotNil(t, last.DueDate)
}

func TestApproveBorrow_AlreadyActive(t *testing.T) {
	h := newHarness(availableBook("b1"))
	id := borrowAt(t, h, "b1", "u1", fixedNow, 14)
	_, err := h.svc.ApproveBorrow(context.Background(), id, "lib-1")
	require.NoError(t, err)

	_, err = h.svc.ApproveBorrow(context.Background(), id, "lib-2")
	appErr := requireCode(t, err, apperrors.CodeValidation)
	assert.Equal(t, "Borrow request is not pending", appErr.Message)
	assert.Equal(t, "lib-1", h.borrows.byID(id).ApprovedBy)
}

func TestApproveBorrow_Unknown(t *testing.T) {
	h := newHarness()

	_, err := h.svc.ApproveBorrow(context.Background(), "nope", "lib-1")
	requireCode(t, err, apperrors.CodeNotFound)
}

// ────────────────────────────────────────────────
// GetBorrowHistory
// ────────────────────────────────────────────────

func seedHistory(h *harness) {
	h.borrows.records = []*model.BorrowRecord{
		{ID: "r1", UserID: "u1", Status: model.BorrowReturned},
		{ID: "r2", UserID: "u2", Status: model.BorrowActive},
		{ID: "r3", UserID: "u1", Status: model.BorrowActive},
	}
}

func TestGetBorrowHistory_MemberForcedToSelf(t *testing.T) {
	h := newHarness()
	seedHistory(h)
	member := model.Identity{UserID: "u1", Role: model.RoleNormalUser}

	records, err := h.svc.GetBorrowHistory(context.Background(), member, model.HistoryFilter{UserID: "u2"})
	require.NoError(t, err)

	assert.Equal(t, "u1", h.borrows.lastFind.UserID)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].ID, "insertion order")
	assert.Equal(t, "r3", records[1].ID)
}

func TestGetBorrowHistory_StaffScopes(t *testing.T) {
	h := newHarness()
	seedHistory(h)
	librarian := model.Identity{UserID: "lib-1", Role: model.RoleLibrarian}

	all, err := h.svc.GetBorrowHistory(context.Background(), librarian, model.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	other, err := h.svc.GetBorrowHistory(context.Background(), librarian, model.HistoryFilter{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "r2", other[0].ID)

	active, err := h.svc.GetBorrowHistory(context.Background(), librarian, model.HistoryFilter{Status: model.BorrowActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestGetBorrowHistory_InvalidStatus(t *testing.T) {
	h := newHarness()

	_, err := h.svc.GetBorrowHistory(context.Background(), model.Identity{UserID: "u1", Role: model.RoleNormalUser}, model.HistoryFilter{Status: "lent"})
	requireCode(t, err, apperrors.CodeInvalidInput)
}

func TestGetBorrowHistory_StoreFailure(t *testing.T) {
	h := newHarness()
	h.borrows.findErr = errors.New("cursor killed")

	_, err := h.svc.GetBorrowHistory(context.Background(), model.Identity{UserID: "u1", Role: model.RoleAdmin}, model.HistoryFilter{})
	requireCode(t, err, apperrors.CodeInternal)
}
