//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	borrowrepo "bookshelf/internal/borrowing/repository"
	catalogrepo "bookshelf/internal/catalog/repository"
	"bookshelf/pkg/client"
	"bookshelf/pkg/model"
	"bookshelf/test/integration/testutil"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func createBook(t *testing.T, admin *client.HttpClient, input model.BookInput) *model.Book {
	t.Helper()
	resp, err := admin.POST(testCtx(t), "/api/v1/books", input)
	testutil.MustStatus(t, resp, err, http.StatusCreated)

	var books []*model.Book
	require.NoError(t, resp.DecodeData(&books))
	require.NotEmpty(t, books)
	return books[0]
}

func getBook(t *testing.T, c *client.HttpClient, id string) *model.Book {
	t.Helper()
	resp, err := c.GET(testCtx(t), "/api/v1/books/id/"+id)
	testutil.MustStatus(t, resp, err, http.StatusOK)

	var book model.Book
	require.NoError(t, resp.DecodeData(&book))
	return &book
}

func TestBorrowLifecycle(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, c := env.Setup(t)
	defer env.Cleanup(t, mongo)

	admin, _ := testutil.SignUp(t, c, mongo, "admin", model.RoleAdmin)
	librarian, _ := testutil.SignUp(t, c, mongo, "librarian", model.RoleLibrarian)
	member, memberID := testutil.SignUp(t, c, mongo, "member", model.RoleNormalUser)
	ctx := testCtx(t)

	book := createBook(t, admin, testutil.NewBookInput().Build())
	assert.Equal(t, model.BookAvailable, book.Status)

	resp, err := member.POST(ctx, fmt.Sprintf("/api/v1/books/id/%s/borrow", book.ID), model.BorrowRequest{DurationDays: 7})
	testutil.MustStatus(t, resp, err, http.StatusCreated)
	var borrowed model.BorrowResult
	require.NoError(t, resp.DecodeData(&borrowed))
	assert.Equal(t, model.BorrowPending, borrowed.Status)
	assert.Equal(t, 7*24*time.Hour, borrowed.DueDate.Sub(borrowed.BorrowedAt))

	after := getBook(t, member, book.ID)
	assert.Equal(t, model.BookBorrowed, after.Status)
	assert.Equal(t, memberID, after.BorrowedBy)

	// A second borrow of the same copy is refused and leaves the book as is.
	resp, err = member.POST(ctx, fmt.Sprintf("/api/v1/books/id/%s/borrow", book.ID), nil)
	testutil.MustStatus(t, resp, err, http.StatusBadRequest)
	assert.Equal(t, "Book is not available for borrowing", client.GetErrorMessage(resp))

	// Members cannot approve.
	resp, err = member.PATCH(ctx, fmt.Sprintf("/api/v1/borrowing/id/%s/approve", borrowed.BorrowID), nil)
	testutil.MustStatus(t, resp, err, http.StatusForbidden)

	resp, err = librarian.PATCH(ctx, fmt.Sprintf("/api/v1/borrowing/id/%s/approve", borrowed.BorrowID), nil)
	testutil.MustStatus(t, resp, err, http.StatusOK)
	var approved model.BorrowRecord
	require.NoError(t, resp.DecodeData(&approved))
	assert.Equal(t, model.BorrowActive, approved.Status)

	resp, err = librarian.PATCH(ctx, fmt.Sprintf("/api/v1/borrowing/id/%s/approve", borrowed.BorrowID), nil)
	testutil.MustStatus(t, resp, err, http.StatusBadRequest)

	resp, err = member.POST(ctx, fmt.Sprintf("/api/v1/books/id/%s/return", book.ID), model.ReturnRequest{Condition: model.ConditionDamaged})
	testutil.MustStatus(t, resp, err, http.StatusOK)
	var returned model.ReturnResult
	require.NoError(t, resp.DecodeData(&returned))
	assert.Nil(t, returned.LateFee)
	assert.Nil(t, returned.DaysLate)

	assert.Equal(t, model.BookDamaged, getBook(t, member, book.ID).Status)
	assert.EqualValues(t, 1, mongo.CountDocuments(t, borrowrepo.CollectionName, bson.M{"status": model.BorrowReturned}))
	assert.EqualValues(t, 0, mongo.CountDocuments(t, borrowrepo.LockCollectionName, nil))
}

func TestBorrowLimit(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, c := env.Setup(t)
	defer env.Cleanup(t, mongo)

	admin, _ := testutil.SignUp(t, c, mongo, "admin", model.RoleAdmin)
	member, _ := testutil.SignUp(t, c, mongo, "member", model.RoleNormalUser)
	ctx := testCtx(t)

	resp, err := admin.POST(ctx, "/api/v1/books", testutil.NewBookInput().WithQuantity(6).Build())
	testutil.MustStatus(t, resp, err, http.StatusCreated)
	var copies []*model.Book
	require.NoError(t, resp.DecodeData(&copies))
	require.Len(t, copies, 6)

	for _, b := range copies[:5] {
		resp, err := member.POST(ctx, fmt.Sprintf("/api/v1/books/id/%s/borrow", b.ID), nil)
		testutil.MustStatus(t, resp, err, http.StatusCreated)
	}

	resp, err = member.POST(ctx, fmt.Sprintf("/api/v1/books/id/%s/borrow", copies[5].ID), nil)
	testutil.MustStatus(t, resp, err, http.StatusBadRequest)
	assert.Equal(t, "Cannot borrow more than 5 books at a time", client.GetErrorMessage(resp))
	assert.Equal(t, model.BookAvailable, getBook(t, member, copies[5].ID).Status)
}

func TestStatusPolicy(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, c := env.Setup(t)
	defer env.Cleanup(t, mongo)

	admin, _ := testutil.SignUp(t, c, mongo, "admin", model.RoleAdmin)
	librarian, _ := testutil.SignUp(t, c, mongo, "librarian", model.RoleLibrarian)
	member, _ := testutil.SignUp(t, c, mongo, "member", model.RoleNormalUser)
	ctx := testCtx(t)

	book := createBook(t, admin, testutil.NewBookInput().Build())
	path := fmt.Sprintf("/api/v1/books/id/%s/status", book.ID)

	resp, err := member.PATCH(ctx, path, model.BookStatusUpdate{Status: model.BookDamaged})
	testutil.MustStatus(t, resp, err, http.StatusForbidden)

	resp, err = librarian.PATCH(ctx, path, model.BookStatusUpdate{Status: model.BookLost})
	testutil.MustStatus(t, resp, err, http.StatusForbidden)

	resp, err = librarian.PATCH(ctx, path, model.BookStatusUpdate{Status: model.BookDamaged})
	testutil.MustStatus(t, resp, err, http.StatusOK)

	resp, err = admin.PATCH(ctx, path, model.BookStatusUpdate{Status: model.BookLost})
	testutil.MustStatus(t, resp, err, http.StatusOK)
	assert.Equal(t, model.BookLost, getBook(t, member, book.ID).Status)
}

func TestDuplicateISBN(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, c := env.Setup(t)
	defer env.Cleanup(t, mongo)

	admin, _ := testutil.SignUp(t, c, mongo, "admin", model.RoleAdmin)

	input := testutil.NewBookInput().Build()
	createBook(t, admin, input)

	resp, err := admin.POST(testCtx(t), "/api/v1/books", input)
	testutil.MustStatus(t, resp, err, http.StatusConflict)
}

func TestHistoryScope(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, c := env.Setup(t)
	defer env.Cleanup(t, mongo)

	admin, _ := testutil.SignUp(t, c, mongo, "admin", model.RoleAdmin)
	alice, aliceID := testutil.SignUp(t, c, mongo, "alice", model.RoleNormalUser)
	bob, bobID := testutil.SignUp(t, c, mongo, "bob", model.RoleNormalUser)
	ctx := testCtx(t)

	for _, m := range []*client.HttpClient{alice, bob} {
		book := createBook(t, admin, testutil.NewBookInput().Build())
		resp, err := m.POST(ctx, fmt.Sprintf("/api/v1/books/id/%s/borrow", book.ID), nil)
		testutil.MustStatus(t, resp, err, http.StatusCreated)
	}

	// Alice asking for Bob's history still only sees her own.
	resp, err := alice.GET(ctx, "/api/v1/borrowing/history?user_id="+bobID)
	testutil.MustStatus(t, resp, err, http.StatusOK)
	var own []*model.BorrowRecord
	require.NoError(t, resp.DecodeData(&own))
	require.Len(t, own, 1)
	assert.Equal(t, aliceID, own[0].UserID)

	resp, err = admin.GET(ctx, "/api/v1/borrowing/history")
	testutil.MustStatus(t, resp, err, http.StatusOK)
	var all []*model.BorrowRecord
	require.NoError(t, resp.DecodeData(&all))
	assert.Len(t, all, 2)

	resp, err = c.GET(ctx, "/api/v1/borrowing/history")
	testutil.MustStatus(t, resp, err, http.StatusUnauthorized)
}

func TestIdempotentBookCreate(t *testing.T) {
	env := testutil.NewTestEnv()
	mongo, c := env.Setup(t)
	defer env.Cleanup(t, mongo)

	admin, _ := testutil.SignUp(t, c, mongo, "admin", model.RoleAdmin)
	ctx := testCtx(t)
	input := testutil.NewBookInput().Build()
	headers := map[string]string{"Idempotency-Key": "import-batch-1"}

	first, err := admin.POSTWithHeaders(ctx, "/api/v1/books", input, headers)
	testutil.MustStatus(t, first, err, http.StatusCreated)
	second, err := admin.POSTWithHeaders(ctx, "/api/v1/books", input, headers)
	testutil.MustStatus(t, second, err, http.StatusCreated)

	assert.JSONEq(t, string(first.Body), string(second.Body))
	assert.EqualValues(t, 1, mongo.CountDocuments(t, catalogrepo.CollectionName, bson.M{"isbn": input.ISBN}))
}
