//go:build integration

package testutil

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookshelf/pkg/client"
	"bookshelf/pkg/model"
)

const DefaultPassword = "correct-horse"

type BookInputBuilder struct {
	input model.BookInput
}

// NewBookInput starts from a valid input with a random ISBN-13 so tests do
// not collide on the unique index.
func NewBookInput() *BookInputBuilder {
	return &BookInputBuilder{
		input: model.BookInput{
			Title:     "The Left Hand of Darkness",
			Author:    "Ursula K. Le Guin",
			ISBN:      RandomISBN(),
			Category:  "science fiction",
			PageCount: 304,
		},
	}
}

func (b *BookInputBuilder) WithTitle(title string) *BookInputBuilder {
	b.input.Title = title
	return b
}

func (b *BookInputBuilder) WithISBN(isbn string) *BookInputBuilder {
	b.input.ISBN = isbn
	return b
}

func (b *BookInputBuilder) WithQuantity(n int) *BookInputBuilder {
	b.input.Quantity = n
	return b
}

func (b *BookInputBuilder) Build() model.BookInput {
	return b.input
}

func RandomISBN() string {
	id := uuid.New()
	return fmt.Sprintf("978%010d", uint64(id[0])<<24|uint64(id[1])<<16|uint64(id[2])<<8|uint64(id[3]))
}

// SignUp registers an account, optionally promotes it, and returns a client
// logged in as that account along with its user id.
func SignUp(t *testing.T, c *client.HttpClient, m *MongoHelper, name string, role model.Role) (*client.HttpClient, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	email := fmt.Sprintf("%s-%s@library.test", name, uuid.NewString()[:8])
	resp, err := c.POST(ctx, "/api/v1/auth/register", model.RegisterInput{
		Username: name,
		Email:    email,
		Password: DefaultPassword,
		FullName: name,
	})
	MustStatus(t, resp, err, http.StatusCreated)

	var user model.User
	if err := resp.DecodeData(&user); err != nil {
		t.Fatalf("failed to decode registered user: %v", err)
	}

	if role != model.RoleNormalUser {
		m.PromoteUser(t, email, role)
	}

	resp, err = c.POST(ctx, "/api/v1/auth/login", model.LoginInput{Email: email, Password: DefaultPassword})
	MustStatus(t, resp, err, http.StatusOK)

	var login model.LoginResult
	if err := resp.DecodeData(&login); err != nil {
		t.Fatalf("failed to decode login: %v", err)
	}
	return c.WithToken(login.Token), user.ID
}

func MustStatus(t *testing.T, resp *client.Response, err error, want int) {
	t.Helper()
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, client.GetErrorMessage(resp))
	}
}
