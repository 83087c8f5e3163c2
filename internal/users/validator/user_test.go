package validator

import (
	"bookshelf/pkg/logger"
	"bookshelf/pkg/model"
	"bookshelf/pkg/validation"
	"io"
	"strings"
	"testing"
)

func newTestValidator() *UserValidator {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		Output:    io.Discard,
		AddSource: false,
		Service:   "test",
	})
	return NewUserValidator(log)
}

func TestUserValidator_ValidateRegister(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name        string
		password    string
		expectValid bool
	}{
		{"ascii", "secret1", true},
		{"72 ascii bytes", strings.Repeat("a", 72), true},
		{"36 two-byte runes", strings.Repeat("é", 36), true},
		{"40 two-byte runes", strings.Repeat("é", 40), false},
		{"73 ascii bytes", strings.Repeat("a", 73), false},
		{"too short", "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &model.RegisterInput{
				Username: "reader1",
				Email:    "reader@example.com",
				Password: tt.password,
				FullName: "Avid Reader",
			}

			err := v.ValidateRegister(in)
			if tt.expectValid {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			ve, ok := validation.AsValidationErrors(err)
			if !ok {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if _, ok := ve.Details()["password"]; !ok {
				t.Errorf("expected password error, got %v", ve)
			}
		})
	}
}
