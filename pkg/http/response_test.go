package http

import (
	apperrors "bookshelf/pkg/errors"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.NotFoundWithID("Book", "1"), http.StatusNotFound, apperrors.CodeNotFound},
		{"validation", apperrors.Validation("Book is not available for borrowing", nil), http.StatusBadRequest, apperrors.CodeValidation},
		{"invalid input", apperrors.InvalidInput("bad id"), http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"forbidden", apperrors.Forbidden("nope"), http.StatusForbidden, apperrors.CodeForbidden},
		{"unauthorized", apperrors.Unauthorized("login"), http.StatusUnauthorized, apperrors.CodeUnauthorized},
		{"conflict", apperrors.Conflict("busy"), http.StatusConflict, apperrors.CodeConflict},
		{"internal", apperrors.Internal("db down", errors.New("io")), http.StatusInternalServerError, apperrors.CodeInternal},
		{"wrapped app error", fmt.Errorf("tx: %w", apperrors.NotFound("Book")), http.StatusNotFound, apperrors.CodeNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			if err := WriteError(w, tt.err); err != nil {
				t.Fatalf("WriteError returned %v", err)
			}

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
			}
		})
	}
}

func TestWriteError_HidesInternalCause(t *testing.T) {
	w := httptest.NewRecorder()
	_ = WriteError(w, apperrors.Internal("Failed to update book", errors.New("mongo: connection reset")))

	if strings.Contains(w.Body.String(), "connection reset") {
		t.Errorf("internal cause leaked to client: %s", w.Body.String())
	}
}

func TestExtractLimitOffset(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int64
		wantErr    bool
	}{
		{"defaults", "", 10, 0, false},
		{"explicit", "?limit=20&offset=40", 20, 40, false},
		{"clamped", "?limit=1000&offset=-4", 100, 0, false},
		{"bad limit", "?limit=abc", 0, 0, true},
		{"bad offset", "?offset=xyz", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/books"+tt.query, nil)
			limit, offset, err := ExtractLimitOffset(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.wantErr {
				return
			}
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d", limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	var target struct {
		DurationDays int `json:"duration_days"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSONBody(r, &target, true); err != nil {
		t.Errorf("empty body should be accepted: %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSONBody(r, &target, false); err == nil {
		t.Error("empty body should be rejected when required")
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"duration_days":7}`))
	if err := DecodeJSONBody(r, &target, false); err != nil || target.DurationDays != 7 {
		t.Errorf("expected duration 7, got %d (err %v)", target.DurationDays, err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	if err := DecodeJSONBody(r, &target, true); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("malformed body should be invalid input, got %v", err)
	}
}
