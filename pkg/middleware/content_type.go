package middleware

import (
	apperrors "bookshelf/pkg/errors"
	httputil "bookshelf/pkg/http"
	"bookshelf/pkg/logger"
	"mime"
	"net/http"
)

const jsonContentType = "application/json"

// ContentTypeValidation rejects JSON API writes sent with another media type.
// Bodyless writes such as logout, approve or a default-length borrow carry
// no content type and pass through.
func ContentTypeValidation(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiresContentType(r.Method) && r.ContentLength != 0 {
				contentType := mediaType(r.Header.Get("Content-Type"))

				if contentType != jsonContentType {
					rejectInvalidContentType(w, log, r, contentType)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requiresContentType(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// mediaType strips parameters such as charset. A malformed header yields "".
func mediaType(header string) string {
	if header == "" {
		return ""
	}

	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}

func rejectInvalidContentType(w http.ResponseWriter, log *logger.Logger, r *http.Request, contentType string) {
	log.Warn("Invalid Content-Type header",
		"request_id", requestID(w, r),
		"content_type", contentType,
		"path", r.URL.Path,
		"method", r.Method,
	)

	err := apperrors.New(apperrors.CodeUnsupportedMediaType, "Content-Type must be application/json", http.StatusUnsupportedMediaType).
		WithDetails(map[string]any{"content_type": contentType})
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		log.Error("failed to write error response", "handler", "ContentTypeValidation", "error", writeErr)
	}
}
