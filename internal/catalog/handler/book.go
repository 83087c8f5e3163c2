package handler

import (
	"bookshelf/internal/catalog/service"
	"bookshelf/internal/policy"
	httputil "bookshelf/pkg/http"
	"bookshelf/pkg/logger"
	"bookshelf/pkg/middleware"
	"bookshelf/pkg/model"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type BookHandler struct {
	service service.BookService
	guard   *middleware.Guard
	log     *logger.Logger
}

func NewBookHandler(service service.BookService, guard *middleware.Guard, log *logger.Logger) *BookHandler {
	return &BookHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, err := parseBookFilter(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	books, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, books, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	book, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input model.BookInput
	if err := httputil.DecodeJSONBody(r, &input, false); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	actor, _ := middleware.IdentityFromContext(r.Context())
	books, err := h.service.Create(r.Context(), &input, actor.UserID)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, books); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.BookStatusUpdate
	if err := httputil.DecodeJSONBody(r, &update, false); err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	actor, _ := middleware.IdentityFromContext(r.Context())
	book, err := h.service.UpdateStatus(r.Context(), ps.ByName("id"), update.Status, actor)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, book); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, _ := middleware.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), ps.ByName("id"), actor.UserID); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func parseBookFilter(r *http.Request) (model.BookFilter, error) {
	query := r.URL.Query()
	filter := model.BookFilter{
		Title:    query.Get("title"),
		Author:   query.Get("author"),
		Status:   model.BookStatus(query.Get("status")),
		Category: query.Get("category"),
	}

	var err error
	if filter.MinPages, err = httputil.ExtractOptionalInt(r, "min_pages"); err != nil {
		return filter, err
	}
	if filter.MaxPages, err = httputil.ExtractOptionalInt(r, "max_pages"); err != nil {
		return filter, err
	}

	return filter, nil
}

func (h *BookHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/books", h.List)
	router.GET("/api/v1/books/id/:id", h.GetByID)
	router.POST("/api/v1/books", h.guard.Require(policy.CreateBook, h.Create))
	router.PATCH("/api/v1/books/id/:id/status", h.guard.Require(policy.UpdateBookStatus, h.UpdateStatus))
	router.DELETE("/api/v1/books/id/:id", h.guard.Require(policy.DeleteBook, h.Delete))
}
