package handler

import (
	"bookshelf/internal/borrowing/service"
	"bookshelf/internal/policy"
	httputil "bookshelf/pkg/http"
	"bookshelf/pkg/logger"
	"bookshelf/pkg/middleware"
	"bookshelf/pkg/model"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type BorrowHandler struct {
	service service.BorrowService
	guard   *middleware.Guard
	log     *logger.Logger
}

func NewBorrowHandler(service service.BorrowService, guard *middleware.Guard, log *logger.Logger) *BorrowHandler {
	return &BorrowHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *BorrowHandler) Borrow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.BorrowRequest
	if err := httputil.DecodeJSONBody(r, &req, true); err != nil {
		h.writeError(w, "Borrow", err)
		return
	}

	caller, _ := middleware.IdentityFromContext(r.Context())
	result, err := h.service.BorrowBook(r.Context(), ps.ByName("id"), caller.UserID, req.DurationDays)
	if err != nil {
		h.writeError(w, "Borrow", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "Borrow", "operation", "WriteCreated", "error", err)
	}
}

func (h *BorrowHandler) Return(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ReturnRequest
	if err := httputil.DecodeJSONBody(r, &req, true); err != nil {
		h.writeError(w, "Return", err)
		return
	}

	caller, _ := middleware.IdentityFromContext(r.Context())
	result, err := h.service.ReturnBook(r.Context(), ps.ByName("id"), caller.UserID, req)
	if err != nil {
		h.writeError(w, "Return", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Return", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BorrowHandler) History(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	filter := model.HistoryFilter{
		UserID: query.Get("user_id"),
		Status: model.BorrowStatus(query.Get("status")),
	}

	caller, _ := middleware.IdentityFromContext(r.Context())
	records, err := h.service.GetBorrowHistory(r.Context(), caller, filter)
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	if err := httputil.WriteSuccess(w, records); err != nil {
		h.log.Error("failed to write success response", "handler", "History", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BorrowHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, _ := middleware.IdentityFromContext(r.Context())
	record, err := h.service.ApproveBorrow(r.Context(), ps.ByName("id"), caller.UserID)
	if err != nil {
		h.writeError(w, "Approve", err)
		return
	}

	if err := httputil.WriteSuccess(w, record); err != nil {
		h.log.Error("failed to write success response", "handler", "Approve", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BorrowHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BorrowHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/books/id/:id/borrow", h.guard.Require(policy.Borrow, h.Borrow))
	router.POST("/api/v1/books/id/:id/return", h.guard.Require(policy.Return, h.Return))
	router.GET("/api/v1/borrowing/history", h.guard.Authenticated(h.History))
	router.PATCH("/api/v1/borrowing/id/:id/approve", h.guard.Require(policy.ApproveBorrow, h.Approve))
}
