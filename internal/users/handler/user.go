package handler

import (
	"bookshelf/internal/policy"
	"bookshelf/internal/users/service"
	httputil "bookshelf/pkg/http"
	"bookshelf/pkg/logger"
	"bookshelf/pkg/middleware"
	"bookshelf/pkg/model"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type UserHandler struct {
	service service.UserService
	guard   *middleware.Guard
	log     *logger.Logger
}

func NewUserHandler(service service.UserService, guard *middleware.Guard, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	filter := model.UserFilter{
		Role:             model.Role(query.Get("role")),
		EmploymentStatus: model.EmploymentStatus(query.Get("employment_status")),
	}

	users, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(h.log, w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, users); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.RoleUpdate
	if err := httputil.DecodeJSONBody(r, &update, false); err != nil {
		writeError(h.log, w, "UpdateRole", err)
		return
	}

	actor, _ := middleware.IdentityFromContext(r.Context())
	user, err := h.service.UpdateRole(r.Context(), ps.ByName("id"), &update, actor.UserID)
	if err != nil {
		writeError(h.log, w, "UpdateRole", err)
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateRole", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) UpdateEmploymentStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.EmploymentStatusUpdate
	if err := httputil.DecodeJSONBody(r, &update, false); err != nil {
		writeError(h.log, w, "UpdateEmploymentStatus", err)
		return
	}

	actor, _ := middleware.IdentityFromContext(r.Context())
	user, err := h.service.UpdateEmploymentStatus(r.Context(), ps.ByName("id"), &update, actor.UserID)
	if err != nil {
		writeError(h.log, w, "UpdateEmploymentStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateEmploymentStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/users", h.guard.Require(policy.ManageUsers, h.List))
	router.PATCH("/api/v1/users/id/:id/role", h.guard.Require(policy.ManageUsers, h.UpdateRole))
	router.PATCH("/api/v1/users/id/:id/employment-status", h.guard.Require(policy.ManageUsers, h.UpdateEmploymentStatus))
}
