package handler

import (
	"bookshelf/internal/users/service"
	httputil "bookshelf/pkg/http"
	"bookshelf/pkg/logger"
	"bookshelf/pkg/middleware"
	"bookshelf/pkg/model"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type AuthHandler struct {
	service service.AuthService
	guard   *middleware.Guard
	log     *logger.Logger
}

func NewAuthHandler(service service.AuthService, guard *middleware.Guard, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		guard:   guard,
		log:     log,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input model.RegisterInput
	if err := httputil.DecodeJSONBody(r, &input, false); err != nil {
		writeError(h.log, w, "Register", err)
		return
	}

	user, err := h.service.Register(r.Context(), &input)
	if err != nil {
		writeError(h.log, w, "Register", err)
		return
	}

	if err := httputil.WriteCreated(w, user); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input model.LoginInput
	if err := httputil.DecodeJSONBody(r, &input, false); err != nil {
		writeError(h.log, w, "Login", err)
		return
	}

	result, err := h.service.Login(r.Context(), &input)
	if err != nil {
		writeError(h.log, w, "Login", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Login", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.service.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
		writeError(h.log, w, "Logout", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *AuthHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/auth/register", h.Register)
	router.POST("/api/v1/auth/login", h.Login)
	router.POST("/api/v1/auth/logout", h.guard.Authenticated(h.Logout))
}

func writeError(log *logger.Logger, w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
