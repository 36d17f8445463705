package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/service"
	"gpu-market/pkg/logging"
)

type AuthorizationHandler struct {
	service AuthorizationService
	logger  *logging.ZapLogger
	cookie  SessionCookie
}

type AuthorizationInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthorizationService interface {
	Login(ctx context.Context, username string, password string) (service.Session, error)
}

func NewAuthorizationHandler(service AuthorizationService, cookie SessionCookie, logger *logging.ZapLogger) *AuthorizationHandler {
	return &AuthorizationHandler{
		service: service,
		logger:  logger,
		cookie:  cookie,
	}
}

func (h *AuthorizationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	input, err := decodeJSON[AuthorizationInput](r.Body)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "error decoding input", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	session, err := h.service.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			h.logger.DebugCtx(r.Context(), "invalid credentials", zap.String("username", input.Username))
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
		default:
			writeServiceError(r.Context(), w, h.logger, err, internalServerErrorMessage)
		}
		return
	}

	h.cookie.Set(w, session.Token)
	if err := tryWriteResponseJSON(w, toAccountUser(session.User)); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}

type LogoutHandler struct {
	cookie SessionCookie
}

func NewLogoutHandler(cookie SessionCookie) *LogoutHandler {
	return &LogoutHandler{
		cookie: cookie,
	}
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.cookie.Clear(w)
	_ = tryWriteResponseJSON(w, map[string]bool{"success": true})
}
