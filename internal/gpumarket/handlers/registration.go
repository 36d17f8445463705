package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/service"
	"gpu-market/pkg/logging"
)

type RegisterHandler struct {
	service RegistrationService
	logger  *logging.ZapLogger
	cookie  SessionCookie
}

type RegistrationInput struct {
	Email    *string `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
}

type RegistrationService interface {
	Register(ctx context.Context, credentials service.Credentials) (service.Session, error)
}

func NewRegisterHandler(service RegistrationService, cookie SessionCookie, logger *logging.ZapLogger) *RegisterHandler {
	return &RegisterHandler{
		service: service,
		logger:  logger,
		cookie:  cookie,
	}
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	input, err := decodeJSON[RegistrationInput](r.Body)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "error decoding input", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	session, err := h.service.Register(r.Context(), service.Credentials{
		Username: input.Username,
		Password: input.Password,
		Email:    input.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			h.logger.DebugCtx(r.Context(), "username is already taken", zap.String("username", input.Username))
			writeError(w, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, service.ErrEmailTaken):
			h.logger.DebugCtx(r.Context(), "email is already registered")
			writeError(w, http.StatusBadRequest, "Email already exists")
		default:
			writeServiceError(r.Context(), w, h.logger, err, internalServerErrorMessage)
		}
		return
	}

	h.cookie.Set(w, session.Token)
	if err := writeResponseJSON(w, http.StatusCreated, toAccountUser(session.User)); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}
