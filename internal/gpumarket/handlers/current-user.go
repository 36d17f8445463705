package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"gpu-market/internal/common/clientprotocol"
	"gpu-market/internal/gpumarket/data"
	"gpu-market/pkg/logging"
)

type CurrentUserHandler struct {
	service CurrentUserService
	logger  *logging.ZapLogger
}

type CurrentUserService interface {
	CurrentUser(ctx context.Context, userID int) (data.User, error)
}

func NewCurrentUserHandler(service CurrentUserService, logger *logging.ZapLogger) *CurrentUserHandler {
	return &CurrentUserHandler{
		service: service,
		logger:  logger,
	}
}

func (h *CurrentUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverUserIDErrorMessage, zap.Error(err))
		writeError(w, http.StatusUnauthorized, notAuthenticatedMessage)
		return
	}
	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, err, "Failed to fetch user")
		return
	}
	res := clientprotocol.CurrentUser{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Balance:  toFloat(user.Balance),
	}
	if err := tryWriteResponseJSON(w, res); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}
