package handlers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/pkg/logging"
)

type BalanceInfo struct {
	Balance float64 `json:"balance"`
}

type BalanceGettingHandler struct {
	service BalanceGettingService
	logger  *logging.ZapLogger
}

type BalanceGettingService interface {
	GetBalance(ctx context.Context, userID int) (decimal.Decimal, error)
}

func NewBalanceGettingHandler(service BalanceGettingService, logger *logging.ZapLogger) *BalanceGettingHandler {
	return &BalanceGettingHandler{
		service: service,
		logger:  logger,
	}
}

func (h *BalanceGettingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverUserIDErrorMessage, zap.Error(err))
		writeError(w, http.StatusUnauthorized, notAuthenticatedMessage)
		return
	}
	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.ErrorCtx(r.Context(), "Failed to get user balance", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch balance")
		return
	}
	if err := tryWriteResponseJSON(w, BalanceInfo{Balance: toFloat(balance)}); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}
