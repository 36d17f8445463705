package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"gpu-market/internal/common/clientprotocol"
	"gpu-market/internal/gpumarket/data"
	"gpu-market/pkg/logging"
)

type TransactionsGettingHandler struct {
	service TransactionsGettingService
	logger  *logging.ZapLogger
}

type TransactionsGettingService interface {
	GetTransactions(ctx context.Context, userID int) ([]data.Transaction, error)
}

func NewTransactionsGettingHandler(service TransactionsGettingService, logger *logging.ZapLogger) *TransactionsGettingHandler {
	return &TransactionsGettingHandler{
		service: service,
		logger:  logger,
	}
}

func (h *TransactionsGettingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverUserIDErrorMessage, zap.Error(err))
		writeError(w, http.StatusUnauthorized, notAuthenticatedMessage)
		return
	}
	transactions, err := h.service.GetTransactions(r.Context(), userID)
	if err != nil {
		h.logger.ErrorCtx(r.Context(), "Error getting transactions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch transactions")
		return
	}
	res := make([]clientprotocol.Transaction, len(transactions))
	for i, transaction := range transactions {
		res[i] = toClientTransaction(transaction)
	}
	if err := tryWriteResponseJSON(w, map[string]any{"transactions": res}); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}
