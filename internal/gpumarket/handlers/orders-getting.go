package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"gpu-market/internal/common/clientprotocol"
	"gpu-market/internal/gpumarket/data"
	"gpu-market/pkg/logging"
)

type OrdersGettingHandler struct {
	service OrdersGettingService
	logger  *logging.ZapLogger
}

type OrdersGettingService interface {
	GetOrders(ctx context.Context, userID int, limit int) ([]data.Order, error)
}

func NewOrdersGettingHandler(service OrdersGettingService, logger *logging.ZapLogger) *OrdersGettingHandler {
	return &OrdersGettingHandler{
		service: service,
		logger:  logger,
	}
}

func (h *OrdersGettingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverUserIDErrorMessage, zap.Error(err))
		writeError(w, http.StatusUnauthorized, notAuthenticatedMessage)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
	}

	orders, err := h.service.GetOrders(r.Context(), userID, limit)
	if err != nil {
		h.logger.ErrorCtx(r.Context(), "Error getting orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	res := make([]clientprotocol.Order, len(orders))
	for i, order := range orders {
		res[i] = toClientOrder(order)
	}
	if err := tryWriteResponseJSON(w, map[string]any{"orders": res}); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}
