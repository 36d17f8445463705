package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/data"
	"gpu-market/internal/gpumarket/service"
	"gpu-market/pkg/logging"
)

type OrderRentingInput struct {
	OfferID string `json:"offerId"`
	Hours   int    `json:"hours"`
}

type OrderRentingService interface {
	RentWithBalance(ctx context.Context, req service.RentRequest) (data.Order, error)
}

type OrderRentingHandler struct {
	service OrderRentingService
	users   CurrentUserService
	logger  *logging.ZapLogger
}

func NewOrderRentingHandler(service OrderRentingService, users CurrentUserService, logger *logging.ZapLogger) *OrderRentingHandler {
	return &OrderRentingHandler{
		service: service,
		users:   users,
		logger:  logger,
	}
}

func (h *OrderRentingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	userID, err := userIDFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverUserIDErrorMessage, zap.Error(err))
		writeError(w, http.StatusUnauthorized, notAuthenticatedMessage)
		return
	}
	input, err := decodeJSON[OrderRentingInput](r.Body)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "error decoding input", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.service.RentWithBalance(r.Context(), service.RentRequest{
		UserID:  userID,
		Email:   accountEmail(r.Context(), h.users, userID, h.logger),
		OfferID: input.OfferID,
		Hours:   input.Hours,
	})
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, err, "Failed to create order")
		return
	}
	if err := writeResponseJSON(w, http.StatusCreated, map[string]any{"order": toClientOrder(order)}); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}
