package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"gpu-market/internal/common/clientprotocol"
	"gpu-market/pkg/logging"
)

type OffersGettingHandler struct {
	service OffersGettingService
	logger  *logging.ZapLogger
}

type OffersGettingService interface {
	ListOffers(ctx context.Context) ([]clientprotocol.Offer, error)
}

func NewOffersGettingHandler(service OffersGettingService, logger *logging.ZapLogger) *OffersGettingHandler {
	return &OffersGettingHandler{
		service: service,
		logger:  logger,
	}
}

func (h *OffersGettingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	offers, err := h.service.ListOffers(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, err, err.Error())
		return
	}
	if err := tryWriteResponseJSON(w, offers); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}
