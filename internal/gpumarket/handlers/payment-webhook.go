package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/data"
	"gpu-market/internal/gpumarket/payments"
	"gpu-market/internal/gpumarket/service"
	"gpu-market/pkg/logging"
	"gpu-market/pkg/metrics"
)

const maxWebhookBodyBytes = 1 << 20

type PaymentEventsService interface {
	Handle(ctx context.Context, event payments.Event) (service.EventOutcome, error)
}

type EventVerifier interface {
	Parse(payload []byte, signature string) (payments.Event, error)
}

// PaymentWebhookHandler verifies a processor callback and applies it. The
// processor redelivers on any non-2xx answer.
type PaymentWebhookHandler struct {
	service         PaymentEventsService
	verifier        EventVerifier
	logger          *logging.ZapLogger
	provider        data.PaymentProvider
	signatureHeader string
}

func NewStripeWebhookHandler(service PaymentEventsService, verifier EventVerifier, logger *logging.ZapLogger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		service:         service,
		verifier:        verifier,
		logger:          logger,
		provider:        data.StripeProvider,
		signatureHeader: "Stripe-Signature",
	}
}

func NewCoinbaseWebhookHandler(service PaymentEventsService, verifier EventVerifier, logger *logging.ZapLogger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		service:         service,
		verifier:        verifier,
		logger:          logger,
		provider:        data.CoinbaseProvider,
		signatureHeader: payments.CoinbaseSignatureHeader,
	}
}

func (h *PaymentWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)
	provider := string(h.provider)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.WarnCtx(r.Context(), "failed to read webhook body", zap.Error(err))
		metrics.WebhookEventsTotal.WithLabelValues(provider, "bad_request").Inc()
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	event, err := h.verifier.Parse(payload, r.Header.Get(h.signatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			h.logger.WarnCtx(r.Context(), "webhook signature verification failed", zap.Error(err))
			metrics.WebhookEventsTotal.WithLabelValues(provider, "invalid_signature").Inc()
			writeError(w, http.StatusBadRequest, "Invalid signature")
		default:
			h.logger.WarnCtx(r.Context(), "malformed webhook event", zap.Error(err))
			metrics.WebhookEventsTotal.WithLabelValues(provider, "bad_request").Inc()
			writeError(w, http.StatusBadRequest, "Invalid event")
		}
		return
	}

	outcome, err := h.service.Handle(r.Context(), event)
	if err != nil {
		h.logger.ErrorCtx(r.Context(), "failed to process payment event", zap.String("eventID", event.ID), zap.Error(err))
		metrics.WebhookEventsTotal.WithLabelValues(provider, "failed").Inc()
		writeError(w, http.StatusInternalServerError, "Webhook processing failed")
		return
	}
	metrics.WebhookEventsTotal.WithLabelValues(provider, string(outcome)).Inc()
	if err := tryWriteResponseJSON(w, map[string]bool{"received": true}); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}
