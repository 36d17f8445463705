package handlers

import (
	"context"
	"math"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/payments"
	"gpu-market/internal/gpumarket/service"
	"gpu-market/pkg/logging"
)

type CheckoutSessionInput struct {
	Email     string  `json:"email"`
	UserEmail string  `json:"userEmail"`
	PlanID    string  `json:"planId"`
	OfferID   string  `json:"offerId"`
	Amount    float64 `json:"amount"`
	Hours     int     `json:"hours"`
}

type CheckoutSessionResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId,omitempty"`
}

type CheckoutService interface {
	CreateSession(ctx context.Context, req service.SessionRequest) (payments.CheckoutSession, error)
	TopUp(ctx context.Context, userID int, email string, amount decimal.Decimal) (payments.CheckoutSession, error)
	CryptoCharge(ctx context.Context, req service.CryptoChargeRequest) (payments.Charge, error)
}

// accountEmail resolves the email stored on the account, or "".
func accountEmail(ctx context.Context, users CurrentUserService, userID int, logger *logging.ZapLogger) string {
	user, err := users.CurrentUser(ctx, userID)
	if err != nil {
		logger.WarnCtx(ctx, "failed to load account email", zap.Error(err))
		return ""
	}
	if user.Email == nil {
		return ""
	}
	return *user.Email
}

type CheckoutSessionHandler struct {
	service CheckoutService
	users   CurrentUserService
	logger  *logging.ZapLogger
}

func NewCheckoutSessionHandler(service CheckoutService, users CurrentUserService, logger *logging.ZapLogger) *CheckoutSessionHandler {
	return &CheckoutSessionHandler{
		service: service,
		users:   users,
		logger:  logger,
	}
}

func (h *CheckoutSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	userID, err := userIDFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverUserIDErrorMessage, zap.Error(err))
		writeError(w, http.StatusUnauthorized, notAuthenticatedMessage)
		return
	}
	input, err := decodeJSON[CheckoutSessionInput](r.Body)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "error decoding input", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := input.Email
	if email == "" {
		email = input.UserEmail
	}
	if email == "" {
		email = accountEmail(r.Context(), h.users, userID, h.logger)
	}

	session, err := h.service.CreateSession(r.Context(), service.SessionRequest{
		UserID:      userID,
		Email:       email,
		AmountCents: int64(math.Round(input.Amount)),
		PlanID:      input.PlanID,
		OfferID:     input.OfferID,
		Hours:       input.Hours,
	})
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, err, "Failed to create checkout session")
		return
	}
	if err := tryWriteResponseJSON(w, CheckoutSessionResponse{URL: session.URL, SessionID: session.ID}); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}

type TopUpInput struct {
	Amount decimal.Decimal `json:"amount"`
}

type TopUpHandler struct {
	service CheckoutService
	users   CurrentUserService
	logger  *logging.ZapLogger
}

func NewTopUpHandler(service CheckoutService, users CurrentUserService, logger *logging.ZapLogger) *TopUpHandler {
	return &TopUpHandler{
		service: service,
		users:   users,
		logger:  logger,
	}
}

func (h *TopUpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	userID, err := userIDFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverUserIDErrorMessage, zap.Error(err))
		writeError(w, http.StatusUnauthorized, notAuthenticatedMessage)
		return
	}
	input, err := decodeJSON[TopUpInput](r.Body)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "error decoding input", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	email := accountEmail(r.Context(), h.users, userID, h.logger)
	session, err := h.service.TopUp(r.Context(), userID, email, input.Amount)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, err, "Failed to create top-up session")
		return
	}
	if err := tryWriteResponseJSON(w, CheckoutSessionResponse{URL: session.URL}); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}

type CryptoCheckoutInput struct {
	PodID  string          `json:"podId"`
	Amount decimal.Decimal `json:"amount"`
	Hours  int             `json:"hours"`
}

type CryptoCheckoutResponse struct {
	HostedURL string `json:"hosted_url"`
	ID        string `json:"id"`
}

type CryptoCheckoutHandler struct {
	service CheckoutService
	users   CurrentUserService
	logger  *logging.ZapLogger
}

func NewCryptoCheckoutHandler(service CheckoutService, users CurrentUserService, logger *logging.ZapLogger) *CryptoCheckoutHandler {
	return &CryptoCheckoutHandler{
		service: service,
		users:   users,
		logger:  logger,
	}
}

func (h *CryptoCheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	userID, err := userIDFromCtx(r.Context())
	if err != nil {
		h.logger.ErrorCtx(r.Context(), failedToRecoverUserIDErrorMessage, zap.Error(err))
		writeError(w, http.StatusUnauthorized, notAuthenticatedMessage)
		return
	}
	input, err := decodeJSON[CryptoCheckoutInput](r.Body)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "error decoding input", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Amount and podId are required")
		return
	}

	charge, err := h.service.CryptoCharge(r.Context(), service.CryptoChargeRequest{
		UserID: userID,
		Email:  accountEmail(r.Context(), h.users, userID, h.logger),
		PodID:  input.PodID,
		Amount: input.Amount,
		Hours:  input.Hours,
	})
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, err, internalServerErrorMessage)
		return
	}
	if err := tryWriteResponseJSON(w, CryptoCheckoutResponse{HostedURL: charge.HostedURL, ID: charge.ID}); err != nil {
		h.logger.ErrorCtx(r.Context(), "Error writing response", zap.Error(err))
	}
}
