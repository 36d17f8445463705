package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/internal/common/clientprotocol"
	"gpu-market/internal/gpumarket/data"
	"gpu-market/internal/gpumarket/partner"
	"gpu-market/internal/gpumarket/service"
	"gpu-market/pkg/logging"
)

const (
	failedToRecoverUserIDErrorMessage = "Failed to recover user id"
	internalServerErrorMessage        = "Internal server error"
	notAuthenticatedMessage           = "Not authenticated"

	// SessionCookieName is read by the authentication middleware as well.
	SessionCookieName = "token"
)

var errNoUserIDClaim = errors.New("no user id claim")

func closeBody(ctx context.Context, body io.ReadCloser, logger *logging.ZapLogger) {
	err := body.Close()
	if err != nil {
		logger.ErrorCtx(ctx, "failed to close body", zap.Error(err))
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	decoder := json.NewDecoder(r)
	err := decoder.Decode(&out)
	return out, err
}

func userIDFromCtx(ctx context.Context) (int, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading token from context: %w", err)
	}
	raw, ok := claims[service.UserIDClaimName].(string)
	if !ok {
		return 0, errNoUserIDClaim
	}
	return strconv.Atoi(raw)
}

func tryWriteResponseJSON(w http.ResponseWriter, responseItem any) error {
	return writeResponseJSON(w, http.StatusOK, responseItem)
}

func writeResponseJSON(w http.ResponseWriter, status int, responseItem any) error {
	res, err := json.Marshal(responseItem)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(res)
	if err != nil {
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = writeResponseJSON(w, status, clientprotocol.ErrorResponse{Error: message})
}

// writeServiceError maps service and partner errors to a status. fallback is
// the message used for unexpected errors.
func writeServiceError(ctx context.Context, w http.ResponseWriter, logger *logging.ZapLogger, err error, fallback string) {
	var (
		validationErr *service.ValidationError
		upstreamErr   *partner.UpstreamError
	)
	switch {
	case errors.As(err, &validationErr):
		logger.DebugCtx(ctx, "invalid input", zap.Error(err))
		writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, service.ErrOfferNotFound):
		logger.DebugCtx(ctx, "offer not found", zap.Error(err))
		writeError(w, http.StatusNotFound, "Pod not found")
	case errors.Is(err, service.ErrNotEnoughBalance):
		logger.DebugCtx(ctx, "not enough balance", zap.Error(err))
		writeError(w, http.StatusPaymentRequired, "Insufficient balance")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, notAuthenticatedMessage)
	case errors.As(err, &upstreamErr):
		logger.WarnCtx(ctx, "partner error", zap.Int("status", upstreamErr.StatusCode), zap.Error(err))
		writeError(w, http.StatusBadGateway, upstreamErr.Error())
	default:
		logger.ErrorCtx(ctx, fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// SessionCookie issues and clears the auth cookie.
type SessionCookie struct {
	TTL    time.Duration
	Secure bool
}

func (c SessionCookie) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		Expires:  time.Now().Add(c.TTL),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func toAccountUser(user data.User) clientprotocol.AccountUser {
	return clientprotocol.AccountUser{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
}

func toClientOrder(order data.Order) clientprotocol.Order {
	return clientprotocol.Order{
		ID:              order.ID,
		PartnerOrderID:  order.PartnerOrderID,
		OfferID:         order.OfferID,
		Status:          order.Status,
		PriceClient:     toFloat(order.PriceClient),
		PriceProvider:   toFloat(order.PriceProvider),
		Hours:           order.Hours,
		PaymentProvider: string(order.PaymentProvider),
		CreatedAt:       order.CreatedAt,
	}
}

func toClientTransaction(transaction data.Transaction) clientprotocol.Transaction {
	return clientprotocol.Transaction{
		ID:        transaction.ID,
		Type:      string(transaction.Type),
		Amount:    toFloat(transaction.Amount),
		Reference: transaction.Reference,
		CreatedAt: transaction.CreatedAt,
	}
}

// toFloat converts money for JSON bodies; amounts are two-place decimals so
// the float conversion is exact enough for display.
func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
