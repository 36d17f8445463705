package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/payments"
	"gpu-market/pkg/logging"
)

const topUpProductName = "Top-up GPU market balance"

type CheckoutConfig struct {
	PublicBaseURL string
}

// SessionRequest selects a top-up when AmountCents is positive, otherwise an
// order for PlanID.
type SessionRequest struct {
	Email       string
	PlanID      string
	OfferID     string
	AmountCents int64
	Hours       int
	UserID      int
}

type CryptoChargeRequest struct {
	Email  string
	PodID  string
	Amount decimal.Decimal
	Hours  int
	UserID int
}

type Checkout struct {
	cards   CheckoutGateway
	crypto  ChargeGateway
	catalog *Catalog
	logger  *logging.ZapLogger
	config  CheckoutConfig
}

func NewCheckout(
	config CheckoutConfig,
	cards CheckoutGateway,
	crypto ChargeGateway,
	catalog *Catalog,
	logger *logging.ZapLogger,
) *Checkout {
	return &Checkout{
		cards:   cards,
		crypto:  crypto,
		catalog: catalog,
		logger:  logger,
		config:  config,
	}
}

func (c *Checkout) CreateSession(ctx context.Context, req SessionRequest) (payments.CheckoutSession, error) {
	if strings.TrimSpace(req.Email) == "" {
		return payments.CheckoutSession{}, newValidationError("Missing email")
	}

	var checkout payments.CheckoutRequest
	switch {
	case req.AmountCents > 0:
		checkout = c.topUpRequest(req.UserID, req.Email, req.AmountCents)
	case req.PlanID != "":
		offerID := req.OfferID
		if offerID == "" {
			offerID = req.PlanID
		}
		checkout = payments.CheckoutRequest{
			CustomerEmail: req.Email,
			PriceID:       req.PlanID,
			SuccessURL:    c.url("/dashboard?success=pod"),
			CancelURL:     c.url("/browse-pods?canceled=pod"),
			Metadata: map[string]string{
				payments.MetaType:           payments.MetaTypeOrder,
				payments.MetaUserID:         strconv.Itoa(req.UserID),
				payments.MetaUserEmail:      req.Email,
				payments.MetaPartnerOfferID: offerID,
				payments.MetaHours:          strconv.Itoa(hoursOrDefault(req.Hours)),
			},
		}
	default:
		return payments.CheckoutSession{}, newValidationError("Missing amount or planId")
	}

	session, err := c.cards.CreateCheckoutSession(ctx, checkout)
	if err != nil {
		return payments.CheckoutSession{}, fmt.Errorf("creating checkout session failed: %w", err)
	}
	c.logger.InfoCtx(ctx, "checkout session created", zap.String("sessionID", session.ID), zap.Int("userID", req.UserID))
	return session, nil
}

// TopUp starts a card payment of amount dollars credited to the balance.
func (c *Checkout) TopUp(ctx context.Context, userID int, email string, amount decimal.Decimal) (payments.CheckoutSession, error) {
	if !amount.IsPositive() {
		return payments.CheckoutSession{}, newValidationError("Invalid amount")
	}
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if cents <= 0 {
		return payments.CheckoutSession{}, newValidationError("Invalid amount")
	}
	session, err := c.cards.CreateCheckoutSession(ctx, c.topUpRequest(userID, email, cents))
	if err != nil {
		return payments.CheckoutSession{}, fmt.Errorf("creating top-up session failed: %w", err)
	}
	return session, nil
}

// CryptoCharge bills the catalog price of the pod for the requested hours.
// The amount sent by the client is only a quote and must cover that price.
func (c *Checkout) CryptoCharge(ctx context.Context, req CryptoChargeRequest) (payments.Charge, error) {
	if req.PodID == "" || req.Amount.IsNegative() {
		return payments.Charge{}, newValidationError("Amount and podId are required")
	}
	offer, err := c.catalog.FindOffer(ctx, req.PodID)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return payments.Charge{}, err
		}
		return payments.Charge{}, fmt.Errorf("looking up pod failed: %w", err)
	}
	hours := hoursOrDefault(req.Hours)
	price := offerPrice(offer.Price, hours)
	if !price.IsPositive() {
		return payments.Charge{}, newValidationError("Pod is not available for purchase")
	}
	if req.Amount.IsPositive() && req.Amount.LessThan(price) {
		return payments.Charge{}, newValidationError("Amount does not cover the pod price")
	}

	charge, err := c.crypto.CreateCharge(ctx, payments.ChargeRequest{
		Name:        "GPU Pod: " + offer.GPUDisplay,
		Description: fmt.Sprintf("Rent a %s GPU pod", offer.GPUDisplay),
		Amount:      price,
		RedirectURL: c.url("/dashboard?payment=success"),
		CancelURL:   c.url("/browse-pods?payment=cancelled"),
		Metadata: map[string]string{
			payments.MetaPodID:     req.PodID,
			payments.MetaUserID:    strconv.Itoa(req.UserID),
			payments.MetaUserEmail: req.Email,
			payments.MetaHours:     strconv.Itoa(hours),
		},
	})
	if err != nil {
		return payments.Charge{}, fmt.Errorf("creating crypto charge failed: %w", err)
	}
	c.logger.InfoCtx(ctx, "crypto charge created", zap.String("chargeID", charge.ID), zap.Int("userID", req.UserID))
	return charge, nil
}

func (c *Checkout) topUpRequest(userID int, email string, cents int64) payments.CheckoutRequest {
	return payments.CheckoutRequest{
		CustomerEmail: email,
		AmountCents:   cents,
		ProductName:   topUpProductName,
		SuccessURL:    c.url("/dashboard?success=topup"),
		CancelURL:     c.url("/dashboard?canceled=topup"),
		Metadata: map[string]string{
			payments.MetaType:   payments.MetaTypeTopUp,
			payments.MetaUserID: strconv.Itoa(userID),
			payments.MetaAmount: strconv.FormatInt(cents, 10),
		},
	}
}

func (c *Checkout) url(path string) string {
	return strings.TrimRight(c.config.PublicBaseURL, "/") + path
}

func hoursOrDefault(hours int) int {
	if hours <= 0 {
		return 1
	}
	return hours
}
