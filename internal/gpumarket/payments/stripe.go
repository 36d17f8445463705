package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"gpu-market/internal/gpumarket/data"
)

const (
	stripeCheckoutCompleted = "checkout.session.completed"
	currencyUSD             = "usd"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// CheckoutRequest describes a hosted card checkout. Exactly one of
// AmountCents (one-time payment) or PriceID (subscription) is expected.
type CheckoutRequest struct {
	Metadata      map[string]string
	CustomerEmail string
	PriceID       string
	ProductName   string
	SuccessURL    string
	CancelURL     string
	AmountCents   int64
}

type CheckoutSession struct {
	ID  string
	URL string
}

type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	return &StripeGateway{
		api: client.New(cfg.SecretKey, nil),
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.PriceID != "" {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		}
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currencyUSD),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		}
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return CheckoutSession{
		ID:  s.ID,
		URL: s.URL,
	}, nil
}

type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(cfg StripeConfig) *StripeVerifier {
	return &StripeVerifier{
		secret: cfg.WebhookSecret,
	}
}

// Parse verifies the Stripe-Signature header against the raw payload and
// decodes the event.
func (v *StripeVerifier) Parse(payload []byte, signatureHeader string) (Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signatureHeader,
		v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	res := Event{
		Provider: data.StripeProvider,
		ID:       event.ID,
		Type:     string(event.Type),
	}
	if res.Type != stripeCheckoutCompleted {
		return res, nil
	}
	if event.Data == nil {
		return Event{}, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, event.ID)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	res.Completed = true
	res.Reference = session.ID
	res.Metadata = session.Metadata
	if res.Metadata == nil {
		res.Metadata = map[string]string{}
	}
	res.Amount = decimal.New(session.AmountTotal, -2)
	res.CustomerEmail = session.CustomerEmail
	if res.CustomerEmail == "" && session.CustomerDetails != nil {
		res.CustomerEmail = session.CustomerDetails.Email
	}
	return res, nil
}
