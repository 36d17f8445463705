package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"gpu-market/internal/gpumarket/data"
)

const (
	coinbaseAPIVersion       = "2018-03-22"
	coinbaseDefaultURL       = "https://api.commerce.coinbase.com"
	coinbaseChargeConfirmed  = "charge:confirmed"
	coinbaseFixedPricingType = "fixed_price"
	CoinbaseSignatureHeader  = "X-CC-Webhook-Signature"
)

type CoinbaseConfig struct {
	ServerAddress string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

type ChargeRequest struct {
	Metadata    map[string]string
	Name        string
	Description string
	Currency    string
	RedirectURL string
	CancelURL   string
	Amount      decimal.Decimal
}

type Charge struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	HostedURL string `json:"hosted_url"`
}

type chargeBody struct {
	Metadata    map[string]string `json:"metadata"`
	LocalPrice  localPrice        `json:"local_price"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	PricingType string            `json:"pricing_type"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	CancelURL   string            `json:"cancel_url,omitempty"`
}

type localPrice struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type CoinbaseClient struct {
	client *resty.Client
}

func NewCoinbaseClient(cfg CoinbaseConfig) *CoinbaseClient {
	addr := cfg.ServerAddress
	if addr == "" {
		addr = coinbaseDefaultURL
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(addr, "/")).
		SetHeader("X-CC-Api-Key", cfg.APIKey).
		SetHeader("X-CC-Version", coinbaseAPIVersion)
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	return &CoinbaseClient{
		client: c,
	}
}

func (c *CoinbaseClient) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	var result struct {
		Data Charge `json:"data"`
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(chargeBody{
			Name:        req.Name,
			Description: req.Description,
			PricingType: coinbaseFixedPricingType,
			LocalPrice: localPrice{
				Amount:   req.Amount.StringFixed(2),
				Currency: currency,
			},
			RedirectURL: req.RedirectURL,
			CancelURL:   req.CancelURL,
			Metadata:    req.Metadata,
		}).
		SetResult(&result).
		Post("/charges")
	if err != nil {
		return Charge{}, fmt.Errorf("create charge request failed: %w", err)
	}
	if resp.IsError() {
		return Charge{}, fmt.Errorf("create charge: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Data, nil
}

type coinbaseEnvelope struct {
	Event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			ID       string         `json:"id"`
			Code     string         `json:"code"`
			Metadata map[string]any `json:"metadata"`
			Pricing  struct {
				Local struct {
					Amount   string `json:"amount"`
					Currency string `json:"currency"`
				} `json:"local"`
			} `json:"pricing"`
		} `json:"data"`
	} `json:"event"`
}

type CoinbaseVerifier struct {
	secret []byte
}

func NewCoinbaseVerifier(cfg CoinbaseConfig) *CoinbaseVerifier {
	return &CoinbaseVerifier{
		secret: []byte(cfg.WebhookSecret),
	}
}

// Sign returns the hex HMAC-SHA256 of payload the way the commerce API signs
// webhook deliveries.
func (v *CoinbaseVerifier) Sign(payload []byte) string {
	return hex.EncodeToString(v.mac(payload))
}

func (v *CoinbaseVerifier) mac(payload []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

func (v *CoinbaseVerifier) Parse(payload []byte, signature string) (Event, error) {
	if len(v.secret) == 0 {
		return Event{}, fmt.Errorf("%w: webhook secret is not configured", ErrInvalidSignature)
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || !hmac.Equal(got, v.mac(payload)) {
		return Event{}, ErrInvalidSignature
	}

	var envelope coinbaseEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	res := Event{
		Provider: data.CoinbaseProvider,
		ID:       envelope.Event.ID,
		Type:     envelope.Event.Type,
	}
	if res.ID == "" {
		return Event{}, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}
	if res.Type != coinbaseChargeConfirmed {
		return res, nil
	}

	charge := envelope.Event.Data
	res.Completed = true
	res.Reference = charge.ID
	res.Metadata = make(map[string]string, len(charge.Metadata))
	for k, val := range charge.Metadata {
		switch val := val.(type) {
		case string:
			res.Metadata[k] = val
		case nil:
		default:
			res.Metadata[k] = fmt.Sprint(val)
		}
	}
	if amount, err := decimal.NewFromString(charge.Pricing.Local.Amount); err == nil {
		res.Amount = amount
	}
	return res, nil
}
