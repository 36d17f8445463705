package partner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"gpu-market/internal/common/partnerprotocol"
	"gpu-market/pkg/logging"
	"gpu-market/pkg/metrics"
)

var (
	ErrUpstream = errors.New("partner responded with an error")
)

// UpstreamError carries a non-2xx partner response.
type UpstreamError struct {
	Body       string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("partner responded with status %d", e.StatusCode)
	}
	return e.Body
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

type Config struct {
	ServerAddress string
	APIKey        string
	Timeout       time.Duration
}

type Client struct {
	logger *logging.ZapLogger
	client *resty.Client
}

func NewClient(cfg Config, logger *logging.ZapLogger) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.ServerAddress, "/")).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	return &Client{
		logger: logger,
		client: c,
	}
}

// ListExecutors fetches the partner catalog. A body that is not a JSON array
// yields an empty list; entries that do not decode are skipped.
func (c *Client) ListExecutors(ctx context.Context) ([]partnerprotocol.Executor, error) {
	timer := metrics.NewTimer()
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/api/executors")
	if err := c.checkResponse(ctx, "list_executors", timer, resp, err); err != nil {
		return nil, err
	}

	body := resp.Body()
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshalling executors response: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		c.logger.WarnCtx(ctx, "partner catalog is not an array")
		return []partnerprotocol.Executor{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("error unmarshalling executors response: %w", err)
	}
	res := make([]partnerprotocol.Executor, 0, len(items))
	for i, item := range items {
		var executor partnerprotocol.Executor
		if err := json.Unmarshal(item, &executor); err != nil {
			c.logger.WarnCtx(ctx, "skipping malformed executor", zap.Int("index", i), zap.Error(err))
			continue
		}
		res = append(res, executor)
	}
	c.logger.DebugCtx(ctx, "executors fetched", zap.Int("count", len(res)), zap.Int("skipped", len(items)-len(res)))
	return res, nil
}

func (c *Client) CreateOrder(ctx context.Context, offerID string, hours int) (partnerprotocol.Order, error) {
	timer := metrics.NewTimer()
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(partnerprotocol.CreateOrderRequest{
			OfferID: offerID,
			Hours:   hours,
		}).
		Post("/api/orders")
	if err := c.checkResponse(ctx, "create_order", timer, resp, err); err != nil {
		return partnerprotocol.Order{}, err
	}

	res := partnerprotocol.Order{}
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		c.logger.ErrorCtx(ctx, "Error unmarshalling order response", zap.Error(err))
		return partnerprotocol.Order{}, fmt.Errorf("error unmarshalling order response: %w", err)
	}
	c.logger.DebugCtx(ctx, "partner order created", zap.Any("order", res))
	return res, nil
}

func (c *Client) GetOrder(ctx context.Context, partnerOrderID string) (partnerprotocol.Order, error) {
	timer := metrics.NewTimer()
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", partnerOrderID).
		Get("/api/orders/{id}")
	if err := c.checkResponse(ctx, "get_order", timer, resp, err); err != nil {
		return partnerprotocol.Order{}, err
	}

	res := partnerprotocol.Order{}
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		return partnerprotocol.Order{}, fmt.Errorf("error unmarshalling order response: %w", err)
	}
	return res, nil
}

func (c *Client) checkResponse(
	ctx context.Context,
	operation string,
	timer *metrics.Timer,
	resp *resty.Response,
	err error,
) error {
	if err != nil {
		timer.ObserveDurationVec(metrics.PartnerRequestDuration, operation, "error")
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		timer.ObserveDurationVec(metrics.PartnerRequestDuration, operation, "upstream_error")
		c.logger.WarnCtx(
			ctx,
			"partner responded with an error",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode()),
		)
		return &UpstreamError{
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(resp.String()),
		}
	}
	timer.ObserveDurationVec(metrics.PartnerRequestDuration, operation, "ok")
	return nil
}
