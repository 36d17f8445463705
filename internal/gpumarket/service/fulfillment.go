package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/data"
	"gpu-market/pkg/logging"
	"gpu-market/pkg/metrics"
)

type FulfillmentRequest struct {
	Email       string
	OfferID     string
	Provider    data.PaymentProvider
	PriceClient decimal.Decimal
	UserID      int
	Hours       int
}

// Fulfillment provisions a paid pod at the partner, stores the order and
// notifies the buyer.
type Fulfillment struct {
	partner         Partner
	orderRepository OrderRepository
	notifier        Notifier
	logger          *logging.ZapLogger
}

func NewFulfillment(
	partner Partner,
	orderRepository OrderRepository,
	notifier Notifier,
	logger *logging.ZapLogger,
) *Fulfillment {
	return &Fulfillment{
		partner:         partner,
		orderRepository: orderRepository,
		notifier:        notifier,
		logger:          logger,
	}
}

// Fulfill returns an error wrapping ErrProvisioning only when the partner
// order could not be created. Later failures are logged and the order is
// still returned.
func (f *Fulfillment) Fulfill(ctx context.Context, req FulfillmentRequest) (data.Order, error) {
	hours := hoursOrDefault(req.Hours)
	partnerOrder, err := f.partner.CreateOrder(ctx, req.OfferID, hours)
	if err != nil {
		metrics.FulfillmentsTotal.WithLabelValues("partner_failed").Inc()
		return data.Order{}, fmt.Errorf("%w: %w", ErrProvisioning, err)
	}

	now := time.Now()
	order := data.Order{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		PartnerOrderID:  partnerOrder.ID,
		OfferID:         req.OfferID,
		Status:          partnerOrder.Status,
		PaymentProvider: req.Provider,
		PriceClient:     req.PriceClient,
		PriceProvider:   partnerOrder.Price,
		Hours:           hours,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := f.orderRepository.InsertOrder(ctx, &order); err != nil {
		metrics.FulfillmentsTotal.WithLabelValues("persist_failed").Inc()
		f.logger.ErrorCtx(
			ctx,
			"partner order created but not stored",
			zap.String("partnerOrderID", partnerOrder.ID),
			zap.Int("userID", req.UserID),
			zap.Error(err),
		)
	} else {
		metrics.FulfillmentsTotal.WithLabelValues("ok").Inc()
		f.logger.InfoCtx(ctx, "order fulfilled", zap.String("orderID", order.ID), zap.String("partnerOrderID", order.PartnerOrderID))
	}

	if req.Email != "" {
		if err := f.notifier.OrderConfirmed(ctx, req.Email, order); err != nil {
			f.logger.WarnCtx(ctx, "order confirmation not sent", zap.String("orderID", order.ID), zap.Error(err))
		}
	}
	return order, nil
}
