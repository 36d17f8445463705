package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/data"
	"gpu-market/pkg/logging"
)

type RentRequest struct {
	Email   string
	OfferID string
	Hours   int
	UserID  int
}

type Orders struct {
	transactionManager TransactionManager
	orderRepository    OrderRepository
	catalog            *Catalog
	wallet             *Wallet
	fulfillment        *Fulfillment
	logger             *logging.ZapLogger
}

func NewOrders(
	transactionManager TransactionManager,
	orderRepository OrderRepository,
	catalog *Catalog,
	wallet *Wallet,
	fulfillment *Fulfillment,
	logger *logging.ZapLogger,
) *Orders {
	return &Orders{
		transactionManager: transactionManager,
		orderRepository:    orderRepository,
		catalog:            catalog,
		wallet:             wallet,
		fulfillment:        fulfillment,
		logger:             logger,
	}
}

func (o *Orders) GetOrders(ctx context.Context, userID int, limit int) ([]data.Order, error) {
	orders, err := o.orderRepository.GetUserOrders(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error getting orders: %w", err)
	}
	return orders, nil
}

// RentWithBalance pays for an offer from the user balance. The charge is
// refunded when the partner rejects the order.
func (o *Orders) RentWithBalance(ctx context.Context, req RentRequest) (data.Order, error) {
	if req.OfferID == "" {
		return data.Order{}, newValidationError("offerId is required")
	}
	hours := hoursOrDefault(req.Hours)
	offer, err := o.catalog.FindOffer(ctx, req.OfferID)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return data.Order{}, err
		}
		return data.Order{}, fmt.Errorf("looking up offer failed: %w", err)
	}
	price := offerPrice(offer.Price, hours)
	reference := uuid.NewString()

	err = o.transactionManager.DoWithTransaction(ctx, func(ctx context.Context) error {
		return o.wallet.Debit(ctx, req.UserID, price, reference)
	})
	if err != nil {
		if errors.Is(err, ErrNotEnoughBalance) {
			return data.Order{}, ErrNotEnoughBalance
		}
		return data.Order{}, fmt.Errorf("charging balance failed: %w", err)
	}

	order, err := o.fulfillment.Fulfill(ctx, FulfillmentRequest{
		UserID:      req.UserID,
		Email:       req.Email,
		OfferID:     req.OfferID,
		Hours:       hours,
		PriceClient: price,
		Provider:    data.BalanceProvider,
	})
	if err != nil {
		if refundErr := o.wallet.Refund(ctx, req.UserID, price, reference); refundErr != nil {
			o.logger.ErrorCtx(
				ctx,
				"failed to refund balance charge",
				zap.Int("userID", req.UserID),
				zap.String("reference", reference),
				zap.Error(refundErr),
			)
		}
		return data.Order{}, err
	}
	return order, nil
}

func offerPrice(hourly float64, hours int) decimal.Decimal {
	return decimal.NewFromFloat(hourly).Mul(decimal.NewFromInt(int64(hours))).Round(2)
}
