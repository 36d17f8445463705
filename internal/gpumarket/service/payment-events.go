package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/internal/gpumarket/data"
	"gpu-market/internal/gpumarket/payments"
	"gpu-market/pkg/logging"
)

type EventOutcome string

const (
	OutcomeIgnored   = EventOutcome("ignored")
	OutcomeDuplicate = EventOutcome("duplicate")
	OutcomeToppedUp  = EventOutcome("topped_up")
	OutcomeFulfilled = EventOutcome("fulfilled")
)

// PaymentEvents applies verified payment events at most once per event id.
type PaymentEvents struct {
	transactionManager TransactionManager
	events             WebhookEventRepository
	wallet             *Wallet
	fulfillment        *Fulfillment
	logger             *logging.ZapLogger
}

func NewPaymentEvents(
	transactionManager TransactionManager,
	events WebhookEventRepository,
	wallet *Wallet,
	fulfillment *Fulfillment,
	logger *logging.ZapLogger,
) *PaymentEvents {
	return &PaymentEvents{
		transactionManager: transactionManager,
		events:             events,
		wallet:             wallet,
		fulfillment:        fulfillment,
		logger:             logger,
	}
}

func (p *PaymentEvents) Handle(ctx context.Context, event payments.Event) (EventOutcome, error) {
	ctx = logging.WithContextFields(
		ctx,
		zap.String("provider", string(event.Provider)),
		zap.String("eventID", event.ID),
	)
	if !event.Completed {
		p.logger.DebugCtx(ctx, "payment event ignored", zap.String("type", event.Type))
		return OutcomeIgnored, nil
	}
	userID, ok := event.UserID()
	if !ok {
		p.logger.WarnCtx(ctx, "payment event without user id", zap.Any("metadata", event.Metadata))
		return OutcomeIgnored, nil
	}

	if event.IsTopUp() {
		return p.topUp(ctx, event, userID)
	}
	return p.order(ctx, event, userID)
}

func (p *PaymentEvents) topUp(ctx context.Context, event payments.Event, userID int) (EventOutcome, error) {
	amount := event.Amount
	if !amount.IsPositive() {
		if cents, err := decimal.NewFromString(event.Metadata[payments.MetaAmount]); err == nil {
			amount = cents.Shift(-2)
		}
	}
	if !amount.IsPositive() {
		p.logger.WarnCtx(ctx, "top-up event without amount")
		return OutcomeIgnored, nil
	}

	err := p.transactionManager.DoWithTransaction(ctx, func(ctx context.Context) error {
		if err := p.claim(ctx, event); err != nil {
			return err
		}
		return p.wallet.Credit(ctx, userID, amount, data.TopUpTransaction, event.Reference)
	})
	switch {
	case errors.Is(err, ErrDuplicateEvent):
		p.logger.InfoCtx(ctx, "duplicate top-up event")
		return OutcomeDuplicate, nil
	case err != nil:
		return "", fmt.Errorf("crediting top-up failed: %w", err)
	}
	p.logger.InfoCtx(ctx, "balance topped up", zap.Int("userID", userID), zap.String("amount", amount.String()))
	return OutcomeToppedUp, nil
}

func (p *PaymentEvents) order(ctx context.Context, event payments.Event, userID int) (EventOutcome, error) {
	offerID := event.OfferID()
	if offerID == "" {
		p.logger.WarnCtx(ctx, "order event without offer id", zap.Any("metadata", event.Metadata))
		return OutcomeIgnored, nil
	}

	if err := p.claim(ctx, event); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			p.logger.InfoCtx(ctx, "duplicate order event")
			return OutcomeDuplicate, nil
		}
		return "", err
	}

	_, err := p.fulfillment.Fulfill(ctx, FulfillmentRequest{
		UserID:      userID,
		Email:       event.Email(),
		OfferID:     offerID,
		Hours:       event.Hours(),
		PriceClient: event.Amount,
		Provider:    event.Provider,
	})
	if err != nil {
		// Nothing was provisioned, so a redelivery may try again.
		if releaseErr := p.events.DeleteWebhookEvent(ctx, event.Provider, event.ID); releaseErr != nil {
			p.logger.ErrorCtx(ctx, "failed to release payment event", zap.Error(releaseErr))
		}
		return "", fmt.Errorf("fulfilling order failed: %w", err)
	}
	return OutcomeFulfilled, nil
}

func (p *PaymentEvents) claim(ctx context.Context, event payments.Event) error {
	err := p.events.InsertWebhookEvent(ctx, event.Provider, event.ID)
	switch {
	case errors.Is(err, data.ErrUniqueConstraintViolation):
		return ErrDuplicateEvent
	case err != nil:
		return fmt.Errorf("claiming payment event failed: %w", err)
	}
	return nil
}
