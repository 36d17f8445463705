package service

import (
	"context"

	"github.com/shopspring/decimal"

	"gpu-market/internal/common/clientprotocol"
	"gpu-market/internal/common/partnerprotocol"
	"gpu-market/internal/gpumarket/data"
	"gpu-market/internal/gpumarket/payments"
)

type TransactionManager interface {
	DoWithTransaction(ctx context.Context, f func(ctx context.Context) error) error
}

type TokenFactory interface {
	Generate(extraClaims map[string]string) (string, error)
}

type UserRepository interface {
	InsertUser(ctx context.Context, user *data.User) error
	GetUserByUsername(ctx context.Context, username string) (data.User, error)
	GetUser(ctx context.Context, userID int) (data.User, error)
}

type BalanceRepository interface {
	GetUserBalance(ctx context.Context, userID int) (decimal.Decimal, error)
	LockUserBalance(ctx context.Context, userID int) (decimal.Decimal, error)
	SetUserBalance(ctx context.Context, userID int, value decimal.Decimal) error
	InsertTransaction(ctx context.Context, transaction data.Transaction) error
	GetUserTransactions(ctx context.Context, userID int) ([]data.Transaction, error)
}

type OrderRepository interface {
	InsertOrder(ctx context.Context, order *data.Order) error
	GetUserOrders(ctx context.Context, userID int, limit int) ([]data.Order, error)
}

type WebhookEventRepository interface {
	InsertWebhookEvent(ctx context.Context, provider data.PaymentProvider, eventID string) error
	DeleteWebhookEvent(ctx context.Context, provider data.PaymentProvider, eventID string) error
}

type Partner interface {
	ListExecutors(ctx context.Context) ([]partnerprotocol.Executor, error)
	CreateOrder(ctx context.Context, offerID string, hours int) (partnerprotocol.Order, error)
}

type OfferCache interface {
	GetOffers(ctx context.Context) ([]clientprotocol.Offer, bool, error)
	SetOffers(ctx context.Context, offers []clientprotocol.Offer) error
}

type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error)
}

type ChargeGateway interface {
	CreateCharge(ctx context.Context, req payments.ChargeRequest) (payments.Charge, error)
}

type Notifier interface {
	OrderConfirmed(ctx context.Context, email string, order data.Order) error
}
