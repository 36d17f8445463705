package data

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TopUpTransaction  = TransactionType("topup")
	ChargeTransaction = TransactionType("charge")
	RefundTransaction = TransactionType("refund")
)

type PaymentProvider string

const (
	StripeProvider   = PaymentProvider("stripe")
	CoinbaseProvider = PaymentProvider("coinbase")
	BalanceProvider  = PaymentProvider("balance")
)

type User struct {
	CreatedAt    time.Time
	Username     string
	Email        *string
	PasswordHash string
	Balance      decimal.Decimal
	ID           int
}

type Order struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ID              string
	PartnerOrderID  string
	OfferID         string
	Status          string
	PaymentProvider PaymentProvider
	PriceClient     decimal.Decimal
	PriceProvider   decimal.Decimal
	UserID          int
	Hours           int
}

type Transaction struct {
	CreatedAt time.Time
	ID        string
	Type      TransactionType
	Reference string
	Amount    decimal.Decimal
	UserID    int
}
