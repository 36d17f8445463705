package payments

import (
	"errors"
	"strconv"

	"github.com/shopspring/decimal"

	"gpu-market/internal/gpumarket/data"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedEvent   = errors.New("malformed event")
)

// Metadata keys attached to hosted sessions and charges.
const (
	MetaType           = "type"
	MetaUserID         = "userId"
	MetaUserEmail      = "userEmail"
	MetaAmount         = "amount"
	MetaPartnerOfferID = "partnerOfferId"
	MetaPodID          = "podId"
	MetaHours          = "hours"

	MetaTypeTopUp = "topup"
	MetaTypeOrder = "order"
)

// Event is a verified payment notification reduced to what fulfillment needs.
type Event struct {
	Metadata      map[string]string
	Provider      data.PaymentProvider
	ID            string
	Type          string
	Reference     string
	CustomerEmail string
	Amount        decimal.Decimal
	// Completed is set for the single event type per provider that confirms payment.
	Completed bool
}

func (e Event) IsTopUp() bool {
	return e.Metadata[MetaType] == MetaTypeTopUp
}

// OfferID resolves the partner offer of an order payment.
func (e Event) OfferID() string {
	if id := e.Metadata[MetaPartnerOfferID]; id != "" {
		return id
	}
	return e.Metadata[MetaPodID]
}

// Hours defaults to 1 when absent or not a positive number.
func (e Event) Hours() int {
	h, err := strconv.Atoi(e.Metadata[MetaHours])
	if err != nil || h <= 0 {
		return 1
	}
	return h
}

func (e Event) UserID() (int, bool) {
	id, err := strconv.Atoi(e.Metadata[MetaUserID])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (e Event) Email() string {
	if email := e.Metadata[MetaUserEmail]; email != "" {
		return email
	}
	return e.CustomerEmail
}
