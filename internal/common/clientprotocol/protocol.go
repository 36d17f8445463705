package clientprotocol

import "time"

type Offer struct {
	ID               string   `json:"id"`
	Price            float64  `json:"price"`
	GPUDisplay       string   `json:"gpu_display"`
	CPUDisplay       string   `json:"cpu_display"`
	Memory           *int64   `json:"memory"`
	Disk             *int64   `json:"disk"`
	NetworkUp        *float64 `json:"network_up"`
	NetworkDown      *float64 `json:"network_down"`
	Location         Location `json:"location"`
	Ports            *int     `json:"ports"`
	UptimeDisplay    string   `json:"uptime_display"`
	GPUTypes         []string `json:"gpu_types"`
	IsDockerInDocker bool     `json:"isDockerInDocker"`
}

type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

type Order struct {
	ID              string    `json:"id"`
	PartnerOrderID  string    `json:"partnerOrderId"`
	OfferID         string    `json:"offerId"`
	Status          string    `json:"status"`
	PriceClient     float64   `json:"priceClient"`
	PriceProvider   float64   `json:"priceProvider"`
	Hours           int       `json:"hours"`
	PaymentProvider string    `json:"paymentProvider"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Transaction struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type AccountUser struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type CurrentUser struct {
	ID       int     `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
	Balance  float64 `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
