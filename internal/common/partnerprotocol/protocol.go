package partnerprotocol

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Executor is a rentable machine as listed by GET /api/executors. Every
// nested field is optional on the partner side.
type Executor struct {
	ID              string           `json:"id"`
	MachineName     string           `json:"machine_name"`
	PricePerHour    *decimal.Decimal `json:"price_per_hour"`
	Price           *decimal.Decimal `json:"price"`
	UptimeInMinutes *float64         `json:"uptime_in_minutes"`
	Specs           *Specs           `json:"specs"`
	Location        *Location        `json:"location"`
}

type Specs struct {
	GPU               *GPU              `json:"gpu"`
	CPU               *CPU              `json:"cpu"`
	RAM               *Capacity         `json:"ram"`
	HardDisk          *Capacity         `json:"hard_disk"`
	Network           *Network          `json:"network"`
	AvailablePortMaps []json.RawMessage `json:"available_port_maps"`
	Docker            *Docker           `json:"docker"`
}

type GPU struct {
	Count   *int        `json:"count"`
	Details []GPUDetail `json:"details"`
}

type GPUDetail struct {
	Model string `json:"model"`
}

type CPU struct {
	Count *int    `json:"count"`
	Model *string `json:"model"`
}

// Capacity totals are in bytes.
type Capacity struct {
	Total *float64 `json:"total"`
}

type Network struct {
	UploadSpeed   *float64 `json:"upload_speed"`
	DownloadSpeed *float64 `json:"download_speed"`
}

type Docker struct {
	Containers []json.RawMessage `json:"containers"`
}

type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

type CreateOrderRequest struct {
	OfferID string `json:"offerId"`
	Hours   int    `json:"hours"`
}

type Order struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Price  decimal.Decimal `json:"price"`
}
