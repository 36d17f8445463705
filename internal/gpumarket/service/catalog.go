package service

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gpu-market/internal/common/clientprotocol"
	"gpu-market/internal/common/partnerprotocol"
	"gpu-market/pkg/logging"
)

const (
	unknownGPU    = "Unknown GPU"
	unknownCPU    = "Unknown CPU"
	unknownUptime = "Unknown"

	bytesInGiB = 1024 * 1024 * 1024
)

var priceMarkup = decimal.RequireFromString("1.25")

type Catalog struct {
	partner Partner
	cache   OfferCache
	logger  *logging.ZapLogger
}

// NewCatalog builds the offer catalog. cache may be nil.
func NewCatalog(partner Partner, cache OfferCache, logger *logging.ZapLogger) *Catalog {
	return &Catalog{
		partner: partner,
		cache:   cache,
		logger:  logger,
	}
}

func (c *Catalog) ListOffers(ctx context.Context) ([]clientprotocol.Offer, error) {
	if c.cache != nil {
		offers, ok, err := c.cache.GetOffers(ctx)
		if err != nil {
			c.logger.WarnCtx(ctx, "offer cache read failed", zap.Error(err))
		}
		if ok {
			return offers, nil
		}
	}

	executors, err := c.partner.ListExecutors(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing partner executors failed: %w", err)
	}
	offers := make([]clientprotocol.Offer, len(executors))
	for i, executor := range executors {
		offers[i] = MapOffer(executor)
	}

	if c.cache != nil {
		if err := c.cache.SetOffers(ctx, offers); err != nil {
			c.logger.WarnCtx(ctx, "offer cache write failed", zap.Error(err))
		}
	}
	return offers, nil
}

func (c *Catalog) FindOffer(ctx context.Context, offerID string) (clientprotocol.Offer, error) {
	offers, err := c.ListOffers(ctx)
	if err != nil {
		return clientprotocol.Offer{}, err
	}
	for _, offer := range offers {
		if offer.ID == offerID {
			return offer, nil
		}
	}
	return clientprotocol.Offer{}, fmt.Errorf("%w: %s", ErrOfferNotFound, offerID)
}

// MapOffer converts a partner executor to the client offer schema.
func MapOffer(e partnerprotocol.Executor) clientprotocol.Offer {
	specs := e.Specs
	if specs == nil {
		specs = &partnerprotocol.Specs{}
	}

	machineName := e.MachineName
	if machineName == "" {
		machineName = unknownGPU
	}
	gpuCount := 0
	var gpuDetails []partnerprotocol.GPUDetail
	if specs.GPU != nil {
		if specs.GPU.Count != nil {
			gpuCount = *specs.GPU.Count
		}
		gpuDetails = specs.GPU.Details
	}

	offer := clientprotocol.Offer{
		ID:               e.ID,
		Price:            markupPrice(e),
		GPUDisplay:       fmt.Sprintf("%dx %s", gpuCount, machineName),
		GPUTypes:         gpuTypes(machineName, gpuDetails),
		CPUDisplay:       cpuDisplay(specs.CPU),
		Memory:           gibibytes(specs.RAM),
		Disk:             gibibytes(specs.HardDisk),
		UptimeDisplay:    uptimeDisplay(e.UptimeInMinutes),
		IsDockerInDocker: specs.Docker != nil && len(specs.Docker.Containers) > 0,
	}
	if specs.Network != nil {
		offer.NetworkUp = roundCents(specs.Network.UploadSpeed)
		offer.NetworkDown = roundCents(specs.Network.DownloadSpeed)
	}
	if e.Location != nil {
		offer.Location = clientprotocol.Location{
			City:    e.Location.City,
			Country: e.Location.Country,
		}
	}
	if specs.AvailablePortMaps != nil {
		ports := len(specs.AvailablePortMaps)
		offer.Ports = &ports
	}
	return offer
}

func markupPrice(e partnerprotocol.Executor) float64 {
	raw := decimal.Zero
	switch {
	case e.PricePerHour != nil:
		raw = *e.PricePerHour
	case e.Price != nil:
		raw = *e.Price
	}
	return toFloat(raw.Mul(priceMarkup).Round(2))
}

func gpuTypes(machineName string, details []partnerprotocol.GPUDetail) []string {
	res := []string{machineName}
	seen := map[string]struct{}{machineName: {}}
	for _, d := range details {
		if d.Model == "" {
			continue
		}
		if _, ok := seen[d.Model]; ok {
			continue
		}
		seen[d.Model] = struct{}{}
		res = append(res, d.Model)
	}
	return res
}

func cpuDisplay(cpu *partnerprotocol.CPU) string {
	if cpu == nil {
		return unknownCPU
	}
	count := "?"
	if cpu.Count != nil {
		count = fmt.Sprint(*cpu.Count)
	}
	model := unknownCPU
	if cpu.Model != nil {
		model = *cpu.Model
	}
	return fmt.Sprintf("%sx %s", count, model)
}

func gibibytes(c *partnerprotocol.Capacity) *int64 {
	if c == nil || c.Total == nil || *c.Total == 0 {
		return nil
	}
	v := int64(math.Floor(*c.Total / bytesInGiB))
	return &v
}

func roundCents(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := toFloat(decimal.NewFromFloat(*v).Round(2))
	return &r
}

func uptimeDisplay(minutes *float64) string {
	if minutes == nil || *minutes == 0 {
		return unknownUptime
	}
	m := int64(math.Floor(*minutes))
	return fmt.Sprintf("%d days %d hrs %d mins", m/1440, (m%1440)/60, m%60)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
