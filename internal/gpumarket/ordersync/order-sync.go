package ordersync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"gpu-market/internal/common/partnerprotocol"
	"gpu-market/internal/gpumarket/data"
	"gpu-market/internal/gpumarket/partner"
	"gpu-market/pkg/logging"
	"gpu-market/pkg/metrics"
	"gpu-market/pkg/threadsafe"
)

// SettledStatuses are partner statuses after which an order never changes.
var SettledStatuses = []string{"completed", "cancelled", "failed", "terminated", "expired"}

type OrdersRepository interface {
	GetUnsettledOrders(ctx context.Context, limit int, settledStatuses []string) ([]data.Order, error)
	SetOrderStatus(ctx context.Context, orderID string, status string) error
	MarkOrderSynced(ctx context.Context, orderID string) error
}

type Partner interface {
	GetOrder(ctx context.Context, partnerOrderID string) (partnerprotocol.Order, error)
}

type Config struct {
	TickPeriod        time.Duration
	RequestTimeout    time.Duration
	WorkersCount      int
	TasksBufferLength int
}

type OrderSync struct {
	repository       OrdersRepository
	partner          Partner
	processingOrders *threadsafe.HashSet[string]
	logger           *logging.ZapLogger
	config           Config
}

func New(
	config Config,
	repository OrdersRepository,
	partner Partner,
	logger *logging.ZapLogger,
) *OrderSync {
	return &OrderSync{
		repository:       repository,
		partner:          partner,
		config:           config,
		processingOrders: threadsafe.NewHashSet[string](),
		logger:           logger,
	}
}

// Run polls unsettled orders until ctx is done, then waits for the workers.
func (s *OrderSync) Run(ctx context.Context) {
	ordersChan := make(chan data.Order, s.config.TasksBufferLength)

	wg := &sync.WaitGroup{}

	for i := 0; i < s.config.WorkersCount; i++ {
		wg.Add(1)
		go func(ordersChan <-chan data.Order) {
			defer wg.Done()
			s.worker(ctx, ordersChan)
		}(ordersChan)
	}

	wg.Add(1)
	go func(ordersChan chan<- data.Order) {
		defer wg.Done()
		s.scheduler(ctx, ordersChan)
	}(ordersChan)

	wg.Wait()
}

func (s *OrderSync) scheduler(ctx context.Context, ordersChan chan<- data.Order) {
	defer close(ordersChan)

	ticker := time.NewTicker(s.config.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.tick(ctx, ordersChan); err != nil && ctx.Err() == nil {
				s.logger.ErrorCtx(ctx, "error while scheduling orders", zap.Error(err))
			}
		}
	}
}

func (s *OrderSync) tick(ctx context.Context, ordersChan chan<- data.Order) error {
	maxTasksToSchedule := s.config.TasksBufferLength - len(ordersChan)
	if maxTasksToSchedule <= 0 {
		return nil
	}
	orders, err := s.repository.GetUnsettledOrders(ctx, maxTasksToSchedule, SettledStatuses)
	if err != nil {
		return fmt.Errorf("getting unsettled orders failed: %w", err)
	}
	for _, order := range orders {
		if !s.processingOrders.Add(order.ID) {
			continue
		}
		s.logger.DebugCtx(ctx, "scheduling order", zap.String("orderID", order.ID))
		select {
		case ordersChan <- order:
		case <-ctx.Done():
			s.processingOrders.Remove(order.ID)
			return nil
		}
	}
	return nil
}

func (s *OrderSync) worker(ctx context.Context, ordersChan <-chan data.Order) {
	for order := range ordersChan {
		err := s.handleOrder(ctx, order)
		s.processingOrders.Remove(order.ID)
		if err != nil {
			metrics.OrderStatusSyncTotal.WithLabelValues("error").Inc()
			s.logger.ErrorCtx(ctx, "failed to sync order", zap.String("orderID", order.ID), zap.Error(err))
		}
	}
}

func (s *OrderSync) handleOrder(ctx context.Context, order data.Order) error {
	if ctx.Err() != nil {
		return nil
	}
	pollCtx := ctx
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	remoteOrder, err := s.partner.GetOrder(pollCtx, order.PartnerOrderID)
	if err != nil {
		s.markSynced(ctx, order.ID)
		var upstreamErr *partner.UpstreamError
		if errors.As(err, &upstreamErr) && upstreamErr.StatusCode == http.StatusNotFound {
			metrics.OrderStatusSyncTotal.WithLabelValues("missing").Inc()
			s.logger.WarnCtx(ctx, "partner does not know order", zap.String("partnerOrderID", order.PartnerOrderID))
			return nil
		}
		return fmt.Errorf("failed to get remote order status: %w", err)
	}
	if remoteOrder.Status == "" || strings.EqualFold(remoteOrder.Status, order.Status) {
		metrics.OrderStatusSyncTotal.WithLabelValues("unchanged").Inc()
		s.markSynced(ctx, order.ID)
		return nil
	}
	if err := s.repository.SetOrderStatus(ctx, order.ID, remoteOrder.Status); err != nil {
		return fmt.Errorf("failed to store order status: %w", err)
	}
	metrics.OrderStatusSyncTotal.WithLabelValues("updated").Inc()
	s.logger.InfoCtx(
		ctx,
		"order status changed",
		zap.String("orderID", order.ID),
		zap.String("from", order.Status),
		zap.String("to", remoteOrder.Status),
	)
	return nil
}

// markSynced moves the order to the back of the polling queue so orders past
// the buffer length get their turn.
func (s *OrderSync) markSynced(ctx context.Context, orderID string) {
	if err := s.repository.MarkOrderSynced(ctx, orderID); err != nil {
		s.logger.WarnCtx(ctx, "failed to mark order synced", zap.String("orderID", orderID), zap.Error(err))
	}
}
