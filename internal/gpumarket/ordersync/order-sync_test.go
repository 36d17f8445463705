package ordersync

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu-market/internal/common/partnerprotocol"
	"gpu-market/internal/gpumarket/data"
	"gpu-market/internal/gpumarket/partner"
	"gpu-market/pkg/logging"
)

type memoryOrders struct {
	mu       sync.Mutex
	orders   map[string]data.Order
	syncedAt map[string]int
	settled  []string
	updates  int
	clock    int
}

// GetUnsettledOrders mimics the SQL ordering: never synced first, then the
// least recently synced.
func (m *memoryOrders) GetUnsettledOrders(_ context.Context, limit int, settled []string) ([]data.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settled = settled
	candidates := make([]data.Order, 0)
	for _, o := range m.orders {
		if !slices.Contains(settled, o.Status) {
			candidates = append(candidates, o)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := m.syncedAt[candidates[i].ID], m.syncedAt[candidates[j].ID]
		if si != sj {
			return si < sj
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (m *memoryOrders) SetOrderStatus(_ context.Context, orderID string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	o.Status = status
	m.orders[orderID] = o
	m.updates++
	m.touch(orderID)
	return nil
}

func (m *memoryOrders) MarkOrderSynced(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch(orderID)
	return nil
}

func (m *memoryOrders) touch(orderID string) {
	if m.syncedAt == nil {
		m.syncedAt = make(map[string]int)
	}
	m.clock++
	m.syncedAt[orderID] = m.clock
}

func (m *memoryOrders) status(orderID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID].Status
}

type staticPartner struct {
	statuses map[string]string
}

func (p staticPartner) GetOrder(_ context.Context, partnerOrderID string) (partnerprotocol.Order, error) {
	status, ok := p.statuses[partnerOrderID]
	if !ok {
		return partnerprotocol.Order{}, &partner.UpstreamError{StatusCode: 404, Body: "not found"}
	}
	return partnerprotocol.Order{ID: partnerOrderID, Status: status}, nil
}

func TestOrderSync_Run(t *testing.T) {
	repo := &memoryOrders{orders: map[string]data.Order{
		"o1": {ID: "o1", PartnerOrderID: "p1", Status: "running"},
		"o2": {ID: "o2", PartnerOrderID: "p2", Status: "completed"},
		"o3": {ID: "o3", PartnerOrderID: "p3", Status: "pending"},
	}}
	p := staticPartner{statuses: map[string]string{"p1": "completed", "p2": "running"}}

	s := New(Config{TickPeriod: 10 * time.Millisecond, WorkersCount: 2, TasksBufferLength: 4}, repo, p, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return repo.status("o1") == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("order sync did not stop")
	}

	assert.Equal(t, "completed", repo.status("o2"))
	assert.Equal(t, "pending", repo.status("o3"))
	assert.Equal(t, SettledStatuses, repo.settled)
	assert.Equal(t, 0, s.processingOrders.Len())
}

func TestOrderSync_HandleOrderUnchanged(t *testing.T) {
	repo := &memoryOrders{orders: map[string]data.Order{"o1": {ID: "o1", PartnerOrderID: "p1", Status: "Running"}}}
	s := New(Config{}, repo, staticPartner{statuses: map[string]string{"p1": "running"}}, logging.NewNop())

	require.NoError(t, s.handleOrder(context.Background(), repo.orders["o1"]))
	assert.Zero(t, repo.updates)
}

type recordingPartner struct {
	mu     sync.Mutex
	polled map[string]int
}

func (p *recordingPartner) GetOrder(_ context.Context, partnerOrderID string) (partnerprotocol.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polled[partnerOrderID]++
	return partnerprotocol.Order{ID: partnerOrderID, Status: "running"}, nil
}

func (p *recordingPartner) distinctPolled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.polled)
}

func TestOrderSync_RotatesUnchangedOrders(t *testing.T) {
	orders := make(map[string]data.Order, 40)
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("o%02d", i)
		orders[id] = data.Order{ID: id, PartnerOrderID: "p-" + id, Status: "running"}
	}
	repo := &memoryOrders{orders: orders}
	p := &recordingPartner{polled: make(map[string]int)}

	s := New(Config{TickPeriod: 5 * time.Millisecond, WorkersCount: 2, TasksBufferLength: 4}, repo, p, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return p.distinctPolled() == 40
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Zero(t, repo.updates)
}

func TestOrderSync_HandleOrderMarksSynced(t *testing.T) {
	repo := &memoryOrders{orders: map[string]data.Order{
		"o1": {ID: "o1", PartnerOrderID: "p1", Status: "running"},
		"o2": {ID: "o2", PartnerOrderID: "gone", Status: "running"},
	}}
	s := New(Config{}, repo, staticPartner{statuses: map[string]string{"p1": "running"}}, logging.NewNop())

	require.NoError(t, s.handleOrder(context.Background(), repo.orders["o1"]))
	require.NoError(t, s.handleOrder(context.Background(), repo.orders["o2"]))

	assert.Contains(t, repo.syncedAt, "o1")
	assert.Contains(t, repo.syncedAt, "o2")
	assert.Zero(t, repo.updates)
}
