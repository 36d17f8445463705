package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gpu-market/internal/common/clientprotocol"
	"gpu-market/internal/common/partnerprotocol"
	"gpu-market/internal/gpumarket/data"
	"gpu-market/internal/gpumarket/payments"
)

type eventKey struct {
	provider data.PaymentProvider
	id       string
}

// memoryStore implements every repository interface of the package.
type memoryStore struct {
	mu           sync.Mutex
	users        map[int]data.User
	orders       []data.Order
	transactions []data.Transaction
	events       map[eventKey]struct{}
	nextUserID   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:      map[int]data.User{},
		events:     map[eventKey]struct{}{},
		nextUserID: 1,
	}
}

type memorySnapshot struct {
	users        map[int]data.User
	orders       []data.Order
	transactions []data.Transaction
	events       map[eventKey]struct{}
}

func (s *memoryStore) snapshot() memorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memorySnapshot{
		users:        make(map[int]data.User, len(s.users)),
		orders:       append([]data.Order{}, s.orders...),
		transactions: append([]data.Transaction{}, s.transactions...),
		events:       make(map[eventKey]struct{}, len(s.events)),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k := range s.events {
		snap.events[k] = struct{}{}
	}
	return snap
}

func (s *memoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.orders = snap.orders
	s.transactions = snap.transactions
	s.events = snap.events
}

// DoWithTransaction rolls the store back when f fails.
func (s *memoryStore) DoWithTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	snap := s.snapshot()
	if err := f(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memoryStore) addUser(username string, balance string) data.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := data.User{
		ID:        s.nextUserID,
		Username:  username,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now(),
	}
	s.nextUserID++
	s.users[u.ID] = u
	return u
}

func (s *memoryStore) InsertUser(_ context.Context, user *data.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return &data.UniqueViolationError{Constraint: data.UsersUsernameConstraint}
		}
		if u.Email != nil && user.Email != nil && *u.Email == *user.Email {
			return &data.UniqueViolationError{Constraint: data.UsersEmailConstraint}
		}
	}
	user.ID = s.nextUserID
	user.CreatedAt = time.Now()
	user.Balance = decimal.Zero
	s.nextUserID++
	s.users[user.ID] = *user
	return nil
}

func (s *memoryStore) GetUserByUsername(_ context.Context, username string) (data.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return data.User{}, data.ErrNotFound
}

func (s *memoryStore) GetUser(_ context.Context, userID int) (data.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return data.User{}, data.ErrNotFound
	}
	return u, nil
}

func (s *memoryStore) GetUserBalance(ctx context.Context, userID int) (decimal.Decimal, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return u.Balance, nil
}

func (s *memoryStore) LockUserBalance(ctx context.Context, userID int) (decimal.Decimal, error) {
	return s.GetUserBalance(ctx, userID)
}

func (s *memoryStore) SetUserBalance(_ context.Context, userID int, value decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return data.ErrNotFound
	}
	u.Balance = value
	s.users[userID] = u
	return nil
}

func (s *memoryStore) InsertTransaction(_ context.Context, transaction data.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, transaction)
	return nil
}

func (s *memoryStore) GetUserTransactions(_ context.Context, userID int) ([]data.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]data.Transaction, 0)
	for _, t := range s.transactions {
		if t.UserID == userID {
			res = append(res, t)
		}
	}
	return res, nil
}

func (s *memoryStore) InsertOrder(_ context.Context, order *data.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PartnerOrderID == order.PartnerOrderID {
			return data.ErrUniqueConstraintViolation
		}
	}
	s.orders = append(s.orders, *order)
	return nil
}

func (s *memoryStore) GetUserOrders(_ context.Context, userID int, limit int) ([]data.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]data.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			res = append(res, o)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *memoryStore) InsertWebhookEvent(_ context.Context, provider data.PaymentProvider, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKey{provider, eventID}
	if _, ok := s.events[key]; ok {
		return data.ErrUniqueConstraintViolation
	}
	s.events[key] = struct{}{}
	return nil
}

func (s *memoryStore) DeleteWebhookEvent(_ context.Context, provider data.PaymentProvider, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, eventKey{provider, eventID})
	return nil
}

func (s *memoryStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memoryStore) balance(userID int) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].Balance
}

type fakePartner struct {
	mu          sync.Mutex
	executors   []partnerprotocol.Executor
	listErr     error
	createErr   error
	createCalls int
	listCalls   int
}

func (p *fakePartner) ListExecutors(context.Context) ([]partnerprotocol.Executor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	return p.executors, p.listErr
}

func (p *fakePartner) CreateOrder(_ context.Context, offerID string, _ int) (partnerprotocol.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++
	if p.createErr != nil {
		return partnerprotocol.Order{}, p.createErr
	}
	return partnerprotocol.Order{
		ID:     fmt.Sprintf("%s-order-%d", offerID, p.createCalls),
		Status: "running",
		Price:  decimal.RequireFromString("1.00"),
	}, nil
}

func (p *fakePartner) creates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls
}

type fakeCache struct {
	offers []clientprotocol.Offer
	ok     bool
	sets   int
}

func (c *fakeCache) GetOffers(context.Context) ([]clientprotocol.Offer, bool, error) {
	return c.offers, c.ok, nil
}

func (c *fakeCache) SetOffers(_ context.Context, offers []clientprotocol.Offer) error {
	c.sets++
	c.offers = offers
	return nil
}

type fakeCards struct {
	last payments.CheckoutRequest
	err  error
}

func (g *fakeCards) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	g.last = req
	if g.err != nil {
		return payments.CheckoutSession{}, g.err
	}
	return payments.CheckoutSession{ID: "cs_test", URL: "https://checkout/cs_test"}, nil
}

type fakeCrypto struct {
	last  payments.ChargeRequest
	calls int
}

func (g *fakeCrypto) CreateCharge(_ context.Context, req payments.ChargeRequest) (payments.Charge, error) {
	g.last = req
	g.calls++
	return payments.Charge{ID: "charge-1", HostedURL: "https://commerce/charge-1"}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *fakeNotifier) OrderConfirmed(_ context.Context, email string, _ data.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email)
	return n.err
}

type fakeTokenFactory struct {
	err error
}

func (f fakeTokenFactory) Generate(extraClaims map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + extraClaims[UserIDClaimName], nil
}

var errPartnerDown = errors.New("partner down")

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func floatPtr(f float64) *float64 {
	return &f
}
func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
