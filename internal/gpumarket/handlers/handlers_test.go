package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu-market/internal/gpumarket/data"
	"gpu-market/internal/gpumarket/payments"
	"gpu-market/internal/gpumarket/service"
	"gpu-market/pkg/jwtfactory"
	"gpu-market/pkg/logging"
)

var testCookie = SessionCookie{TTL: 7 * 24 * time.Hour}

type memoryUsers struct {
	mu    sync.Mutex
	users []data.User
}

func (m *memoryUsers) InsertUser(_ context.Context, user *data.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return &data.UniqueViolationError{Constraint: data.UsersUsernameConstraint}
		}
		if u.Email != nil && user.Email != nil && *u.Email == *user.Email {
			return &data.UniqueViolationError{Constraint: data.UsersEmailConstraint}
		}
	}
	user.ID = len(m.users) + 1
	user.CreatedAt = time.Now()
	m.users = append(m.users, *user)
	return nil
}

func (m *memoryUsers) GetUserByUsername(_ context.Context, username string) (data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return data.User{}, data.ErrNotFound
}

func (m *memoryUsers) GetUser(_ context.Context, userID int) (data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return data.User{}, data.ErrNotFound
}

func newTestTokenAuth() *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte("test-secret"), nil)
}

func newAuthorizationService(users *memoryUsers) *service.Authorization {
	return service.NewAuthorization(users, jwtfactory.New(newTestTokenAuth(), time.Hour))
}

func withUser(t *testing.T, r *http.Request, userID string) *http.Request {
	t.Helper()
	token, _, err := newTestTokenAuth().Encode(map[string]any{service.UserIDClaimName: userID})
	require.NoError(t, err)
	return r.WithContext(jwtauth.NewContext(r.Context(), token, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestRegisterHandler(t *testing.T) {
	t.Run("short username", func(t *testing.T) {
		users := &memoryUsers{}
		h := NewRegisterHandler(newAuthorizationService(users), testCookie, logging.NewNop())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"username":"ab","password":"secret1"}`))
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username must be at least 3 characters long", decodeError(t, rec))
		assert.Empty(t, rec.Result().Cookies())
		assert.Empty(t, users.users)
	})

	t.Run("created with cookie", func(t *testing.T) {
		users := &memoryUsers{}
		h := NewRegisterHandler(newAuthorizationService(users), testCookie, logging.NewNop())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"username":"alice","password":"secret1"}`))
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, SessionCookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
		assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookies[0].MaxAge)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "alice", body["username"])
		assert.NotContains(t, body, "passwordHash")

		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"username":"alice","password":"secret2"}`))
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Username already exists", decodeError(t, rec))
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("taken email", func(t *testing.T) {
		users := &memoryUsers{}
		h := NewRegisterHandler(newAuthorizationService(users), testCookie, logging.NewNop())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"username":"carol","password":"secret1","email":"c@example.com"}`))
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"username":"carol2","password":"secret1","email":"c@example.com"}`))
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Email already exists", decodeError(t, rec))
		assert.Len(t, users.users, 1)
	})
}

func TestAuthorizationHandler(t *testing.T) {
	users := &memoryUsers{}
	auth := newAuthorizationService(users)
	_, err := auth.Register(context.Background(), service.Credentials{Username: "bob", Password: "correct-horse"})
	require.NoError(t, err)
	h := NewAuthorizationHandler(auth, testCookie, logging.NewNop())

	t.Run("wrong password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"bob","password":"nope-nope"}`))
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
		assert.Empty(t, rec.Header().Get("Set-Cookie"))
	})

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"bob","password":"correct-horse"}`))
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, rec.Result().Cookies(), 1)
		assert.NotEmpty(t, rec.Result().Cookies()[0].Value)
	})
}

func TestLogoutHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewLogoutHandler(testCookie).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	require.Len(t, rec.Result().Cookies(), 1)
	cookie := rec.Result().Cookies()[0]
	assert.Equal(t, SessionCookieName, cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

type recordingCards struct {
	calls int
}

func (g *recordingCards) CreateCheckoutSession(context.Context, payments.CheckoutRequest) (payments.CheckoutSession, error) {
	g.calls++
	return payments.CheckoutSession{ID: "cs_1", URL: "https://checkout/cs_1"}, nil
}

func TestCheckoutSessionHandler(t *testing.T) {
	users := &memoryUsers{}
	require.NoError(t, users.InsertUser(context.Background(), &data.User{Username: "carol"}))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
		wantCalls  int
	}{
		{
			name:       "neither amount nor plan",
			body:       `{"email":"c@example.com"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing amount or planId",
		},
		{
			name:       "no email anywhere",
			body:       `{"amount":500}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing email",
		},
		{
			name:       "top-up",
			body:       `{"userEmail":"c@example.com","amount":500}`,
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := &recordingCards{}
			checkout := service.NewCheckout(service.CheckoutConfig{}, cards, nil, nil, logging.NewNop())
			h := NewCheckoutSessionHandler(checkout, newAuthorizationService(users), logging.NewNop())

			rec := httptest.NewRecorder()
			req := withUser(t, httptest.NewRequest(http.MethodPost, "/api/checkout_sessions", strings.NewReader(tt.body)), "1")
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalls, cards.calls)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, rec))
				return
			}
			var body CheckoutSessionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, CheckoutSessionResponse{URL: "https://checkout/cs_1", SessionID: "cs_1"}, body)
		})
	}
}

type countingEvents struct {
	mu     sync.Mutex
	events []payments.Event
}

func (c *countingEvents) Handle(_ context.Context, event payments.Event) (service.EventOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return service.OutcomeFulfilled, nil
}

func TestStripeWebhookHandler_InvalidSignature(t *testing.T) {
	events := &countingEvents{}
	verifier := payments.NewStripeVerifier(payments.StripeConfig{WebhookSecret: "whsec_test"})
	h := NewStripeWebhookHandler(events, verifier, logging.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(
		http.MethodPost,
		"/api/webhooks/stripe",
		strings.NewReader(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`),
	)
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid signature", decodeError(t, rec))
	assert.Empty(t, events.events)
}

func TestCoinbaseWebhookHandler(t *testing.T) {
	verifier := payments.NewCoinbaseVerifier(payments.CoinbaseConfig{WebhookSecret: "cb-secret"})
	payload := `{"event":{"id":"cb-1","type":"charge:confirmed","data":{"id":"charge-1","metadata":{"userId":"1","podId":"pod-1"}}}}`

	t.Run("valid", func(t *testing.T) {
		events := &countingEvents{}
		h := NewCoinbaseWebhookHandler(events, verifier, logging.NewNop())
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/coinbase", strings.NewReader(payload))
		req.Header.Set(payments.CoinbaseSignatureHeader, verifier.Sign([]byte(payload)))
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
		require.Len(t, events.events, 1)
		assert.Equal(t, "cb-1", events.events[0].ID)
	})

	t.Run("tampered", func(t *testing.T) {
		events := &countingEvents{}
		h := NewCoinbaseWebhookHandler(events, verifier, logging.NewNop())
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/coinbase", strings.NewReader(strings.Replace(payload, "pod-1", "pod-2", 1)))
		req.Header.Set(payments.CoinbaseSignatureHeader, verifier.Sign([]byte(payload)))
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, events.events)
	})
}
