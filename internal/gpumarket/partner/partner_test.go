package partner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu-market/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{ServerAddress: srv.URL, APIKey: "secret"}, logging.NewNop())
}

func TestClient_ListExecutors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantLen   int
		wantError bool
	}{
		{
			name:    "array",
			status:  http.StatusOK,
			body:    `[{"id":"a","machine_name":"RTX 4090","price_per_hour":1.2},{"id":"b"}]`,
			wantLen: 2,
		},
		{
			name:    "off-type entry is skipped",
			status:  http.StatusOK,
			body:    `[{"id":"ok"},{"id":"odd","specs":{"gpu":{"count":"2"}}},{"id":"also-ok"}]`,
			wantLen: 2,
		},
		{
			name:    "not an array",
			status:  http.StatusOK,
			body:    `{"executors":[]}`,
			wantLen: 0,
		},
		{
			name:      "upstream failure",
			status:    http.StatusServiceUnavailable,
			body:      "maintenance",
			wantError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/executors", r.URL.Path)
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			res, err := c.ListExecutors(context.Background())
			if tt.wantError {
				var upstreamErr *UpstreamError
				require.ErrorAs(t, err, &upstreamErr)
				assert.Equal(t, tt.status, upstreamErr.StatusCode)
				assert.Equal(t, tt.body, upstreamErr.Error())
				assert.True(t, errors.Is(err, ErrUpstream))
				return
			}
			require.NoError(t, err)
			assert.Len(t, res, tt.wantLen)
		})
	}
}

func TestClient_CreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "offer-1", body["offerId"])
		assert.EqualValues(t, 3, body["hours"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"p-1","status":"running","price":4.5}`)
	})

	order, err := c.CreateOrder(context.Background(), "offer-1", 3)
	require.NoError(t, err)
	assert.Equal(t, "p-1", order.ID)
	assert.Equal(t, "running", order.Status)
	assert.Equal(t, "4.5", order.Price.String())
}

func TestClient_GetOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/p-7", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"p-7","status":"completed"}`)
	})

	order, err := c.GetOrder(context.Background(), "p-7")
	require.NoError(t, err)
	assert.Equal(t, "completed", order.Status)
}
