package gammarecon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"polyPaperBot/internal/adapters/logger"
	"polyPaperBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: baseURL, Timeout: 2 * time.Second, Logger: logger.NopLogger{}})
	require.NoError(t, err)
	return c
}

func TestResolveResolvedMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/mkt-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"mkt-1","resolved":true,"winning_token_id":"tok-yes"}`))
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	verdict, err := c.Resolve(context.Background(), "mkt-1", "tok-yes")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeWon, verdict.Outcome)

	verdict, err = c.Resolve(context.Background(), "mkt-1", "tok-no")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeLost, verdict.Outcome)
}

func TestResolveUnresolvedMarketCarriesBestBid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"mkt-1","resolved":false,"best_bid":0.42}`))
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	verdict, err := c.Resolve(context.Background(), "mkt-1", "tok-yes")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeUnresolved, verdict.Outcome)
	require.NotNil(t, verdict.LastBid)
	assert.InDelta(t, 0.42, *verdict.LastBid, 1e-9)
}

func TestResolveUnresolvedMarketWithoutBid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"mkt-1","resolved":false}`))
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	verdict, err := c.Resolve(context.Background(), "mkt-1", "tok-yes")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeUnresolved, verdict.Outcome)
	assert.Nil(t, verdict.LastBid)
}

func TestResolveResolvedWithoutWinnerIsInconclusive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"mkt-1","resolved":true,"best_bid":0.9}`))
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	verdict, err := c.Resolve(context.Background(), "mkt-1", "tok-yes")
	require.NoError(t, err)
	assert.Equal(t, ports.OutcomeUnresolved, verdict.Outcome)
	require.NotNil(t, verdict.LastBid)
}

func TestResolveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	_, err := c.Resolve(context.Background(), "mkt-1", "tok-yes")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrReconcileUnavailable)
}

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
