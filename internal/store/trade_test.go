package store

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
)

func TestExecuteTradeReconcilesExactlyOnce(t *testing.T) {
	var portfolioFetches int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/trade", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"Bought $100 of AAPL","cash":900}`))
	})
	mux.HandleFunc("/api/portfolio", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&portfolioFetches, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cash":900,"positions":[],"total_value":900,"trades":[]}`))
	})
	st, _ := newTestStore(t, mux)

	result, err := st.ExecuteTrade(context.Background(), "AAPL", "buy", 100)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, 900.0, result.Cash)

	assert.Equal(t, int64(1), atomic.LoadInt64(&portfolioFetches))
	require.NotNil(t, st.Portfolio())
	assert.Equal(t, 900.0, st.Portfolio().Cash)
}

func TestExecuteTradeRejectionSurfacesServerReason(t *testing.T) {
	var portfolioFetches int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/trade", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Insufficient funds"}`, http.StatusBadRequest)
	})
	mux.HandleFunc("/api/portfolio", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&portfolioFetches, 1)
	})
	st, _ := newTestStore(t, mux)

	_, err := st.ExecuteTrade(context.Background(), "AAPL", "buy", 1e9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient funds")

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	// A rejected trade must not trigger a reconciliation fetch.
	assert.Equal(t, int64(0), atomic.LoadInt64(&portfolioFetches))
}

func TestExecuteTradeServerDeclaredFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/trade", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"message":"Market closed"}`))
	})
	st, _ := newTestStore(t, mux)

	result, err := st.ExecuteTrade(context.Background(), "AAPL", "buy", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Market closed")
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestBatchInvestReconciles(t *testing.T) {
	var portfolioFetches int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/invest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"ok","cash":0}`))
	})
	mux.HandleFunc("/api/portfolio", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&portfolioFetches, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cash":0,"positions":[],"total_value":0,"trades":[]}`))
	})
	st, _ := newTestStore(t, mux)

	_, err := st.BatchInvest(context.Background(), 1000, true, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&portfolioFetches))
}

func TestStartBotPropagatesFailureAndReconciles(t *testing.T) {
	var statusFetches int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/bot/start", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Alpaca not configured"}`, http.StatusBadGateway)
	})
	mux.HandleFunc("/api/bot/status", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&statusFetches, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"running":false,"mode":"paper","trades_today":0,"alpaca_connected":false}`))
	})
	st, _ := newTestStore(t, mux)

	err := st.StartBot(context.Background(), backend.BotConfig{Mode: "paper"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Alpaca not configured")

	// Status is reconciled even when the start failed.
	assert.Equal(t, int64(1), atomic.LoadInt64(&statusFetches))
	require.NotNil(t, st.BotStatus())
	assert.False(t, st.BotStatus().Running)
}

func TestStopBotSwallowsFailure(t *testing.T) {
	var statusFetches int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/bot/stop", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/bot/status", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&statusFetches, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"running":true,"mode":"paper","trades_today":3,"alpaca_connected":true}`))
	})
	st, _ := newTestStore(t, mux)

	// Must not panic or return anything; failures are best-effort.
	st.StopBot(context.Background())
	assert.Equal(t, int64(1), atomic.LoadInt64(&statusFetches))
}
