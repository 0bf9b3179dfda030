package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserPortfolioSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cash":100,"positions":[],"total_value":100,"trades":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	c.SetToken("tok-1")

	portfolio, err := c.GetUserPortfolio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, 100.0, portfolio.Cash)
}

func TestAnonymousRequestOmitsAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cash":0,"positions":[],"total_value":0,"trades":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	_, err := c.GetPublicPortfolio(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestAPIErrorCarriesDetailString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Insufficient funds"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	_, err := c.ExecuteTrade(context.Background(), TradeRequest{Symbol: "AAPL", Action: "buy", Dollars: 100})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Insufficient funds", apiErr.Error())
}

func TestAPIErrorCarriesValidationList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":[{"loc":["body","dollars"],"msg":"must be positive"}]}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	_, err := c.ExecuteTrade(context.Background(), TradeRequest{Symbol: "AAPL", Action: "buy", Dollars: -1})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Error(), "must be positive")
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	_, err := c.GetBotStatus(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "502")
}

func TestChatRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"hello"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	reply, err := c.Chat(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply.Response)
}
