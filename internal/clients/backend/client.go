// Package backend provides the REST and push-channel clients for the
// FinX trading backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
)

// APIError carries the server's error payload. The backend reports
// failures as {"detail": ...} where detail is either a string or a list
// of validation messages; Detail holds the flattened text.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
	cache   *clientstate.Cache

	mu    sync.RWMutex
	token string
}

// NewClient creates a backend API client.
// cache is optional - if nil, chart/backtest caching is disabled.
func NewClient(baseURL string, cache *clientstate.Cache, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "backend-api").Logger(),
		cache:   cache,
	}
}

// SetToken sets the bearer token attached to authenticated requests.
// An empty token reverts the client to anonymous requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the currently configured bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do executes a JSON request and decodes the response into out (when
// out is non-nil). Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseError extracts the server's detail message from an error response.
func (c *Client) parseError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}

	// Validation errors arrive as a list; keep the raw JSON readable.
	apiErr.Detail = string(envelope.Detail)
	return apiErr
}

// GetUserPortfolio fetches the authenticated user's portfolio.
func (c *Client) GetUserPortfolio(ctx context.Context) (*Portfolio, error) {
	var portfolio Portfolio
	if err := c.do(ctx, http.MethodGet, "/api/user/portfolio", nil, &portfolio); err != nil {
		return nil, err
	}
	return &portfolio, nil
}

// GetPublicPortfolio fetches the shared demo portfolio that needs no
// authentication.
func (c *Client) GetPublicPortfolio(ctx context.Context) (*Portfolio, error) {
	var portfolio Portfolio
	if err := c.do(ctx, http.MethodGet, "/api/portfolio", nil, &portfolio); err != nil {
		return nil, err
	}
	return &portfolio, nil
}

// GetQuote fetches the current price for one symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	var quote Quote
	path := "/api/prices/" + url.PathEscape(symbol)
	if err := c.do(ctx, http.MethodGet, path, nil, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// GetChart fetches chart data for a symbol and period.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) GetChart(ctx context.Context, symbol, period string) (*ChartData, error) {
	cacheKey := symbol + ":" + period

	if c.cache != nil {
		if data, err := c.cache.GetIfFresh("chart", cacheKey); err == nil && data != nil {
			var cached ChartData
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("symbol", symbol).Str("period", period).Msg("Chart cache hit")
				return &cached, nil
			}
		}
	}

	var chart ChartData
	path := fmt.Sprintf("/api/chart/%s?period=%s", url.PathEscape(symbol), url.QueryEscape(period))
	if err := c.do(ctx, http.MethodGet, path, nil, &chart); err != nil {
		if c.cache != nil {
			if data, cacheErr := c.cache.Get("chart", cacheKey); cacheErr == nil && data != nil {
				var stale ChartData
				if jsonErr := json.Unmarshal(data, &stale); jsonErr == nil {
					c.log.Warn().Err(err).Str("symbol", symbol).Msg("Chart fetch failed, using stale cache")
					return &stale, nil
				}
			}
		}
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Store("chart", cacheKey, &chart, clientstate.TTLChart); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache chart data")
		}
	}
	return &chart, nil
}

// GetBotStatus fetches the trading bot's current status.
func (c *Client) GetBotStatus(ctx context.Context) (*BotStatus, error) {
	var status BotStatus
	if err := c.do(ctx, http.MethodGet, "/api/bot/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StartBot asks the server to start the trading bot.
func (c *Client) StartBot(ctx context.Context, config BotConfig) error {
	return c.do(ctx, http.MethodPost, "/api/bot/start", config, nil)
}

// StopBot asks the server to stop the trading bot.
func (c *Client) StopBot(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/bot/stop", nil, nil)
}

// GetRecommendations fetches the current allocation recommendations.
func (c *Client) GetRecommendations(ctx context.Context) ([]Recommendation, error) {
	var recs []Recommendation
	if err := c.do(ctx, http.MethodGet, "/api/recommendations", nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// GetBacktest fetches the backtest metrics for the active strategy.
// Metrics only change when the strategy is retrained, so they are
// cached like charts with a stale fallback.
func (c *Client) GetBacktest(ctx context.Context) (*BacktestMetrics, error) {
	if c.cache != nil {
		if data, err := c.cache.GetIfFresh("backtest", "default"); err == nil && data != nil {
			var cached BacktestMetrics
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	var metrics BacktestMetrics
	if err := c.do(ctx, http.MethodGet, "/api/backtest", nil, &metrics); err != nil {
		if c.cache != nil {
			if data, cacheErr := c.cache.Get("backtest", "default"); cacheErr == nil && data != nil {
				var stale BacktestMetrics
				if jsonErr := json.Unmarshal(data, &stale); jsonErr == nil {
					c.log.Warn().Err(err).Msg("Backtest fetch failed, using stale cache")
					return &stale, nil
				}
			}
		}
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Store("backtest", "default", &metrics, clientstate.TTLBacktest); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache backtest metrics")
		}
	}
	return &metrics, nil
}

// ExecuteTrade submits a dollar-denominated trade.
func (c *Client) ExecuteTrade(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	var result TradeResult
	if err := c.do(ctx, http.MethodPost, "/api/trade", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BatchInvest spreads a dollar amount across multiple symbols.
func (c *Client) BatchInvest(ctx context.Context, req BatchInvestRequest) (*BatchInvestResult, error) {
	var result BatchInvestResult
	if err := c.do(ctx, http.MethodPost, "/api/invest", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var auth AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password, "name": name}
	var auth AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Verify2FA exchanges a temp token and code for a full session.
func (c *Client) Verify2FA(ctx context.Context, tempToken, code string) (*AuthResponse, error) {
	body := map[string]string{"temp_token": tempToken, "code": code}
	var auth AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify-2fa", body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Chat sends a message to the market assistant.
func (c *Client) Chat(ctx context.Context, message string) (*ChatResponse, error) {
	body := map[string]string{"message": message}
	var reply ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
