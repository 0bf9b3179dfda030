package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
	"github.com/raed-saidi/FinX-sub000/internal/store"
)

// Handlers serves store snapshots and mutations over JSON.
type Handlers struct {
	store *store.Store
	log   zerolog.Logger
}

// NewHandlers creates the state handlers.
func NewHandlers(st *store.Store, log zerolog.Logger) *Handlers {
	return &Handlers{
		store: st,
		log:   log.With().Str("handler", "state").Logger(),
	}
}

// RegisterRoutes registers all state routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/state", func(r chi.Router) {
		r.Get("/", h.HandleGetState)
		r.Get("/portfolio", h.HandleGetPortfolio)
		r.Get("/bot", h.HandleGetBotStatus)
		r.Get("/recommendations", h.HandleGetRecommendations)
		r.Get("/backtest", h.HandleGetBacktest)
		r.Get("/watchlist", h.HandleGetWatchlist)
		r.Get("/chat", h.HandleGetChat)
		r.Get("/loading", h.HandleGetLoading)
		r.Get("/connection", h.HandleGetConnection)
		r.Get("/session", h.HandleGetSession)
	})

	r.Get("/chart/{symbol}", h.HandleGetChart)

	r.Post("/trade", h.HandleTrade)
	r.Post("/invest", h.HandleBatchInvest)
	r.Post("/bot/start", h.HandleStartBot)
	r.Post("/bot/stop", h.HandleStopBot)

	r.Post("/watchlist/{symbol}", h.HandleAddWatchlist)
	r.Delete("/watchlist/{symbol}", h.HandleRemoveWatchlist)

	r.Post("/chat", h.HandleChat)

	r.Get("/settings", h.HandleGetSettings)
	r.Put("/settings", h.HandleUpdateSettings)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Post("/register", h.HandleRegister)
		r.Post("/verify-2fa", h.HandleVerify2FA)
		r.Post("/logout", h.HandleLogout)
	})

	r.Route("/refresh", func(r chi.Router) {
		r.Post("/portfolio", h.HandleRefreshPortfolio)
		r.Post("/prices", h.HandleRefreshPrices)
	})
}

// HandleGetState returns the whole store snapshot in one response, for
// the initial page load.
func (h *Handlers) HandleGetState(w http.ResponseWriter, r *http.Request) {
	session := h.store.Session()
	loading := h.store.Loading()
	conn := h.store.Connection()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio":       h.store.Portfolio(),
		"bot_status":      h.store.BotStatus(),
		"recommendations": h.store.Recommendations(),
		"backtest":        h.store.Backtest(),
		"watchlist":       h.store.Watchlist(),
		"chat":            h.store.ChatMessages(),
		"settings":        h.store.Settings(),
		"authenticated":   session.Authenticated(),
		"user":            session.User,
		"loading": map[string]bool{
			"portfolio":       loading.Portfolio,
			"bot_status":      loading.BotStatus,
			"recommendations": loading.Recommendations,
			"backtest":        loading.Backtest,
			"chart":           loading.Chart,
		},
		"connected": conn.Connected,
	})
}

// HandleGetPortfolio returns the current portfolio snapshot.
func (h *Handlers) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio := h.store.Portfolio()
	if portfolio == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"cash": 0, "positions": []interface{}{}, "total_value": 0, "trades": []interface{}{},
		})
		return
	}
	h.writeJSON(w, http.StatusOK, portfolio)
}

func (h *Handlers) HandleGetBotStatus(w http.ResponseWriter, r *http.Request) {
	status := h.store.BotStatus()
	if status == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"running": false})
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Recommendations())
}

func (h *Handlers) HandleGetBacktest(w http.ResponseWriter, r *http.Request) {
	metrics := h.store.Backtest()
	if metrics == nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	h.writeJSON(w, http.StatusOK, metrics)
}

func (h *Handlers) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": h.store.Watchlist(),
	})
}

func (h *Handlers) HandleGetChat(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": h.store.ChatMessages(),
	})
}

func (h *Handlers) HandleGetLoading(w http.ResponseWriter, r *http.Request) {
	loading := h.store.Loading()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio":       loading.Portfolio,
		"bot_status":      loading.BotStatus,
		"recommendations": loading.Recommendations,
		"backtest":        loading.Backtest,
		"chart":           loading.Chart,
	})
}

func (h *Handlers) HandleGetConnection(w http.ResponseWriter, r *http.Request) {
	conn := h.store.Connection()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected":    conn.Connected,
		"last_message": conn.LastMessage,
	})
}

func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session := h.store.Session()
	resp := map[string]interface{}{
		"authenticated": session.Authenticated(),
		"requires_2fa":  h.store.Requires2FA(),
	}
	if session.User != nil {
		resp["user"] = session.User
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetChart loads chart data for a symbol, fetching it when not
// already cached.
func (h *Handlers) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1mo"
	}

	if chart := h.store.Chart(symbol, period); chart != nil {
		h.writeJSON(w, http.StatusOK, chart)
		return
	}
	if err := h.store.FetchChart(r.Context(), symbol, period); err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.store.Chart(symbol, period))
}

func (h *Handlers) HandleTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol  string  `json:"symbol"`
		Action  string  `json:"action"`
		Dollars float64 `json:"dollars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.store.ExecuteTrade(r.Context(), req.Symbol, req.Action, req.Dollars)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) HandleBatchInvest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TotalDollars       float64            `json:"total_dollars"`
		UseRecommendations bool               `json:"use_recommendations"`
		Allocations        map[string]float64 `json:"allocations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.store.BatchInvest(r.Context(), req.TotalDollars, req.UseRecommendations, req.Allocations)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) HandleStartBot(w http.ResponseWriter, r *http.Request) {
	var config struct {
		Mode           string  `json:"mode"`
		MaxPositionPct float64 `json:"max_position_pct"`
		TradeDollars   float64 `json:"trade_dollars"`
	}
	// An empty body means "start with defaults".
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.StartBot(r.Context(), backend.BotConfig{
		Mode:           config.Mode,
		MaxPositionPct: config.MaxPositionPct,
		TradeDollars:   config.TradeDollars,
	}); err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handlers) HandleStopBot(w http.ResponseWriter, r *http.Request) {
	h.store.StopBot(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handlers) HandleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	h.store.AddToWatchlist(chi.URLParam(r, "symbol"))
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": h.store.Watchlist()})
}

func (h *Handlers) HandleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	h.store.RemoveFromWatchlist(chi.URLParam(r, "symbol"))
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": h.store.Watchlist()})
}

func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply := h.store.SendChatMessage(r.Context(), req.Message)
	h.writeJSON(w, http.StatusOK, reply)
}

func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Settings())
}

func (h *Handlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings store.AppSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.store.UpdateSettings(settings)
	h.writeJSON(w, http.StatusOK, h.store.Settings())
}

func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok := h.store.Login(r.Context(), req.Email, req.Password)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      ok,
		"requires_2fa": h.store.Requires2FA(),
	})
}

func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok := h.store.Register(r.Context(), req.Email, req.Password, req.Name)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": ok})
}

func (h *Handlers) HandleVerify2FA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok := h.store.VerifyTwoFactor(r.Context(), req.Code)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": ok})
}

func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.store.Logout()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleRefreshPortfolio triggers a manual portfolio refresh.
func (h *Handlers) HandleRefreshPortfolio(w http.ResponseWriter, r *http.Request) {
	if err := h.store.FetchPortfolio(r.Context()); err != nil {
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.store.Portfolio())
}

// HandleRefreshPrices triggers a manual price-only refresh.
func (h *Handlers) HandleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	h.store.UpdatePricesOnly(r.Context())
	h.writeJSON(w, http.StatusOK, h.store.Portfolio())
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, map[string]interface{}{"detail": detail})
}
