// Package store holds the dashboard's single in-memory state
// container. Every UI read goes through it and every mutation is a
// named operation; network results are written against the state as
// it exists at write time, never against a snapshot captured when the
// operation started.
package store

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
	"github.com/raed-saidi/FinX-sub000/internal/events"
)

// Store is the single source of truth for dashboard state.
//
// All fields are guarded by mu. Network I/O happens outside the lock;
// operations re-read current state at the moment they write, so a
// price-only refresh completing after a full portfolio refresh applies
// its diff to the replaced snapshot, not a stale captured one.
type Store struct {
	api     *backend.Client
	persist *clientstate.Repository
	bus     *events.Bus
	log     zerolog.Logger

	mu              sync.RWMutex
	session         Session
	pendingTemp     string // temp token from a 2FA challenge
	portfolio       *backend.Portfolio
	botStatus       *backend.BotStatus
	recommendations []backend.Recommendation
	backtest        *backend.BacktestMetrics
	charts          map[string]*backend.ChartData
	watchlist       []string
	chat            []ChatMessage
	settings        AppSettings
	loading         LoadingState
	connection      ConnectionState
}

// New creates a store with the initial loading posture: the resources
// fetched at startup report loading until their first fetch completes.
func New(api *backend.Client, persist *clientstate.Repository, bus *events.Bus, log zerolog.Logger) *Store {
	return &Store{
		api:      api,
		persist:  persist,
		bus:      bus,
		log:      log.With().Str("component", "store").Logger(),
		charts:   make(map[string]*backend.ChartData),
		settings: defaultSettings(),
		loading: LoadingState{
			Portfolio:       true,
			BotStatus:       true,
			Recommendations: true,
			Backtest:        true,
		},
	}
}

// Session returns the current session.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// IsAuthenticated reports whether a full session is active.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Authenticated()
}

// Requires2FA reports whether a login challenge is pending.
func (s *Store) Requires2FA() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingTemp != ""
}

// Portfolio returns the current snapshot. The pointer is stable across
// price-only refreshes that change nothing, so callers may use it to
// skip recomputation.
func (s *Store) Portfolio() *backend.Portfolio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.portfolio
}

// BotStatus returns the last polled bot status.
func (s *Store) BotStatus() *backend.BotStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.botStatus
}

// Recommendations returns the current recommendation set.
func (s *Store) Recommendations() []backend.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.Recommendation, len(s.recommendations))
	copy(out, s.recommendations)
	return out
}

// Backtest returns the last fetched backtest metrics.
func (s *Store) Backtest() *backend.BacktestMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backtest
}

// Chart returns the cached chart for a symbol/period pair, or nil.
func (s *Store) Chart(symbol, period string) *backend.ChartData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.charts[symbol+":"+period]
}

// Watchlist returns the watched symbols.
func (s *Store) Watchlist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.watchlist))
	copy(out, s.watchlist)
	return out
}

// ChatMessages returns the transcript including any transient typing
// placeholder.
func (s *Store) ChatMessages() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

// Loading returns the per-resource loading flags.
func (s *Store) Loading() LoadingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Connection returns the push channel state.
func (s *Store) Connection() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connection
}

// SetConnected records the push channel connection state.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	s.connection.Connected = connected
	s.mu.Unlock()
}

// SetLastPushMessage records the most recent push frame.
func (s *Store) SetLastPushMessage(msg *backend.PushMessage) {
	s.mu.Lock()
	s.connection.LastMessage = msg
	s.mu.Unlock()
}

// emit publishes a store event when a bus is attached.
func (s *Store) emit(eventType events.EventType, data map[string]interface{}) {
	if s.bus != nil {
		s.bus.Emit(eventType, "store", data)
	}
}
