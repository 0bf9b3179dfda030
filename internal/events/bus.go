// Package events provides the in-process event bus used to fan out push-channel
// and store activity to interested components (realtime bridge, SSE stream).
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// Push-channel events
	TradeExecuted     EventType = "TRADE_EXECUTED"
	PriceAlert        EventType = "PRICE_ALERT"
	PushMessage       EventType = "PUSH_MESSAGE"
	ConnectionChanged EventType = "CONNECTION_CHANGED"

	// Store events
	PortfolioRefreshed      EventType = "PORTFOLIO_REFRESHED"
	PricesUpdated           EventType = "PRICES_UPDATED"
	BotStatusChanged        EventType = "BOT_STATUS_CHANGED"
	RecommendationsUpdated  EventType = "RECOMMENDATIONS_UPDATED"
	SessionChanged          EventType = "SESSION_CHANGED"
	WatchlistChanged        EventType = "WATCHLIST_CHANGED"
	ChatMessageAppended     EventType = "CHAT_MESSAGE_APPENDED"
	SettingsChanged         EventType = "SETTINGS_CHANGED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}

// Handler is invoked synchronously for each emitted event it subscribed to.
// Handlers must not block; slow consumers should buffer internally.
type Handler func(event *Event)

// Bus handles event subscription and emission.
type Bus struct {
	log      zerolog.Logger
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log:      log.With().Str("component", "events").Logger(),
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit emits an event to all handlers subscribed to its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Int("handlers", len(handlers)).
		Msg("Event emitted")

	for _, handler := range handlers {
		handler(event)
	}
}
