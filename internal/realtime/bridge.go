// Package realtime wires the push channel into the state store so
// that server-initiated events refresh the relevant resources without
// waiting for the next poll.
package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
	"github.com/raed-saidi/FinX-sub000/internal/store"
)

// Bridge connects push events to store refreshes.
type Bridge struct {
	push  *backend.PushClient
	store *store.Store
	log   zerolog.Logger
}

// NewBridge registers the push handlers and returns the bridge. The
// handlers are installed immediately; call Start to open the
// connection and begin keep-alives.
func NewBridge(push *backend.PushClient, st *store.Store, log zerolog.Logger) *Bridge {
	b := &Bridge{
		push:  push,
		store: st,
		log:   log.With().Str("component", "realtime_bridge").Logger(),
	}

	push.OnConnectionChange(func(connected bool) {
		st.SetConnected(connected)
	})

	push.OnMessage(func(msg backend.PushMessage) {
		msgCopy := msg
		st.SetLastPushMessage(&msgCopy)
	})

	// A fill means the server changed the portfolio behind our back;
	// refetch rather than patching locally.
	push.OnTradeFill(func(fill backend.TradeFillEvent) {
		b.log.Info().
			Str("symbol", fill.Symbol).
			Str("action", fill.Action).
			Float64("shares", fill.Shares).
			Msg("Trade fill received, reconciling portfolio")
		if err := st.FetchPortfolio(context.Background()); err != nil {
			b.log.Warn().Err(err).Msg("Portfolio refresh after trade fill failed")
		}
	})

	push.OnPriceAlert(func(alert backend.PriceAlertEvent) {
		b.log.Info().
			Str("symbol", alert.Symbol).
			Float64("price", alert.Price).
			Msg("Price alert received")
		st.UpdatePricesOnly(context.Background())
	})

	return b
}

// Start opens the push connection and begins the keep-alive loop. A
// failed initial connection is not fatal; the client retries in the
// background and the dashboard degrades to polling.
func (b *Bridge) Start() {
	if err := b.push.Connect(); err != nil {
		b.log.Warn().Err(err).Msg("Push channel unavailable, relying on polling")
	}
	b.push.StartKeepAlive()
}

// Stop tears the push channel down.
func (b *Bridge) Stop() {
	b.push.StopKeepAlive()
	if err := b.push.Disconnect(); err != nil {
		b.log.Warn().Err(err).Msg("Error during push disconnect")
	}
}
