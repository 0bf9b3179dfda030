package backend

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/raed-saidi/FinX-sub000/internal/events"
)

const (
	// WebSocket connection constants
	pushWriteWait   = 10 * time.Second
	pushDialTimeout = 30 * time.Second
)

// PushOptions tunes the push client's reconnect and keep-alive behavior.
type PushOptions struct {
	BaseReconnectDelay   time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
	KeepAliveInterval    time.Duration
}

// DefaultPushOptions returns the production tuning.
func DefaultPushOptions() PushOptions {
	return PushOptions{
		BaseReconnectDelay:   5 * time.Second,
		MaxReconnectDelay:    5 * time.Minute,
		MaxReconnectAttempts: 10,
		KeepAliveInterval:    30 * time.Second,
	}
}

// PushClient maintains the single long-lived push connection to the
// backend. Trade fills and price alerts arrive as JSON frames
// {type, data}; unrecognized frame types are forwarded generically.
//
// A lost connection is retried with exponential backoff up to
// MaxReconnectAttempts; once the cap is reached the client stays down
// until Connect is called again. Disconnect cancels any pending retry
// and saturates the attempt counter so no stray timer revives the
// connection afterwards.
type PushClient struct {
	// Connection
	url        string
	httpClient *http.Client // Reusable HTTP client configured for HTTP/1.1
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	// Dependencies
	eventBus *events.Bus
	log      zerolog.Logger
	opts     PushOptions

	// State
	connected    bool
	reconnecting bool
	attempts     int
	stopChan     chan struct{}
	lastMessage  *PushMessage

	// Keep-alive
	keepAliveStop chan struct{}
	keepAliveOnce sync.Once

	// Handlers
	onTradeFill     func(TradeFillEvent)
	onPriceAlert    func(PriceAlertEvent)
	onMessage       func(PushMessage)
	onConnectChange func(bool)
}

// createHTTP1Client creates an HTTP client that forces HTTP/1.1.
// WebSocket requires HTTP/1.1 for the upgrade handshake, and proxies
// in front of the backend may otherwise negotiate HTTP/2 via ALPN.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// NewPushClient creates a push channel client.
func NewPushClient(url string, opts PushOptions, eventBus *events.Bus, log zerolog.Logger) *PushClient {
	if opts.BaseReconnectDelay <= 0 {
		opts = DefaultPushOptions()
	}
	return &PushClient{
		url:        url,
		httpClient: createHTTP1Client(),
		eventBus:   eventBus,
		log:        log.With().Str("component", "push_client").Logger(),
		opts:       opts,
		stopChan:   make(chan struct{}),
	}
}

// OnTradeFill registers the handler for trade fill frames.
func (pc *PushClient) OnTradeFill(fn func(TradeFillEvent)) {
	pc.mu.Lock()
	pc.onTradeFill = fn
	pc.mu.Unlock()
}

// OnPriceAlert registers the handler for price alert frames.
func (pc *PushClient) OnPriceAlert(fn func(PriceAlertEvent)) {
	pc.mu.Lock()
	pc.onPriceAlert = fn
	pc.mu.Unlock()
}

// OnMessage registers a catch-all handler invoked for every frame,
// including types the client does not recognize.
func (pc *PushClient) OnMessage(fn func(PushMessage)) {
	pc.mu.Lock()
	pc.onMessage = fn
	pc.mu.Unlock()
}

// OnConnectionChange registers the handler called whenever the
// connection state flips.
func (pc *PushClient) OnConnectionChange(fn func(bool)) {
	pc.mu.Lock()
	pc.onConnectChange = fn
	pc.mu.Unlock()
}

// IsConnected reports whether the connection is currently open.
func (pc *PushClient) IsConnected() bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.connected
}

// LastMessage returns the most recently received frame, or nil.
func (pc *PushClient) LastMessage() *PushMessage {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.lastMessage
}

// Connect establishes the push connection and starts the read loop.
// Calling Connect while already connected is a no-op. A successful
// connection resets the reconnect attempt counter and re-arms the
// reconnect machinery after a previous Disconnect or attempt-cap stop.
func (pc *PushClient) Connect() error {
	pc.mu.Lock()
	if pc.connected {
		pc.mu.Unlock()
		return nil
	}
	// Re-arm after Disconnect: a closed stopChan means the previous
	// session was torn down explicitly.
	select {
	case <-pc.stopChan:
		pc.stopChan = make(chan struct{})
	default:
	}
	pc.attempts = 0
	pc.mu.Unlock()

	if err := pc.dial(); err != nil {
		pc.log.Warn().Err(err).Msg("Initial push connection failed, retrying in background")
		go pc.reconnectLoop()
		return err
	}

	pc.mu.RLock()
	ctx := pc.connCtx
	pc.mu.RUnlock()
	go pc.readMessages(ctx)
	return nil
}

// Disconnect tears the connection down and cancels any pending
// reconnection attempt. Idempotent.
func (pc *PushClient) Disconnect() error {
	pc.mu.Lock()

	// Saturate the counter so a retry timer that is already sleeping
	// gives up instead of reviving the connection.
	pc.attempts = pc.opts.MaxReconnectAttempts
	select {
	case <-pc.stopChan:
	default:
		close(pc.stopChan)
	}

	if pc.conn == nil {
		pc.mu.Unlock()
		return nil
	}

	pc.log.Info().Msg("Disconnecting push channel")

	if pc.cancelFunc != nil {
		pc.cancelFunc()
		pc.cancelFunc = nil
	}
	conn := pc.conn
	pc.conn = nil
	pc.connCtx = nil
	pc.connected = false
	notify := pc.onConnectChange
	pc.mu.Unlock()

	pc.notifyConnection(notify, false)

	if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		return fmt.Errorf("error closing push connection: %w", err)
	}
	return nil
}

// Send writes a JSON frame to the server. It is a no-op when the
// connection is down; push sends are fire-and-forget.
func (pc *PushClient) Send(msg interface{}) error {
	pc.mu.RLock()
	conn := pc.conn
	ctx := pc.connCtx
	pc.mu.RUnlock()

	if conn == nil {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, pushWriteWait)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send push message: %w", err)
	}
	return nil
}

// StartKeepAlive begins the periodic ping loop. The loop runs for the
// lifetime of the client regardless of connection state; pings are
// simply skipped while the connection is down.
func (pc *PushClient) StartKeepAlive() {
	pc.keepAliveOnce.Do(func() {
		pc.mu.Lock()
		pc.keepAliveStop = make(chan struct{})
		pc.mu.Unlock()
		go pc.keepAliveLoop()
	})
}

// StopKeepAlive stops the ping loop.
func (pc *PushClient) StopKeepAlive() {
	pc.mu.Lock()
	stop := pc.keepAliveStop
	pc.keepAliveStop = nil
	pc.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

func (pc *PushClient) keepAliveLoop() {
	pc.mu.RLock()
	stop := pc.keepAliveStop
	pc.mu.RUnlock()
	if stop == nil {
		return
	}

	ticker := time.NewTicker(pc.opts.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !pc.IsConnected() {
				continue
			}
			if err := pc.Send(map[string]string{"type": "ping"}); err != nil {
				pc.log.Debug().Err(err).Msg("Keep-alive ping failed")
			}
		}
	}
}

// dial performs one connection attempt.
func (pc *PushClient) dial() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.log.Info().Str("url", pc.url).Msg("Connecting to push channel")

	dialCtx, dialCancel := context.WithTimeout(context.Background(), pushDialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, pc.url, &websocket.DialOptions{
		HTTPClient: pc.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to dial push channel: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	pc.conn = conn
	pc.connCtx = connCtx
	pc.cancelFunc = connCancel
	pc.connected = true
	pc.attempts = 0
	notify := pc.onConnectChange

	pc.log.Info().Msg("Push channel connected")

	go pc.notifyConnection(notify, true)
	return nil
}

// readMessages continuously reads frames until the connection drops.
func (pc *PushClient) readMessages(ctx context.Context) {
	defer func() {
		pc.mu.Lock()
		wasConnected := pc.connected
		pc.connected = false
		pc.conn = nil
		notify := pc.onConnectChange
		var stopped bool
		select {
		case <-pc.stopChan:
			stopped = true
		default:
		}
		pc.mu.Unlock()

		if wasConnected {
			pc.notifyConnection(notify, false)
		}
		if !stopped {
			go pc.reconnectLoop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pc.mu.RLock()
		conn := pc.conn
		pc.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				pc.log.Info().Int("status", int(closeStatus)).Msg("Push channel closed normally")
			} else if ctx.Err() != nil {
				pc.log.Debug().Msg("Push read cancelled by context")
			} else {
				pc.log.Error().Err(err).Msg("Unexpected push channel read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			pc.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text push frame")
			continue
		}

		if err := pc.handleMessage(message); err != nil {
			pc.log.Error().Err(err).Str("message", string(message)).Msg("Failed to handle push frame")
			// Continue reading despite parse errors
		}
	}
}

// handleMessage parses a frame and dispatches it by type.
func (pc *PushClient) handleMessage(message []byte) error {
	var msg PushMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("failed to parse push frame: %w", err)
	}
	if msg.Type == "" {
		return fmt.Errorf("push frame missing type field")
	}

	pc.mu.Lock()
	pc.lastMessage = &msg
	onTradeFill := pc.onTradeFill
	onPriceAlert := pc.onPriceAlert
	onMessage := pc.onMessage
	pc.mu.Unlock()

	switch msg.Type {
	case "trade_fill":
		var fill TradeFillEvent
		if err := json.Unmarshal(msg.Data, &fill); err != nil {
			return fmt.Errorf("failed to parse trade fill: %w", err)
		}
		if onTradeFill != nil {
			onTradeFill(fill)
		}
		if pc.eventBus != nil {
			pc.eventBus.Emit(events.TradeExecuted, "push_client", map[string]interface{}{
				"symbol": fill.Symbol,
				"action": fill.Action,
				"shares": fill.Shares,
				"price":  fill.Price,
			})
		}
	case "price_alert":
		var alert PriceAlertEvent
		if err := json.Unmarshal(msg.Data, &alert); err != nil {
			return fmt.Errorf("failed to parse price alert: %w", err)
		}
		if onPriceAlert != nil {
			onPriceAlert(alert)
		}
		if pc.eventBus != nil {
			pc.eventBus.Emit(events.PriceAlert, "push_client", map[string]interface{}{
				"symbol":  alert.Symbol,
				"price":   alert.Price,
				"message": alert.Message,
			})
		}
	case "pong":
		pc.log.Debug().Msg("Keep-alive pong received")
	default:
		pc.log.Debug().Str("type", msg.Type).Msg("Unrecognized push frame, forwarding generically")
	}

	if onMessage != nil {
		onMessage(msg)
	}
	if pc.eventBus != nil {
		pc.eventBus.Emit(events.PushMessage, "push_client", map[string]interface{}{
			"type": msg.Type,
		})
	}
	return nil
}

// reconnectLoop retries the connection with exponential backoff until
// it succeeds, the attempt cap is reached, or Disconnect is called.
func (pc *PushClient) reconnectLoop() {
	pc.mu.Lock()
	if pc.reconnecting {
		pc.mu.Unlock()
		return
	}
	pc.reconnecting = true
	stop := pc.stopChan
	pc.mu.Unlock()

	defer func() {
		pc.mu.Lock()
		pc.reconnecting = false
		pc.mu.Unlock()
	}()

	for {
		select {
		case <-stop:
			pc.log.Info().Msg("Reconnection stopped by disconnect")
			return
		default:
		}

		pc.mu.Lock()
		if pc.attempts >= pc.opts.MaxReconnectAttempts {
			pc.mu.Unlock()
			pc.log.Warn().
				Int("max_attempts", pc.opts.MaxReconnectAttempts).
				Msg("Reconnection attempts exhausted, staying disconnected until next Connect")
			return
		}
		pc.attempts++
		attempt := pc.attempts
		pc.mu.Unlock()

		delay := pc.calculateBackoff(attempt)
		pc.log.Info().
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Attempting push channel reconnect")

		select {
		case <-time.After(delay):
		case <-stop:
			return
		}

		if err := pc.dial(); err != nil {
			pc.log.Error().Err(err).Int("attempt", attempt).Msg("Reconnection failed")
			continue
		}

		pc.log.Info().Int("attempt", attempt).Msg("Push channel reconnected")

		pc.mu.RLock()
		ctx := pc.connCtx
		pc.mu.RUnlock()
		go pc.readMessages(ctx)
		return
	}
}

// calculateBackoff computes the exponential backoff delay for an attempt.
func (pc *PushClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(pc.opts.BaseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(pc.opts.MaxReconnectDelay) {
		delay = float64(pc.opts.MaxReconnectDelay)
	}
	return time.Duration(delay)
}

// notifyConnection invokes the connection-change handler and mirrors
// the state onto the event bus.
func (pc *PushClient) notifyConnection(fn func(bool), connected bool) {
	if fn != nil {
		fn(connected)
	}
	if pc.eventBus != nil {
		pc.eventBus.Emit(events.ConnectionChanged, "push_client", map[string]interface{}{
			"connected": connected,
		})
	}
}
