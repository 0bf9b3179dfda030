package backend

import "encoding/json"

// Position is a single holding inside a portfolio snapshot.
type Position struct {
	Symbol       string  `json:"symbol"`
	Shares       float64 `json:"shares"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	Value        float64 `json:"value"`
	PnL          float64 `json:"pnl"`
	PnLPct       float64 `json:"pnl_pct"`
}

// TradeRecord is one executed trade in the portfolio history.
type TradeRecord struct {
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	Shares    float64 `json:"shares"`
	Price     float64 `json:"price"`
	Total     float64 `json:"total"`
	Timestamp string  `json:"timestamp"`
}

// Portfolio is the full portfolio snapshot returned by the server.
type Portfolio struct {
	Cash       float64       `json:"cash"`
	Positions  []Position    `json:"positions"`
	TotalValue float64       `json:"total_value"`
	Trades     []TradeRecord `json:"trades"`
}

// Quote is a lightweight price reading for one symbol.
type Quote struct {
	Symbol       string  `json:"symbol"`
	CurrentPrice float64 `json:"current_price"`
	ChangePct    float64 `json:"change_pct"`
}

// ChartBar is one OHLCV bar in a chart series.
type ChartBar struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// ChartData is the chart payload for a symbol over a period.
type ChartData struct {
	Symbol       string     `json:"symbol"`
	Period       string     `json:"period"`
	CurrentPrice float64    `json:"current_price"`
	ChangePct    float64    `json:"change_pct"`
	High52W      float64    `json:"high_52w"`
	Low52W       float64    `json:"low_52w"`
	Bars         []ChartBar `json:"data"`
}

// AlpacaAccount mirrors the broker account block attached to bot status
// when the server has live broker credentials.
type AlpacaAccount struct {
	BuyingPower    float64 `json:"buying_power"`
	Cash           float64 `json:"cash"`
	PortfolioValue float64 `json:"portfolio_value"`
	Equity         float64 `json:"equity"`
	Status         string  `json:"status"`
}

// BotStatus describes the server-side trading bot.
type BotStatus struct {
	Running         bool           `json:"running"`
	Mode            string         `json:"mode"`
	TradesToday     int            `json:"trades_today"`
	AlpacaConnected bool           `json:"alpaca_connected"`
	AlpacaAccount   *AlpacaAccount `json:"alpaca_account,omitempty"`
}

// BotConfig is the configuration sent when starting the bot.
type BotConfig struct {
	Mode           string  `json:"mode"`
	MaxPositionPct float64 `json:"max_position_pct,omitempty"`
	TradeDollars   float64 `json:"trade_dollars,omitempty"`
}

// Recommendation is one model-generated allocation suggestion.
type Recommendation struct {
	Symbol       string  `json:"symbol"`
	Direction    string  `json:"direction"`
	Signal       float64 `json:"signal"`
	WeightPct    float64 `json:"weight_pct"`
	Dollars      float64 `json:"dollars"`
	Shares       float64 `json:"shares"`
	CurrentPrice float64 `json:"current_price"`
}

// BacktestMetrics summarizes a historical strategy evaluation.
type BacktestMetrics struct {
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	WinRate      float64 `json:"win_rate"`
}

// TradeRequest is a user-initiated dollar-denominated trade.
type TradeRequest struct {
	Symbol  string  `json:"symbol"`
	Action  string  `json:"action"`
	Dollars float64 `json:"dollars"`
}

// TradeResult is the server's acknowledgement of a trade request.
type TradeResult struct {
	Success         bool    `json:"success"`
	Message         string  `json:"message"`
	Cash            float64 `json:"cash"`
	AlpacaConnected bool    `json:"alpaca_connected"`
}

// BatchInvestRequest spreads a dollar amount across several symbols,
// either following the current recommendations or explicit allocations.
type BatchInvestRequest struct {
	TotalDollars       float64            `json:"total_dollars"`
	UseRecommendations bool               `json:"use_recommendations"`
	Allocations        map[string]float64 `json:"allocations,omitempty"`
}

// BatchInvestResult reports the outcome of a batch investment.
type BatchInvestResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Orders  []TradeRecord `json:"orders,omitempty"`
	Cash    float64       `json:"cash"`
}

// User is the authenticated account identity.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AuthResponse is returned by login and register. When the account has
// two-factor auth enabled, Requires2FA is set and AccessToken is empty
// until the code is verified with TempToken.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	User        *User  `json:"user,omitempty"`
	Requires2FA bool   `json:"requires_2fa,omitempty"`
	TempToken   string `json:"temp_token,omitempty"`
}

// ChatResponse is the assistant's reply to a chat message.
type ChatResponse struct {
	Response string `json:"response"`
}

// PushMessage is one frame received over the push channel. Data is kept
// raw so unrecognized frame types can be passed through untouched.
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TradeFillEvent is the payload of a trade_fill push frame.
type TradeFillEvent struct {
	Symbol string  `json:"symbol"`
	Action string  `json:"action"`
	Shares float64 `json:"shares"`
	Price  float64 `json:"price"`
}

// PriceAlertEvent is the payload of a price_alert push frame.
type PriceAlertEvent struct {
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	Message string  `json:"message"`
}
