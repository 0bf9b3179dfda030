package store

import (
	"context"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
	"github.com/raed-saidi/FinX-sub000/internal/events"
)

// FetchPortfolio refreshes the full portfolio snapshot. An
// authenticated session uses the user portfolio endpoint and falls
// back to the public one if that call fails; anonymous sessions go
// straight to the public endpoint. On failure the previous snapshot is
// kept: stale-but-present beats blank. The loading flag is always
// cleared, success or not.
func (s *Store) FetchPortfolio(ctx context.Context) error {
	s.mu.Lock()
	s.loading.Portfolio = true
	authenticated := s.session.Authenticated()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading.Portfolio = false
		s.mu.Unlock()
	}()

	var portfolio *backend.Portfolio
	var err error
	if authenticated {
		portfolio, err = s.api.GetUserPortfolio(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("Authenticated portfolio fetch failed, falling back to public")
			portfolio, err = s.api.GetPublicPortfolio(ctx)
		}
	} else {
		portfolio, err = s.api.GetPublicPortfolio(ctx)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Portfolio fetch failed, keeping previous snapshot")
		return err
	}

	s.mu.Lock()
	s.portfolio = portfolio
	s.mu.Unlock()

	s.emit(events.PortfolioRefreshed, map[string]interface{}{
		"total_value": portfolio.TotalValue,
		"positions":   len(portfolio.Positions),
	})
	return nil
}

// UpdatePricesOnly refreshes just the prices of currently held
// symbols. It never toggles the portfolio loading flag: this is a
// background refresh, not a user-facing load. The diff is applied to
// the snapshot as it exists after the fetches complete, so a full
// refresh that landed in between is respected.
func (s *Store) UpdatePricesOnly(ctx context.Context) {
	s.mu.RLock()
	current := s.portfolio
	s.mu.RUnlock()
	if current == nil || len(current.Positions) == 0 {
		return
	}

	symbols := make([]string, 0, len(current.Positions))
	for _, pos := range current.Positions {
		symbols = append(symbols, pos.Symbol)
	}

	prices := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.api.GetQuote(ctx, symbol)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("Price fetch failed, keeping cached price")
			continue
		}
		prices[quote.Symbol] = quote.CurrentPrice
	}
	if len(prices) == 0 {
		return
	}

	s.mu.Lock()
	next, changed := applyPriceDiff(s.portfolio, prices)
	if changed {
		s.portfolio = next
	}
	s.mu.Unlock()

	if changed {
		s.emit(events.PricesUpdated, map[string]interface{}{
			"symbols": len(prices),
		})
	}
}

// FetchBotStatus refreshes the bot status, replacing it wholesale.
// Failures are logged and leave stale data visible.
func (s *Store) FetchBotStatus(ctx context.Context) error {
	s.mu.Lock()
	s.loading.BotStatus = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading.BotStatus = false
		s.mu.Unlock()
	}()

	status, err := s.api.GetBotStatus(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Bot status fetch failed")
		return err
	}

	s.mu.Lock()
	s.botStatus = status
	s.mu.Unlock()

	s.emit(events.BotStatusChanged, map[string]interface{}{
		"running": status.Running,
		"mode":    status.Mode,
	})
	return nil
}

// FetchRecommendations refreshes the recommendation set wholesale.
func (s *Store) FetchRecommendations(ctx context.Context) error {
	s.mu.Lock()
	s.loading.Recommendations = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading.Recommendations = false
		s.mu.Unlock()
	}()

	recs, err := s.api.GetRecommendations(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Recommendations fetch failed")
		return err
	}

	s.mu.Lock()
	s.recommendations = recs
	s.mu.Unlock()

	s.emit(events.RecommendationsUpdated, map[string]interface{}{
		"count": len(recs),
	})
	return nil
}

// FetchBacktest refreshes the backtest metrics.
func (s *Store) FetchBacktest(ctx context.Context) error {
	s.mu.Lock()
	s.loading.Backtest = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading.Backtest = false
		s.mu.Unlock()
	}()

	metrics, err := s.api.GetBacktest(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Backtest fetch failed")
		return err
	}

	s.mu.Lock()
	s.backtest = metrics
	s.mu.Unlock()
	return nil
}

// FetchChart loads chart data for a symbol and period.
func (s *Store) FetchChart(ctx context.Context, symbol, period string) error {
	s.mu.Lock()
	s.loading.Chart = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading.Chart = false
		s.mu.Unlock()
	}()

	chart, err := s.api.GetChart(ctx, symbol, period)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Chart fetch failed")
		return err
	}

	s.mu.Lock()
	s.charts[symbol+":"+period] = chart
	s.mu.Unlock()
	return nil
}
