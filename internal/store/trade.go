package store

import (
	"context"
	"fmt"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
	"github.com/raed-saidi/FinX-sub000/internal/events"
)

// ExecuteTrade submits a dollar-denominated trade. The displayed
// portfolio after a trade is never derived from client-side
// arithmetic: a successful trade is followed by exactly one portfolio
// refetch and the server's snapshot is what the UI shows. A rejected
// trade surfaces the server's reason to the caller.
func (s *Store) ExecuteTrade(ctx context.Context, symbol, action string, dollars float64) (*backend.TradeResult, error) {
	result, err := s.api.ExecuteTrade(ctx, backend.TradeRequest{
		Symbol:  symbol,
		Action:  action,
		Dollars: dollars,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		if result.Message != "" {
			return result, fmt.Errorf("trade rejected: %s", result.Message)
		}
		return result, fmt.Errorf("trade rejected")
	}

	s.emit(events.TradeExecuted, map[string]interface{}{
		"symbol":  symbol,
		"action":  action,
		"dollars": dollars,
	})

	if err := s.FetchPortfolio(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Post-trade portfolio reconciliation failed")
	}
	return result, nil
}

// BatchInvest spreads an amount across multiple symbols and, like
// ExecuteTrade, reconciles through a portfolio refetch on success.
func (s *Store) BatchInvest(ctx context.Context, totalDollars float64, useRecommendations bool, allocations map[string]float64) (*backend.BatchInvestResult, error) {
	result, err := s.api.BatchInvest(ctx, backend.BatchInvestRequest{
		TotalDollars:       totalDollars,
		UseRecommendations: useRecommendations,
		Allocations:        allocations,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		if result.Message != "" {
			return result, fmt.Errorf("batch invest rejected: %s", result.Message)
		}
		return result, fmt.Errorf("batch invest rejected")
	}

	if err := s.FetchPortfolio(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Post-invest portfolio reconciliation failed")
	}
	return result, nil
}

// StartBot asks the server to start the trading bot and reconciles
// the displayed status with a fresh poll regardless of outcome. The
// error is propagated so the UI can show it; the config is persisted
// so the next session starts from the same settings.
func (s *Store) StartBot(ctx context.Context, config backend.BotConfig) error {
	err := s.api.StartBot(ctx, config)
	if err == nil && s.persist != nil {
		if perr := s.persist.SetJSON(clientstate.KeyBotConfig, config); perr != nil {
			s.log.Warn().Err(perr).Msg("Failed to persist bot config")
		}
	}

	if ferr := s.FetchBotStatus(ctx); ferr != nil {
		s.log.Warn().Err(ferr).Msg("Bot status reconciliation failed after start")
	}
	return err
}

// StopBot asks the server to stop the bot. Failures are swallowed:
// the reconciling status poll shows whether the bot actually stopped.
func (s *Store) StopBot(ctx context.Context) {
	if err := s.api.StopBot(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Bot stop request failed")
	}
	if err := s.FetchBotStatus(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Bot status reconciliation failed after stop")
	}
}
