package store

import "github.com/raed-saidi/FinX-sub000/internal/clients/backend"

// applyPriceDiff merges freshly fetched prices into a portfolio
// snapshot. Positions whose price is unchanged keep their existing
// entry; only changed symbols are recomputed. When no symbol changed
// the original snapshot is returned unmodified so subscribers holding
// the old pointer see no update at all.
//
// Prices are compared with exact equality. The upstream feed rounds
// its values, so float identity is a usable notion of "unchanged"
// here; an epsilon would only mask updates.
func applyPriceDiff(current *backend.Portfolio, prices map[string]float64) (*backend.Portfolio, bool) {
	if current == nil || len(current.Positions) == 0 {
		return current, false
	}

	changed := false
	positions := make([]backend.Position, len(current.Positions))
	for i, pos := range current.Positions {
		price, ok := prices[pos.Symbol]
		if !ok || price == pos.CurrentPrice {
			positions[i] = pos
			continue
		}

		pos.CurrentPrice = price
		pos.Value = pos.Shares * price
		cost := pos.Shares * pos.AvgPrice
		pos.PnL = pos.Value - cost
		if cost != 0 {
			pos.PnLPct = pos.PnL / cost * 100
		} else {
			pos.PnLPct = 0
		}
		positions[i] = pos
		changed = true
	}

	if !changed {
		return current, false
	}

	next := &backend.Portfolio{
		Cash:      current.Cash,
		Positions: positions,
		Trades:    current.Trades,
	}
	total := current.Cash
	for _, pos := range positions {
		total += pos.Value
	}
	next.TotalValue = total
	return next, true
}
