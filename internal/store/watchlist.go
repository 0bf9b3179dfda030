package store

import (
	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
	"github.com/raed-saidi/FinX-sub000/internal/events"
)

// AddToWatchlist adds a symbol. Adding a symbol that is already
// watched is a no-op. The new list is persisted before the in-memory
// state is updated; a persistence failure is logged but does not block
// the edit, so the rendered value always reflects the user's action.
func (s *Store) AddToWatchlist(symbol string) {
	s.mu.Lock()
	for _, existing := range s.watchlist {
		if existing == symbol {
			s.mu.Unlock()
			return
		}
	}

	next := make([]string, len(s.watchlist), len(s.watchlist)+1)
	copy(next, s.watchlist)
	next = append(next, symbol)

	s.persistWatchlistLocked(next)
	s.watchlist = next
	count := len(next)
	s.mu.Unlock()

	s.emit(events.WatchlistChanged, map[string]interface{}{
		"symbol": symbol,
		"action": "add",
		"count":  count,
	})
}

// RemoveFromWatchlist removes a symbol; removing an absent symbol is
// a no-op.
func (s *Store) RemoveFromWatchlist(symbol string) {
	s.mu.Lock()
	index := -1
	for i, existing := range s.watchlist {
		if existing == symbol {
			index = i
			break
		}
	}
	if index < 0 {
		s.mu.Unlock()
		return
	}

	next := make([]string, 0, len(s.watchlist)-1)
	next = append(next, s.watchlist[:index]...)
	next = append(next, s.watchlist[index+1:]...)

	s.persistWatchlistLocked(next)
	s.watchlist = next
	count := len(next)
	s.mu.Unlock()

	s.emit(events.WatchlistChanged, map[string]interface{}{
		"symbol": symbol,
		"action": "remove",
		"count":  count,
	})
}

// persistWatchlistLocked writes the list to durable storage. Caller
// holds mu.
func (s *Store) persistWatchlistLocked(symbols []string) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SetJSON(clientstate.KeyWatchlist, symbols); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist watchlist")
	}
}
