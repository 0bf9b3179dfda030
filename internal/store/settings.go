package store

import (
	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
	"github.com/raed-saidi/FinX-sub000/internal/events"
)

// AppSettings are device-local UI preferences. Like the watchlist they
// belong to the device, not the session, so logout leaves them alone.
type AppSettings struct {
	Theme                string `json:"theme"`
	DefaultChartPeriod   string `json:"default_chart_period"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

func defaultSettings() AppSettings {
	return AppSettings{
		Theme:                "dark",
		DefaultChartPeriod:   "1mo",
		NotificationsEnabled: true,
	}
}

// Settings returns the current preferences.
func (s *Store) Settings() AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings replaces the preferences and persists them.
func (s *Store) UpdateSettings(settings AppSettings) {
	if s.persist != nil {
		if err := s.persist.SetJSON(clientstate.KeyAppSettings, settings); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist settings")
		}
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.emit(events.SettingsChanged, map[string]interface{}{
		"theme": settings.Theme,
	})
}
