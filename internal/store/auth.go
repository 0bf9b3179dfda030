package store

import (
	"context"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
	"github.com/raed-saidi/FinX-sub000/internal/events"
)

// Login authenticates and returns whether a full session was
// established. Failures come back as false rather than an error so the
// calling form can show an inline message. A two-factor challenge also
// returns false; the caller checks Requires2FA and follows up with
// VerifyTwoFactor.
func (s *Store) Login(ctx context.Context, email, password string) bool {
	auth, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("Login failed")
		return false
	}
	if auth.Requires2FA {
		s.mu.Lock()
		s.pendingTemp = auth.TempToken
		s.mu.Unlock()
		return false
	}
	return s.establishSession(auth)
}

// Register creates an account and, on success, establishes a session.
func (s *Store) Register(ctx context.Context, email, password, name string) bool {
	auth, err := s.api.Register(ctx, email, password, name)
	if err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("Registration failed")
		return false
	}
	return s.establishSession(auth)
}

// VerifyTwoFactor completes a pending two-factor challenge.
func (s *Store) VerifyTwoFactor(ctx context.Context, code string) bool {
	s.mu.RLock()
	temp := s.pendingTemp
	s.mu.RUnlock()
	if temp == "" {
		return false
	}

	auth, err := s.api.Verify2FA(ctx, temp, code)
	if err != nil {
		s.log.Warn().Err(err).Msg("Two-factor verification failed")
		return false
	}

	s.mu.Lock()
	s.pendingTemp = ""
	s.mu.Unlock()
	return s.establishSession(auth)
}

// establishSession persists and installs a session from an auth
// response. An incomplete response (missing token or user) is treated
// as a failed login.
func (s *Store) establishSession(auth *backend.AuthResponse) bool {
	if auth == nil || auth.AccessToken == "" || auth.User == nil {
		return false
	}

	if s.persist != nil {
		if err := s.persist.Set(clientstate.KeySessionToken, auth.AccessToken); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist session token")
		}
		if err := s.persist.SetJSON(clientstate.KeyCachedUser, auth.User); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist cached user")
		}
	}

	s.mu.Lock()
	s.session = Session{Token: auth.AccessToken, User: auth.User}
	s.mu.Unlock()
	s.api.SetToken(auth.AccessToken)

	s.emit(events.SessionChanged, map[string]interface{}{
		"authenticated": true,
		"email":         auth.User.Email,
	})
	return true
}

// Logout clears the session, portfolio, and chat transcript, in
// memory and in durable storage. The watchlist deliberately survives:
// it belongs to the device, not the session.
func (s *Store) Logout() {
	if s.persist != nil {
		for _, key := range []string{clientstate.KeySessionToken, clientstate.KeyCachedUser, clientstate.KeyChatMessages} {
			if err := s.persist.Delete(key); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("Failed to clear persisted value on logout")
			}
		}
	}

	s.mu.Lock()
	s.session = Session{}
	s.pendingTemp = ""
	s.portfolio = nil
	s.chat = nil
	s.backtest = nil
	s.mu.Unlock()
	s.api.SetToken("")

	s.emit(events.SessionChanged, map[string]interface{}{
		"authenticated": false,
	})
}

// InitializeFromStorage hydrates the store from durable state at
// startup. The session is restored only when both the token and the
// cached user are present and parse cleanly; partial or corrupt state
// is wiped and the store starts anonymous. Read failures are logged
// and otherwise ignored — the store always starts.
func (s *Store) InitializeFromStorage() {
	if s.persist == nil {
		return
	}

	token, err := s.persist.Get(clientstate.KeySessionToken)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read persisted session token")
		token = nil
	}

	var user backend.User
	userOK, err := s.persist.GetJSON(clientstate.KeyCachedUser, &user)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read cached user")
		userOK = false
	}

	if token != nil && userOK {
		s.mu.Lock()
		s.session = Session{Token: *token, User: &user}
		s.mu.Unlock()
		s.api.SetToken(*token)
		s.log.Info().Str("email", user.Email).Msg("Session restored from storage")
	} else if token != nil || userOK {
		// A token without a parseable user (or vice versa) is not a
		// session; clear both so the halves cannot drift.
		for _, key := range []string{clientstate.KeySessionToken, clientstate.KeyCachedUser} {
			if err := s.persist.Delete(key); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("Failed to clear partial credentials")
			}
		}
		s.log.Warn().Msg("Partial or corrupt credentials cleared, starting anonymous")
	}

	var chat []ChatMessage
	if ok, err := s.persist.GetJSON(clientstate.KeyChatMessages, &chat); err != nil {
		s.log.Warn().Err(err).Msg("Failed to read chat transcript")
	} else if ok {
		s.mu.Lock()
		s.chat = chat
		s.trimChatLocked()
		s.mu.Unlock()
	}

	var watchlist []string
	if ok, err := s.persist.GetJSON(clientstate.KeyWatchlist, &watchlist); err != nil {
		s.log.Warn().Err(err).Msg("Failed to read watchlist")
	} else if ok {
		s.mu.Lock()
		s.watchlist = watchlist
		s.mu.Unlock()
	}

	var settings AppSettings
	if ok, err := s.persist.GetJSON(clientstate.KeyAppSettings, &settings); err != nil {
		s.log.Warn().Err(err).Msg("Failed to read settings")
	} else if ok {
		s.mu.Lock()
		s.settings = settings
		s.mu.Unlock()
	}
}
