package store

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
)

const testSchema = `
CREATE TABLE client_state (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at INTEGER NOT NULL);
CREATE TABLE resource_cache (resource TEXT NOT NULL, key TEXT NOT NULL, data TEXT NOT NULL, expires_at INTEGER NOT NULL, PRIMARY KEY (resource, key));
`

// newTestStore builds a store backed by an in-memory database and the
// given HTTP handler standing in for the backend.
func newTestStore(t *testing.T, handler http.Handler) (*Store, *clientstate.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	repo := clientstate.NewRepository(db, zerolog.Nop())
	api := backend.NewClient(srv.URL, nil, zerolog.Nop())
	return New(api, repo, nil, zerolog.Nop()), repo
}

func failingBackend() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"unavailable"}`, http.StatusServiceUnavailable)
	})
}

func TestAddToWatchlistIsIdempotent(t *testing.T) {
	st, repo := newTestStore(t, failingBackend())

	st.AddToWatchlist("AAPL")
	st.AddToWatchlist("AAPL")
	st.AddToWatchlist("MSFT")

	assert.Equal(t, []string{"AAPL", "MSFT"}, st.Watchlist())

	var persisted []string
	found, err := repo.GetJSON(clientstate.KeyWatchlist, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"AAPL", "MSFT"}, persisted)
}

func TestRemoveAbsentSymbolIsNoOp(t *testing.T) {
	st, _ := newTestStore(t, failingBackend())

	st.AddToWatchlist("AAPL")
	st.RemoveFromWatchlist("TSLA")

	assert.Equal(t, []string{"AAPL"}, st.Watchlist())

	st.RemoveFromWatchlist("AAPL")
	assert.Empty(t, st.Watchlist())
}

func TestHydrationRestoresValidSession(t *testing.T) {
	st, repo := newTestStore(t, failingBackend())

	require.NoError(t, repo.Set(clientstate.KeySessionToken, "tok-1"))
	require.NoError(t, repo.SetJSON(clientstate.KeyCachedUser, backend.User{Email: "a@b.com", Name: "Alice"}))

	st.InitializeFromStorage()

	require.True(t, st.IsAuthenticated())
	assert.Equal(t, "tok-1", st.Session().Token)
	assert.Equal(t, "a@b.com", st.Session().User.Email)
}

func TestHydrationCorruptUserClearsBoth(t *testing.T) {
	st, repo := newTestStore(t, failingBackend())

	require.NoError(t, repo.Set(clientstate.KeySessionToken, "tok-1"))
	require.NoError(t, repo.Set(clientstate.KeyCachedUser, "{corrupt"))

	st.InitializeFromStorage()

	assert.False(t, st.IsAuthenticated())

	// Both halves of the credential pair must be gone.
	token, err := repo.Get(clientstate.KeySessionToken)
	require.NoError(t, err)
	assert.Nil(t, token)

	user, err := repo.Get(clientstate.KeyCachedUser)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestHydrationTokenWithoutUserClearsToken(t *testing.T) {
	st, repo := newTestStore(t, failingBackend())

	require.NoError(t, repo.Set(clientstate.KeySessionToken, "orphan"))

	st.InitializeFromStorage()

	assert.False(t, st.IsAuthenticated())
	token, err := repo.Get(clientstate.KeySessionToken)
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestHydrationRestoresChatAndWatchlist(t *testing.T) {
	st, repo := newTestStore(t, failingBackend())

	require.NoError(t, repo.SetJSON(clientstate.KeyWatchlist, []string{"NVDA"}))
	require.NoError(t, repo.SetJSON(clientstate.KeyChatMessages, []ChatMessage{
		{ID: "m1", Role: "user", Content: "hi"},
		{ID: "m2", Role: "assistant", Content: "hello"},
	}))

	st.InitializeFromStorage()

	assert.Equal(t, []string{"NVDA"}, st.Watchlist())
	messages := st.ChatMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].Content)
}

func TestLogoutScope(t *testing.T) {
	st, repo := newTestStore(t, failingBackend())

	require.NoError(t, repo.Set(clientstate.KeySessionToken, "tok-1"))
	require.NoError(t, repo.SetJSON(clientstate.KeyCachedUser, backend.User{Email: "a@b.com"}))
	st.InitializeFromStorage()
	require.True(t, st.IsAuthenticated())

	st.AddToWatchlist("AAPL")
	st.mu.Lock()
	st.portfolio = testPortfolio()
	st.chat = []ChatMessage{{ID: "m1", Role: "user", Content: "hi"}}
	st.mu.Unlock()

	st.Logout()

	assert.False(t, st.IsAuthenticated())
	assert.Nil(t, st.Portfolio())
	assert.Empty(t, st.ChatMessages())

	// Watchlist survives logout.
	assert.Equal(t, []string{"AAPL"}, st.Watchlist())

	token, err := repo.Get(clientstate.KeySessionToken)
	require.NoError(t, err)
	assert.Nil(t, token)
	chat, err := repo.Get(clientstate.KeyChatMessages)
	require.NoError(t, err)
	assert.Nil(t, chat)

	var persisted []string
	found, err := repo.GetJSON(clientstate.KeyWatchlist, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"AAPL"}, persisted)
}

func TestLoginFailureReturnsFalse(t *testing.T) {
	st, _ := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Invalid credentials"}`, http.StatusUnauthorized)
	}))

	ok := st.Login(context.Background(), "a@b.com", "wrong")
	assert.False(t, ok)
	assert.False(t, st.IsAuthenticated())
}

func TestLoginSuccessEstablishesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-9","user":{"email":"a@b.com","name":"Alice"}}`))
	})
	st, repo := newTestStore(t, mux)

	ok := st.Login(context.Background(), "a@b.com", "pw")
	require.True(t, ok)
	require.True(t, st.IsAuthenticated())
	assert.Equal(t, "tok-9", st.Session().Token)

	token, err := repo.Get(clientstate.KeySessionToken)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "tok-9", *token)
}

func TestLoginTwoFactorChallenge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"requires_2fa":true,"temp_token":"tmp-1"}`))
	})
	mux.HandleFunc("/api/auth/verify-2fa", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-2","user":{"email":"a@b.com"}}`))
	})
	st, _ := newTestStore(t, mux)

	ok := st.Login(context.Background(), "a@b.com", "pw")
	assert.False(t, ok)
	assert.True(t, st.Requires2FA())
	assert.False(t, st.IsAuthenticated())

	ok = st.VerifyTwoFactor(context.Background(), "123456")
	assert.True(t, ok)
	assert.True(t, st.IsAuthenticated())
	assert.False(t, st.Requires2FA())
}

func TestFetchPortfolioFailureKeepsPreviousSnapshot(t *testing.T) {
	st, _ := newTestStore(t, failingBackend())

	previous := testPortfolio()
	st.mu.Lock()
	st.portfolio = previous
	st.mu.Unlock()

	err := st.FetchPortfolio(context.Background())
	require.Error(t, err)

	assert.Same(t, previous, st.Portfolio())
	assert.False(t, st.Loading().Portfolio)
}

func TestFetchPortfolioPublicFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/portfolio", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"token expired"}`, http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/portfolio", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cash":500,"positions":[],"total_value":500,"trades":[]}`))
	})
	st, repo := newTestStore(t, mux)

	require.NoError(t, repo.Set(clientstate.KeySessionToken, "tok"))
	require.NoError(t, repo.SetJSON(clientstate.KeyCachedUser, backend.User{Email: "a@b.com"}))
	st.InitializeFromStorage()

	require.NoError(t, st.FetchPortfolio(context.Background()))
	require.NotNil(t, st.Portfolio())
	assert.Equal(t, 500.0, st.Portfolio().Cash)
}

func TestUpdatePricesOnlyNeverTogglesLoading(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/prices/AAPL", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"AAPL","current_price":226.00}`))
	})
	mux.HandleFunc("/api/prices/MSFT", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"MSFT","current_price":410}`))
	})
	st, _ := newTestStore(t, mux)

	st.mu.Lock()
	st.portfolio = testPortfolio()
	st.loading.Portfolio = false
	st.mu.Unlock()

	st.UpdatePricesOnly(context.Background())

	assert.False(t, st.Loading().Portfolio)
	require.NotNil(t, st.Portfolio())
	assert.Equal(t, 226.00, st.Portfolio().Positions[0].CurrentPrice)
}

func TestUpdatePricesOnlyUnchangedKeepsPointer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/prices/AAPL", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"AAPL","current_price":225.67}`))
	})
	mux.HandleFunc("/api/prices/MSFT", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"MSFT","current_price":410}`))
	})
	st, _ := newTestStore(t, mux)

	snapshot := testPortfolio()
	st.mu.Lock()
	st.portfolio = snapshot
	st.mu.Unlock()

	st.UpdatePricesOnly(context.Background())

	assert.Same(t, snapshot, st.Portfolio())
}

func TestHydrationRestoresSettings(t *testing.T) {
	st, repo := newTestStore(t, failingBackend())

	require.NoError(t, repo.SetJSON(clientstate.KeyAppSettings, AppSettings{
		Theme:              "light",
		DefaultChartPeriod: "6mo",
	}))

	st.InitializeFromStorage()

	settings := st.Settings()
	assert.Equal(t, "light", settings.Theme)
	assert.Equal(t, "6mo", settings.DefaultChartPeriod)
}

func TestHydrationCorruptSettingsKeepsDefaults(t *testing.T) {
	st, repo := newTestStore(t, failingBackend())

	require.NoError(t, repo.Set(clientstate.KeyAppSettings, "{not json"))

	st.InitializeFromStorage()

	assert.Equal(t, defaultSettings(), st.Settings())
}

func TestUpdateSettingsPersists(t *testing.T) {
	st, repo := newTestStore(t, failingBackend())

	st.UpdateSettings(AppSettings{Theme: "light", DefaultChartPeriod: "1y", NotificationsEnabled: true})

	var persisted AppSettings
	found, err := repo.GetJSON(clientstate.KeyAppSettings, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "light", persisted.Theme)
	assert.Equal(t, "1y", persisted.DefaultChartPeriod)
}
