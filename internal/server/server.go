// Package server exposes the dashboard state over HTTP for the UI
// layer: JSON snapshots of the store, mutation endpoints, and a
// Server-Sent Events stream of state changes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/raed-saidi/FinX-sub000/internal/events"
	"github.com/raed-saidi/FinX-sub000/internal/store"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Store   *store.Store
	Bus     *events.Bus
	Port    int
	DevMode bool
}

// Server is the UI-facing HTTP bridge.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	store  *store.Store
	bus    *events.Bus
}

// New creates the HTTP bridge server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		store:  cfg.Store,
		bus:    cfg.Bus,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if cfg.DevMode {
		corsOrigins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	handlers := NewHandlers(s.store, s.log)
	stream := NewEventsStreamHandler(s.bus, s.log)
	system := NewSystemStatusHandler(s.log)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Route("/api", func(r chi.Router) {
		// The SSE stream stays open indefinitely, so the request
		// timeout applies to everything except it.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			handlers.RegisterRoutes(r)
			r.Get("/system/status", system.ServeHTTP)
		})
		r.Get("/events/stream", stream.ServeHTTP)
	})
}

// Start runs the server until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP bridge listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP bridge")
	return s.server.Shutdown(ctx)
}

// Router exposes the chi router, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}
