// Package main is the entry point for the FinX dashboard sync service.
// It hydrates the state store from durable local storage, opens the
// push channel to the trading backend, schedules the polling cadence,
// and serves the store to the UI layer over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/raed-saidi/FinX-sub000/internal/clients/backend"
	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
	"github.com/raed-saidi/FinX-sub000/internal/config"
	"github.com/raed-saidi/FinX-sub000/internal/database"
	"github.com/raed-saidi/FinX-sub000/internal/events"
	"github.com/raed-saidi/FinX-sub000/internal/realtime"
	"github.com/raed-saidi/FinX-sub000/internal/scheduler"
	"github.com/raed-saidi/FinX-sub000/internal/server"
	"github.com/raed-saidi/FinX-sub000/internal/store"
	"github.com/raed-saidi/FinX-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Str("backend", cfg.BackendURL).Msg("Starting FinX dashboard sync service")

	// Durable state (session, watchlist, chat transcript) and the
	// expiring resource cache live in separate databases so the cache
	// can trade durability for speed.
	stateDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client.db"),
		Profile: database.ProfileStandard,
		Name:    "client_state",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client state database")
	}
	defer stateDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "resource_cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open resource cache database")
	}
	defer cacheDB.Close()

	if err := stateDB.Migrate(clientstate.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate client state database")
	}
	if err := cacheDB.Migrate(clientstate.CacheSchema); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate resource cache database")
	}

	persist := clientstate.NewRepository(stateDB.Conn(), log)
	cache := clientstate.NewCache(cacheDB.Conn())
	bus := events.NewBus(log)

	api := backend.NewClient(cfg.BackendURL, cache, log)
	st := store.New(api, persist, bus, log)
	st.InitializeFromStorage()

	push := backend.NewPushClient(cfg.PushURL, backend.DefaultPushOptions(), bus, log)
	bridge := realtime.NewBridge(push, st, log)
	bridge.Start()
	defer bridge.Stop()

	sched := scheduler.New(log)
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{every(cfg.Intervals.Portfolio), &scheduler.PortfolioRefreshJob{Store: st}},
		{every(cfg.Intervals.Prices), &scheduler.PriceRefreshJob{Store: st}},
		{every(cfg.Intervals.BotStatus), &scheduler.BotStatusJob{Store: st}},
		{every(cfg.Intervals.Recommendations), &scheduler.RecommendationsJob{Store: st}},
		{"@hourly", &scheduler.CacheCleanupJob{Cache: cache}},
		{"@hourly", &scheduler.DatabaseMaintenanceJob{DB: stateDB}},
		{"@hourly", &scheduler.DatabaseMaintenanceJob{DB: cacheDB}},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}
	sched.Start()
	defer sched.Stop()

	// Prime the store so the first page load has data without waiting
	// for the schedules to fire.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		_ = st.FetchPortfolio(ctx)
		_ = st.FetchBotStatus(ctx)
		_ = st.FetchRecommendations(ctx)
		_ = st.FetchBacktest(ctx)
	}()

	srv := server.New(server.Config{
		Log:     log,
		Store:   st,
		Bus:     bus,
		Port:    cfg.BridgePort,
		DevMode: cfg.DevMode,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP bridge failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP shutdown")
	}

	log.Info().Msg("Dashboard sync service stopped")
}

// every formats a duration as a cron "@every" schedule.
func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
