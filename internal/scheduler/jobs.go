package scheduler

import (
	"context"
	"time"

	"github.com/raed-saidi/FinX-sub000/internal/clientstate"
	"github.com/raed-saidi/FinX-sub000/internal/database"
	"github.com/raed-saidi/FinX-sub000/internal/store"
)

// PortfolioRefreshJob performs the periodic full portfolio refresh.
// A run is skipped while a user-initiated fetch is still in flight so
// overlapping refreshes of the same resource do not pile up.
type PortfolioRefreshJob struct {
	Store *store.Store
}

func (j *PortfolioRefreshJob) Name() string { return "portfolio_refresh" }

func (j *PortfolioRefreshJob) Run() error {
	if j.Store.Loading().Portfolio {
		return nil
	}
	return j.Store.FetchPortfolio(context.Background())
}

// PriceRefreshJob performs the low-priority price-only refresh on the
// held symbols. It runs on a short cadence and relies on the store's
// diffing to suppress writes when nothing moved.
type PriceRefreshJob struct {
	Store *store.Store
}

func (j *PriceRefreshJob) Name() string { return "price_refresh" }

func (j *PriceRefreshJob) Run() error {
	j.Store.UpdatePricesOnly(context.Background())
	return nil
}

// BotStatusJob polls the trading bot status.
type BotStatusJob struct {
	Store *store.Store
}

func (j *BotStatusJob) Name() string { return "bot_status_poll" }

func (j *BotStatusJob) Run() error {
	if j.Store.Loading().BotStatus {
		return nil
	}
	return j.Store.FetchBotStatus(context.Background())
}

// RecommendationsJob refreshes the recommendation set.
type RecommendationsJob struct {
	Store *store.Store
}

func (j *RecommendationsJob) Name() string { return "recommendations_refresh" }

func (j *RecommendationsJob) Run() error {
	if j.Store.Loading().Recommendations {
		return nil
	}
	return j.Store.FetchRecommendations(context.Background())
}

// CacheCleanupJob prunes expired rows from the resource cache.
type CacheCleanupJob struct {
	Cache *clientstate.Cache
}

func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

func (j *CacheCleanupJob) Run() error {
	_, err := j.Cache.DeleteExpired()
	return err
}

// DatabaseMaintenanceJob verifies database integrity and truncates the
// WAL so long-running sessions do not accumulate an unbounded log.
type DatabaseMaintenanceJob struct {
	DB *database.DB
}

func (j *DatabaseMaintenanceJob) Name() string { return "db_maintenance_" + j.DB.Name() }

func (j *DatabaseMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := j.DB.HealthCheck(ctx); err != nil {
		return err
	}
	return j.DB.WALCheckpoint("TRUNCATE")
}
