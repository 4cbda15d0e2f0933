package commands

import (
	"fmt"

	"github.com/valmeris/atlas/internal/batch"
	"github.com/valmeris/atlas/internal/risk"
	"github.com/valmeris/atlas/internal/store"
	"github.com/valmeris/atlas/pkg/config"
	"github.com/valmeris/atlas/pkg/database"
	"github.com/valmeris/atlas/pkg/logger"
)

// runtime bundles the shared wiring every command needs
type runtime struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	engine *risk.Engine

	portfolios *store.PortfolioRepository
	marketData *store.MarketDataRepository
	snapshots  *store.SnapshotRepository
	backtests  *store.BacktestRepository
	runner     *batch.Runner
}

// newRuntime loads config, connects to the database and wires the
// repositories and the engine together
func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	engineCfg := batch.EngineConfigFromEnv(cfg)
	engine, err := risk.NewEngine(engineCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	rt := &runtime{
		cfg:        cfg,
		log:        log,
		db:         db,
		engine:     engine,
		portfolios: store.NewPortfolioRepository(db.Pool),
		marketData: store.NewMarketDataRepository(db.Pool),
		snapshots:  store.NewSnapshotRepository(db.Pool),
		backtests:  store.NewBacktestRepository(db.Pool),
	}
	rt.runner = batch.NewRunner(rt.portfolios, rt.marketData, rt.snapshots, rt.backtests,
		engine, log, cfg.Batch.Deadline)

	return rt, nil
}

// close releases runtime resources
func (rt *runtime) close() {
	rt.db.Close()
}
