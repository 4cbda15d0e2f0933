package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/valmeris/atlas/internal/risk"
	"github.com/valmeris/atlas/internal/store"
	"github.com/valmeris/atlas/pkg/config"
	"github.com/valmeris/atlas/pkg/logger"
)

// Runner orchestrates the host side of a risk run: fetch inputs, call
// the pure engine, persist the snapshot. The engine never touches I/O.
// ⭐ SSOT: 엔진 호출 전후의 모든 I/O는 여기서만
type Runner struct {
	portfolios *store.PortfolioRepository
	marketData *store.MarketDataRepository
	snapshots  *store.SnapshotRepository
	backtests  *store.BacktestRepository
	engine     *risk.Engine
	logger     *logger.Logger
	deadline   time.Duration
}

// NewRunner creates a batch runner
func NewRunner(
	portfolios *store.PortfolioRepository,
	marketData *store.MarketDataRepository,
	snapshots *store.SnapshotRepository,
	backtests *store.BacktestRepository,
	engine *risk.Engine,
	log *logger.Logger,
	deadline time.Duration,
) *Runner {
	return &Runner{
		portfolios: portfolios,
		marketData: marketData,
		snapshots:  snapshots,
		backtests:  backtests,
		engine:     engine,
		logger:     log,
		deadline:   deadline,
	}
}

// EngineConfigFromEnv maps environment configuration onto the engine's
// option record. Dates parse as YYYY-MM-DD; parse failures keep the
// engine defaults rather than silently shifting the stress window.
func EngineConfigFromEnv(cfg *config.Config) risk.EngineConfig {
	ec := risk.DefaultConfig()
	ec.VarWindowDays = cfg.Engine.VarWindowDays
	ec.VarConfidence = cfg.Engine.VarConfidence
	ec.VolRegimeOverride = cfg.Engine.VolRegimeOverride
	ec.KCohRate = cfg.Engine.KCohRate
	ec.DeadlineMs = cfg.Engine.DeadlineMs

	if t, err := time.Parse("2006-01-02", cfg.Engine.StressWindowStart); err == nil {
		ec.StressWindowStart = t
	}
	if t, err := time.Parse("2006-01-02", cfg.Engine.StressWindowEnd); err == nil {
		ec.StressWindowEnd = t
	}

	if cfg.Engine.Parallelism > 0 {
		ec.Parallelism = cfg.Engine.Parallelism
	} else {
		ec.Parallelism = runtime.NumCPU()
	}
	return ec
}

// LoadInput assembles the immutable input bundle for one portfolio
func (r *Runner) LoadInput(ctx context.Context, portfolio risk.Portfolio, asOf time.Time) (risk.ComputeInput, error) {
	in := risk.ComputeInput{Portfolio: portfolio}

	positions, err := r.portfolios.GetPositions(ctx, portfolio.ID, asOf)
	if err != nil {
		return in, fmt.Errorf("load positions: %w", err)
	}
	in.Positions = positions

	in.Counterparties, err = r.portfolios.GetCounterparties(ctx)
	if err != nil {
		return in, fmt.Errorf("load counterparties: %w", err)
	}
	in.Issuers, err = r.portfolios.GetIssuers(ctx)
	if err != nil {
		return in, fmt.Errorf("load issuers: %w", err)
	}
	in.MarketData, err = r.marketData.GetSnapshot(ctx, asOf)
	if err != nil {
		return in, fmt.Errorf("load market data: %w", err)
	}
	in.Limits, err = r.portfolios.GetLimits(ctx, portfolio.ID)
	if err != nil {
		return in, fmt.Errorf("load limits: %w", err)
	}
	in.PnLHistory, err = r.portfolios.GetPnLHistory(ctx, portfolio.ID, asOf)
	if err != nil {
		return in, fmt.Errorf("load pnl history: %w", err)
	}
	in.Funding, err = r.portfolios.GetFundingProfile(ctx, portfolio.ID, asOf)
	if err != nil {
		return in, fmt.Errorf("load funding profile: %w", err)
	}
	in.Capital, err = r.portfolios.GetCapitalInput(ctx, asOf)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return in, fmt.Errorf("load capital input: %w", err)
	}
	return in, nil
}

// ComputeOne runs the engine for a single portfolio and persists the result
func (r *Runner) ComputeOne(ctx context.Context, portfolio risk.Portfolio, asOf time.Time) (*risk.RiskSnapshot, error) {
	start := time.Now()

	in, err := r.LoadInput(ctx, portfolio, asOf)
	if err != nil {
		return nil, err
	}

	snapshot, err := r.engine.ComputeSnapshot(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("compute snapshot: %w", err)
	}

	if err := r.snapshots.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"portfolio": portfolio.ID,
		"as_of":     asOf.Format("2006-01-02"),
		"status":    snapshot.Status,
		"duration":  time.Since(start),
	}).Info("Risk snapshot computed")

	return &snapshot, nil
}

// Result is the per-portfolio outcome of a batch run
type Result struct {
	PortfolioID string
	Status      risk.CalcStatus
	Err         error
}

// RunAll computes snapshots for every active portfolio under the batch
// deadline. Portfolios run in parallel, bounded by CPU count; one
// portfolio failing does not stop the others.
func (r *Runner) RunAll(ctx context.Context, asOf time.Time) ([]Result, error) {
	if r.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.deadline)
		defer cancel()
	}

	portfolios, err := r.portfolios.GetActivePortfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("load portfolios: %w", err)
	}
	if len(portfolios) == 0 {
		r.logger.Warn("No active portfolios, nothing to compute")
		return nil, nil
	}

	workers := runtime.NumCPU()
	if workers > len(portfolios) {
		workers = len(portfolios)
	}

	results := make([]Result, len(portfolios))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, p := range portfolios {
		wg.Add(1)
		go func(i int, p risk.Portfolio) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := Result{PortfolioID: p.ID}
			snapshot, err := r.ComputeOne(ctx, p, asOf)
			if err != nil {
				res.Err = err
				r.logger.WithError(err).WithField("portfolio", p.ID).Error("Portfolio computation failed")
			} else {
				res.Status = snapshot.Status
			}
			results[i] = res
		}(i, p)
	}
	wg.Wait()

	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.logger.WithFields(map[string]interface{}{
		"portfolios": len(portfolios),
		"failed":     failed,
	}).Info("Nightly batch finished")

	return results, nil
}

// RecordEOD pairs the previous VaR forecast with a realized P&L
// observation and appends one backtesting record. Called by the
// end-of-day job once realized P&L is known.
func (r *Runner) RecordEOD(ctx context.Context, portfolioID string, date time.Time, pnl float64) error {
	if err := r.portfolios.SavePnL(ctx, portfolioID, risk.PnLPoint{Date: date, PnL: pnl}); err != nil {
		return err
	}

	forecast, _, err := r.backtests.LatestForecast(ctx, portfolioID, date)
	if errors.Is(err, store.ErrNotFound) {
		// 첫날은 전일 예측치가 없음
		r.logger.WithField("portfolio", portfolioID).Debug("No prior VaR forecast, skipping backtesting record")
		return nil
	}
	if err != nil {
		return err
	}

	rec := risk.NewBacktestingRecord(portfolioID, date, forecast, pnl)
	if err := r.backtests.Append(ctx, rec); err != nil {
		return err
	}

	if rec.IsException {
		r.logger.WithFields(map[string]interface{}{
			"portfolio": portfolioID,
			"date":      date.Format("2006-01-02"),
			"var":       forecast,
			"pnl":       pnl,
		}).Warn("VaR backtesting exception")
	}
	return nil
}

// BacktestStats evaluates the rolling backtesting window for a portfolio
func (r *Runner) BacktestStats(ctx context.Context, portfolioID string, asOf time.Time) (risk.BacktestStats, error) {
	records, err := r.backtests.GetRecords(ctx, portfolioID, asOf)
	if err != nil {
		return risk.BacktestStats{}, err
	}
	return risk.EvaluateBacktest(records, r.engine.Config().VarConfidence), nil
}
