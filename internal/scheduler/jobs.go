package scheduler

import (
	"context"
	"time"

	"github.com/valmeris/atlas/internal/batch"
	"github.com/valmeris/atlas/internal/store"
	"github.com/valmeris/atlas/pkg/logger"
)

// NightlyRiskJob computes risk snapshots for all active portfolios.
// Runs after EOD market data is loaded, default 02:00.
type NightlyRiskJob struct {
	runner   *batch.Runner
	schedule string
	logger   *logger.Logger
}

// NewNightlyRiskJob creates the nightly batch job
func NewNightlyRiskJob(runner *batch.Runner, schedule string, log *logger.Logger) *NightlyRiskJob {
	return &NightlyRiskJob{runner: runner, schedule: schedule, logger: log}
}

// Name returns the job name
func (j *NightlyRiskJob) Name() string { return "nightly-risk-batch" }

// Schedule returns the cron expression
func (j *NightlyRiskJob) Schedule() string { return j.schedule }

// Run executes the nightly batch for the previous business date
func (j *NightlyRiskJob) Run(ctx context.Context) error {
	asOf := previousBusinessDay(time.Now().UTC())

	results, err := j.runner.RunAll(ctx, asOf)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			j.logger.WithError(r.Err).WithField("portfolio", r.PortfolioID).Error("Portfolio failed in nightly batch")
		}
	}
	return nil
}

// EODBacktestJob derives realized daily P&L from consecutive snapshots
// and appends one backtesting record per portfolio.
type EODBacktestJob struct {
	runner     *batch.Runner
	portfolios *store.PortfolioRepository
	snapshots  *store.SnapshotRepository
	schedule   string
	logger     *logger.Logger
}

// NewEODBacktestJob creates the end-of-day backtesting job
func NewEODBacktestJob(
	runner *batch.Runner,
	portfolios *store.PortfolioRepository,
	snapshots *store.SnapshotRepository,
	schedule string,
	log *logger.Logger,
) *EODBacktestJob {
	return &EODBacktestJob{
		runner:     runner,
		portfolios: portfolios,
		snapshots:  snapshots,
		schedule:   schedule,
		logger:     log,
	}
}

// Name returns the job name
func (j *EODBacktestJob) Name() string { return "eod-backtest" }

// Schedule returns the cron expression
func (j *EODBacktestJob) Schedule() string { return j.schedule }

// Run pairs yesterday's VaR forecast with today's realized P&L
func (j *EODBacktestJob) Run(ctx context.Context) error {
	date := previousBusinessDay(time.Now().UTC())

	portfolios, err := j.portfolios.GetActivePortfolios(ctx)
	if err != nil {
		return err
	}

	for _, p := range portfolios {
		values, err := j.snapshots.RecentMarketValues(ctx, p.ID, date, 2)
		if err != nil {
			return err
		}
		if len(values) < 2 {
			// 연속된 스냅샷 두 개가 없으면 P&L을 만들 수 없음
			j.logger.WithField("portfolio", p.ID).Debug("Not enough snapshots for realized P&L")
			continue
		}
		pnl := values[1].Value - values[0].Value
		if err := j.runner.RecordEOD(ctx, p.ID, values[1].Date, pnl); err != nil {
			return err
		}
	}
	return nil
}

// previousBusinessDay steps back over weekends. Holidays are handled
// upstream by the market data loader leaving the date empty.
func previousBusinessDay(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
