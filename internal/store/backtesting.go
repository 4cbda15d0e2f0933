package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valmeris/atlas/internal/risk"
)

// BacktestRepository stores VaR backtesting records.
// Append-only: a (portfolio_id, date) pair is written once and never
// updated. The EOD job is the single writer.
// ⭐ SSOT: 백테스팅 기록 저장/조회는 여기서만
type BacktestRepository struct {
	pool *pgxpool.Pool
}

// NewBacktestRepository creates a new backtesting repository
func NewBacktestRepository(pool *pgxpool.Pool) *BacktestRepository {
	return &BacktestRepository{pool: pool}
}

// Append inserts one record. Re-running the EOD job for a date the
// record already exists for is a no-op, not an error.
func (r *BacktestRepository) Append(ctx context.Context, rec risk.BacktestingRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO risk.backtesting_records (portfolio_id, date, var_forecast, pnl_actual, is_exception)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (portfolio_id, date) DO NOTHING
	`, rec.PortfolioID, rec.Date, rec.VaRForecast, rec.PnLActual, rec.IsException)
	if err != nil {
		return fmt.Errorf("failed to append backtesting record: %w", err)
	}
	return nil
}

// GetRecords returns all records of a portfolio up to asOf in date order.
// The engine trims to its rolling window itself.
func (r *BacktestRepository) GetRecords(ctx context.Context, portfolioID string, asOf time.Time) ([]risk.BacktestingRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT portfolio_id, date, var_forecast, pnl_actual, is_exception
		FROM risk.backtesting_records
		WHERE portfolio_id = $1 AND date <= $2
		ORDER BY date
	`, portfolioID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtesting records: %w", err)
	}
	defer rows.Close()

	var records []risk.BacktestingRecord
	for rows.Next() {
		var rec risk.BacktestingRecord
		if err := rows.Scan(&rec.PortfolioID, &rec.Date, &rec.VaRForecast,
			&rec.PnLActual, &rec.IsException); err != nil {
			return nil, fmt.Errorf("failed to scan backtesting record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestForecast returns the VaR forecast made strictly before date.
// Used by the EOD job to pair yesterday's forecast with today's P&L.
func (r *BacktestRepository) LatestForecast(ctx context.Context, portfolioID string, date time.Time) (float64, time.Time, error) {
	var forecast float64
	var forecastDate time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT (body->'market'->>'var_1d_95')::float8, as_of_date
		FROM risk.snapshots
		WHERE portfolio_id = $1 AND as_of_date < $2 AND body->'market' IS NOT NULL
		ORDER BY as_of_date DESC
		LIMIT 1
	`, portfolioID, date).Scan(&forecast, &forecastDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, time.Time{}, ErrNotFound
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to query latest forecast: %w", err)
	}
	return forecast, forecastDate, nil
}
