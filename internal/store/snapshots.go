package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valmeris/atlas/internal/risk"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// SnapshotRepository handles risk snapshot persistence
// ⭐ SSOT: 스냅샷 저장/조회는 여기서만
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Save persists a snapshot with its alerts and DQ issues in one
// transaction. Identity is (portfolio_id, as_of_date, engine_version);
// recomputation replaces the previous row.
func (r *SnapshotRepository) Save(ctx context.Context, s risk.RiskSnapshot) error {
	stored := s.StoredForm()
	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO risk.snapshots (
			portfolio_id, as_of_date, engine_version, market_data_snapshot_id,
			status, body, error_message, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (portfolio_id, as_of_date, engine_version) DO UPDATE SET
			market_data_snapshot_id = EXCLUDED.market_data_snapshot_id,
			status = EXCLUDED.status,
			body = EXCLUDED.body,
			error_message = EXCLUDED.error_message,
			calculated_at = EXCLUDED.calculated_at
	`
	_, err = tx.Exec(ctx, query,
		s.PortfolioID, s.AsOfDate, s.EngineVersion, s.MarketDataSnapshotID,
		string(s.Status), body, s.ErrorMessage, s.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	// 알림은 실행별 전체 교체
	_, err = tx.Exec(ctx,
		"DELETE FROM risk.alerts WHERE portfolio_id = $1 AND as_of_date = $2",
		s.PortfolioID, s.AsOfDate)
	if err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}
	alertQuery := `
		INSERT INTO risk.alerts (
			portfolio_id, as_of_date, metric, current_value, limit_value,
			usage, severity, description, created_at, acknowledged
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
	`
	for _, a := range stored.Alerts {
		_, err := tx.Exec(ctx, alertQuery,
			a.PortfolioID, s.AsOfDate, a.Metric, a.CurrentValue, a.LimitValue,
			a.Usage, string(a.Severity), a.Description, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	dqQuery := `
		INSERT INTO risk.dq_issues (
			portfolio_id, as_of_date, rule, severity, source,
			instrument_id, snapshot_id, detail, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`
	for _, issue := range s.DQIssues {
		_, err := tx.Exec(ctx, dqQuery,
			s.PortfolioID, s.AsOfDate, issue.Rule, string(issue.Severity), issue.Source,
			issue.InstrumentID, issue.SnapshotID, issue.Detail, issue.DetectedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert dq issue: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get retrieves a snapshot by identity
func (r *SnapshotRepository) Get(ctx context.Context, portfolioID string, asOf time.Time, engineVersion string) (*risk.RiskSnapshot, error) {
	var body []byte
	err := r.pool.QueryRow(ctx, `
		SELECT body FROM risk.snapshots
		WHERE portfolio_id = $1 AND as_of_date = $2 AND engine_version = $3
	`, portfolioID, asOf, engineVersion).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	var s risk.RiskSnapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// Latest retrieves the most recent snapshot for a portfolio
func (r *SnapshotRepository) Latest(ctx context.Context, portfolioID, engineVersion string) (*risk.RiskSnapshot, error) {
	var body []byte
	err := r.pool.QueryRow(ctx, `
		SELECT body FROM risk.snapshots
		WHERE portfolio_id = $1 AND engine_version = $2
		ORDER BY as_of_date DESC
		LIMIT 1
	`, portfolioID, engineVersion).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	var s risk.RiskSnapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// ListAlerts returns alerts for a portfolio and date, most severe first
func (r *SnapshotRepository) ListAlerts(ctx context.Context, portfolioID string, asOf time.Time) ([]risk.Alert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT portfolio_id, metric, current_value, limit_value, usage,
		       severity, description, created_at, acknowledged
		FROM risk.alerts
		WHERE portfolio_id = $1 AND as_of_date = $2
		ORDER BY CASE severity
			WHEN 'CRITICAL' THEN 0 WHEN 'RED' THEN 1 WHEN 'YELLOW' THEN 2 ELSE 3
		END, metric
	`, portfolioID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []risk.Alert
	for rows.Next() {
		var a risk.Alert
		var severity string
		if err := rows.Scan(&a.PortfolioID, &a.Metric, &a.CurrentValue, &a.LimitValue,
			&a.Usage, &severity, &a.Description, &a.CreatedAt, &a.Acknowledged); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Severity = risk.Severity(severity)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// DatedValue is one (date, value) observation
type DatedValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// RecentMarketValues returns the last n total market values up to and
// including upTo, oldest first. Used by the EOD job to derive realized
// P&L from consecutive snapshots.
func (r *SnapshotRepository) RecentMarketValues(ctx context.Context, portfolioID string, upTo time.Time, n int) ([]DatedValue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT as_of_date, (body->'market'->>'total_market_value')::float8
		FROM risk.snapshots
		WHERE portfolio_id = $1 AND as_of_date <= $2 AND body->'market' IS NOT NULL
		ORDER BY as_of_date DESC
		LIMIT $3
	`, portfolioID, upTo, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query market values: %w", err)
	}
	defer rows.Close()

	var values []DatedValue
	for rows.Next() {
		var v DatedValue
		if err := rows.Scan(&v.Date, &v.Value); err != nil {
			return nil, fmt.Errorf("failed to scan market value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// 최신순으로 읽었으니 뒤집기
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
	return values, nil
}

// AcknowledgeAlert marks an alert acknowledged. Engine never calls this.
func (r *SnapshotRepository) AcknowledgeAlert(ctx context.Context, portfolioID string, asOf time.Time, metric string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE risk.alerts SET acknowledged = true
		WHERE portfolio_id = $1 AND as_of_date = $2 AND metric = $3
	`, portfolioID, asOf, metric)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
