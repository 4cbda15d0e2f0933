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

// PortfolioRepository loads engine inputs from the database.
// The engine itself performs no I/O; everything it needs is fetched here
// and handed over as one immutable bundle.
// ⭐ SSOT: 포트폴리오/포지션/참조데이터 조회는 여기서만
type PortfolioRepository struct {
	pool *pgxpool.Pool
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(pool *pgxpool.Pool) *PortfolioRepository {
	return &PortfolioRepository{pool: pool}
}

// GetActivePortfolios returns all portfolios included in the nightly batch
func (r *PortfolioRepository) GetActivePortfolios(ctx context.Context) ([]risk.Portfolio, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, base_currency, active
		FROM risk.portfolios
		WHERE active = true
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []risk.Portfolio
	for rows.Next() {
		var p risk.Portfolio
		var ptype string
		if err := rows.Scan(&p.ID, &p.Name, &ptype, &p.BaseCurrency, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		p.Type = risk.PortfolioType(ptype)
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

// GetPortfolio returns one portfolio by ID
func (r *PortfolioRepository) GetPortfolio(ctx context.Context, id string) (*risk.Portfolio, error) {
	var p risk.Portfolio
	var ptype string
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, type, base_currency, active
		FROM risk.portfolios WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &ptype, &p.BaseCurrency, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio: %w", err)
	}
	p.Type = risk.PortfolioType(ptype)
	return &p, nil
}

// GetPositions returns all open positions of a portfolio as of a date
func (r *PortfolioRepository) GetPositions(ctx context.Context, portfolioID string, asOf time.Time) ([]risk.Position, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, portfolio_id, kind, currency, notional, trade_date, maturity_date,
		       COALESCE(isin, ''), COALESCE(coupon, 0), COALESCE(coupon_freq, 0),
		       COALESCE(day_count, ''), COALESCE(issuer_id, ''),
		       COALESCE(underlying, ''), COALESCE(direction, ''), COALESCE(strike, 0),
		       COALESCE(option_type, ''), COALESCE(counterparty_id, ''),
		       COALESCE(fixed_rate, 0), COALESCE(premium_paid, 0), COALESCE(swap_tenor_years, 0)
		FROM risk.positions
		WHERE portfolio_id = $1 AND trade_date <= $2 AND maturity_date > $2
		ORDER BY id
	`, portfolioID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []risk.Position
	for rows.Next() {
		var p risk.Position
		var kind, dayCount, direction, optionType string
		if err := rows.Scan(&p.ID, &p.PortfolioID, &kind, &p.Currency, &p.Notional,
			&p.TradeDate, &p.Maturity,
			&p.ISIN, &p.Coupon, &p.CouponFreq, &dayCount, &p.IssuerID,
			&p.Underlying, &direction, &p.Strike, &optionType, &p.CounterpartyID,
			&p.FixedRate, &p.PremiumPaid, &p.SwapTenorYears); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.Kind = risk.InstrumentKind(kind)
		p.DayCount = risk.DayCount(dayCount)
		p.Direction = risk.Direction(direction)
		p.OptionType = risk.OptionType(optionType)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetCounterparties returns counterparty reference data including CSA terms
func (r *PortfolioRepository) GetCounterparties(ctx context.Context) ([]risk.Counterparty, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(country, ''), COALESCE(external_rating, ''),
		       COALESCE(internal_rating, ''), isda_netting,
		       COALESCE(collateral_held, 0), COALESCE(csa_threshold, 0), COALESCE(min_transfer, 0)
		FROM risk.counterparties
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query counterparties: %w", err)
	}
	defer rows.Close()

	var cptys []risk.Counterparty
	for rows.Next() {
		var c risk.Counterparty
		if err := rows.Scan(&c.ID, &c.Name, &c.Country, &c.ExternalRating, &c.InternalRating,
			&c.ISDANetting, &c.CollateralHeld, &c.CSAThreshold, &c.MinTransfer); err != nil {
			return nil, fmt.Errorf("failed to scan counterparty: %w", err)
		}
		cptys = append(cptys, c)
	}
	return cptys, rows.Err()
}

// GetIssuers returns issuer reference data
func (r *PortfolioRepository) GetIssuers(ctx context.Context) ([]risk.Issuer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(country, ''), COALESCE(sector, ''),
		       COALESCE(rating, ''), COALESCE(seniority, '')
		FROM risk.issuers
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query issuers: %w", err)
	}
	defer rows.Close()

	var issuers []risk.Issuer
	for rows.Next() {
		var i risk.Issuer
		if err := rows.Scan(&i.ID, &i.Name, &i.Country, &i.Sector, &i.Rating, &i.Seniority); err != nil {
			return nil, fmt.Errorf("failed to scan issuer: %w", err)
		}
		issuers = append(issuers, i)
	}
	return issuers, rows.Err()
}

// GetLimits returns the configured limits of a portfolio
func (r *PortfolioRepository) GetLimits(ctx context.Context, portfolioID string) ([]risk.Limit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT portfolio_id, metric, value, warning, critical
		FROM risk.limits
		WHERE portfolio_id = $1
		ORDER BY metric
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query limits: %w", err)
	}
	defer rows.Close()

	var limits []risk.Limit
	for rows.Next() {
		var l risk.Limit
		if err := rows.Scan(&l.PortfolioID, &l.Metric, &l.Value, &l.Warning, &l.Critical); err != nil {
			return nil, fmt.Errorf("failed to scan limit: %w", err)
		}
		limits = append(limits, l)
	}
	return limits, rows.Err()
}

// UpsertLimit creates or replaces a limit
func (r *PortfolioRepository) UpsertLimit(ctx context.Context, l risk.Limit) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO risk.limits (portfolio_id, metric, value, warning, critical)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (portfolio_id, metric) DO UPDATE SET
			value = EXCLUDED.value,
			warning = EXCLUDED.warning,
			critical = EXCLUDED.critical
	`, l.PortfolioID, l.Metric, l.Value, l.Warning, l.Critical)
	if err != nil {
		return fmt.Errorf("failed to upsert limit: %w", err)
	}
	return nil
}

// GetPnLHistory returns realized daily P&L up to and including asOf.
// The stressed VaR window sits far in the past, so no lower bound here.
func (r *PortfolioRepository) GetPnLHistory(ctx context.Context, portfolioID string, asOf time.Time) ([]risk.PnLPoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date, pnl
		FROM risk.pnl_history
		WHERE portfolio_id = $1 AND date <= $2
		ORDER BY date
	`, portfolioID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query pnl history: %w", err)
	}
	defer rows.Close()

	var history []risk.PnLPoint
	for rows.Next() {
		var p risk.PnLPoint
		if err := rows.Scan(&p.Date, &p.PnL); err != nil {
			return nil, fmt.Errorf("failed to scan pnl point: %w", err)
		}
		history = append(history, p)
	}
	return history, rows.Err()
}

// SavePnL records one realized daily P&L observation
func (r *PortfolioRepository) SavePnL(ctx context.Context, portfolioID string, p risk.PnLPoint) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO risk.pnl_history (portfolio_id, date, pnl)
		VALUES ($1, $2, $3)
		ON CONFLICT (portfolio_id, date) DO UPDATE SET pnl = EXCLUDED.pnl
	`, portfolioID, p.Date, p.PnL)
	if err != nil {
		return fmt.Errorf("failed to save pnl: %w", err)
	}
	return nil
}

// GetFundingProfile returns the liquidity inputs for a portfolio and date
func (r *PortfolioRepository) GetFundingProfile(ctx context.Context, portfolioID string, asOf time.Time) (risk.FundingProfile, error) {
	var fp risk.FundingProfile
	err := r.pool.QueryRow(ctx, `
		SELECT cash, inflows_30d
		FROM risk.funding_profiles
		WHERE portfolio_id = $1 AND as_of_date = $2
	`, portfolioID, asOf).Scan(&fp.Cash, &fp.Inflows)
	if errors.Is(err, pgx.ErrNoRows) {
		// 펀딩 데이터 없음: 빈 프로필로 계산 (LCR 센티널 경로)
		return risk.FundingProfile{}, nil
	}
	if err != nil {
		return fp, fmt.Errorf("failed to query funding profile: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT class, amount
		FROM risk.funding_outflows
		WHERE portfolio_id = $1 AND as_of_date = $2
		ORDER BY class
	`, portfolioID, asOf)
	if err != nil {
		return fp, fmt.Errorf("failed to query funding outflows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e risk.FundingEntry
		if err := rows.Scan(&e.Class, &e.Amount); err != nil {
			return fp, fmt.Errorf("failed to scan funding outflow: %w", err)
		}
		fp.Outflows = append(fp.Outflows, e)
	}
	if err := rows.Err(); err != nil {
		return fp, err
	}

	bucketRows, err := r.pool.Query(ctx, `
		SELECT bucket, assets, liabilities
		FROM risk.funding_buckets
		WHERE portfolio_id = $1 AND as_of_date = $2
		ORDER BY bucket
	`, portfolioID, asOf)
	if err != nil {
		return fp, fmt.Errorf("failed to query funding buckets: %w", err)
	}
	defer bucketRows.Close()
	for bucketRows.Next() {
		var bucket string
		var assets, liabilities float64
		if err := bucketRows.Scan(&bucket, &assets, &liabilities); err != nil {
			return fp, fmt.Errorf("failed to scan funding bucket: %w", err)
		}
		if fp.AssetsByBucket == nil {
			fp.AssetsByBucket = make(map[string]float64)
			fp.LiabilitiesByBucket = make(map[string]float64)
		}
		fp.AssetsByBucket[bucket] = assets
		fp.LiabilitiesByBucket[bucket] = liabilities
	}
	return fp, bucketRows.Err()
}

// GetCapitalInput returns the firm-level capital inputs.
// These are firm-wide, not per portfolio.
func (r *PortfolioRepository) GetCapitalInput(ctx context.Context, asOf time.Time) (risk.CapitalInput, error) {
	var ci risk.CapitalInput
	err := r.pool.QueryRow(ctx, `
		SELECT aum_avg, client_money_held_avg, client_money_guaranteed,
		       client_order_volume_annual, tier1, tier2
		FROM risk.capital_inputs
		WHERE as_of_date <= $1
		ORDER BY as_of_date DESC
		LIMIT 1
	`, asOf).Scan(&ci.AUMAvg, &ci.ClientMoneyHeldAvg, &ci.ClientMoneyGuaranteed,
		&ci.ClientOrderVolume, &ci.Tier1, &ci.Tier2)
	if errors.Is(err, pgx.ErrNoRows) {
		return risk.CapitalInput{}, ErrNotFound
	}
	if err != nil {
		return ci, fmt.Errorf("failed to query capital input: %w", err)
	}
	return ci, nil
}
