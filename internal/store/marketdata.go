package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valmeris/atlas/internal/risk"
)

// MarketDataRepository assembles the end-of-day market data snapshot.
// ⭐ SSOT: 시장데이터 조회는 여기서만
type MarketDataRepository struct {
	pool *pgxpool.Pool
}

// NewMarketDataRepository creates a new market data repository
func NewMarketDataRepository(pool *pgxpool.Pool) *MarketDataRepository {
	return &MarketDataRepository{pool: pool}
}

// GetSnapshot loads quotes, curves, surfaces, FX rates and CDS spreads
// for one business date into an in-memory snapshot. The content hash
// computed by the engine is the snapshot's identity; nothing here is
// mutated afterwards.
func (r *MarketDataRepository) GetSnapshot(ctx context.Context, asOf time.Time) (*risk.MarketDataSnapshot, error) {
	snap := &risk.MarketDataSnapshot{
		AsOfDate:   asOf,
		Quotes:     make(map[string]risk.Quote),
		Curves:     make(map[string]risk.YieldCurve),
		Surfaces:   make(map[string]risk.VolSurface),
		FxRates:    make(map[string]float64),
		CdsSpreads: make(map[string]float64),
	}

	if err := r.loadQuotes(ctx, asOf, snap); err != nil {
		return nil, err
	}
	if err := r.loadCurves(ctx, asOf, snap); err != nil {
		return nil, err
	}
	if err := r.loadSurfaces(ctx, asOf, snap); err != nil {
		return nil, err
	}
	if err := r.loadFxRates(ctx, asOf, snap); err != nil {
		return nil, err
	}
	if err := r.loadCdsSpreads(ctx, asOf, snap); err != nil {
		return nil, err
	}

	err := r.pool.QueryRow(ctx,
		"SELECT value FROM risk.index_levels WHERE name = 'VIX' AND as_of_date = $1",
		asOf).Scan(&snap.VIX)
	if err != nil {
		// VIX 없으면 0: 레짐 판정은 Normal로 떨어짐
		snap.VIX = 0
	}

	return snap, nil
}

func (r *MarketDataRepository) loadQuotes(ctx context.Context, asOf time.Time, snap *risk.MarketDataSnapshot) error {
	rows, err := r.pool.Query(ctx, `
		SELECT isin, clean_price, prev_close, COALESCE(yield, 0), COALESCE(spread_bps, 0),
		       bid, ask, volume, days_since_trade
		FROM risk.market_quotes
		WHERE as_of_date = $1
	`, asOf)
	if err != nil {
		return fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var isin string
		var q risk.Quote
		if err := rows.Scan(&isin, &q.CleanPrice, &q.PrevClose, &q.Yield, &q.SpreadBps,
			&q.Bid, &q.Ask, &q.Volume, &q.DaysSinceTrade); err != nil {
			return fmt.Errorf("failed to scan quote: %w", err)
		}
		snap.Quotes[isin] = q
	}
	return rows.Err()
}

func (r *MarketDataRepository) loadCurves(ctx context.Context, asOf time.Time, snap *risk.MarketDataSnapshot) error {
	rows, err := r.pool.Query(ctx, `
		SELECT currency, tenor_years, rate
		FROM risk.yield_curves
		WHERE as_of_date = $1
		ORDER BY currency, tenor_years
	`, asOf)
	if err != nil {
		return fmt.Errorf("failed to query curves: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var currency string
		var tenor, rate float64
		if err := rows.Scan(&currency, &tenor, &rate); err != nil {
			return fmt.Errorf("failed to scan curve point: %w", err)
		}
		curve := snap.Curves[currency]
		curve.Currency = currency
		curve.Tenors = append(curve.Tenors, tenor)
		curve.Rates = append(curve.Rates, rate)
		snap.Curves[currency] = curve
	}
	return rows.Err()
}

func (r *MarketDataRepository) loadSurfaces(ctx context.Context, asOf time.Time, snap *risk.MarketDataSnapshot) error {
	// 테너/행사가 그리드는 (underlying, tenor, strike) 행으로 저장됨
	rows, err := r.pool.Query(ctx, `
		SELECT underlying, tenor_years, strike, vol
		FROM risk.vol_surfaces
		WHERE as_of_date = $1
		ORDER BY underlying, tenor_years, strike
	`, asOf)
	if err != nil {
		return fmt.Errorf("failed to query vol surfaces: %w", err)
	}
	defer rows.Close()

	type point struct{ tenor, strike, vol float64 }
	byUnderlying := make(map[string][]point)
	var order []string
	for rows.Next() {
		var u string
		var p point
		if err := rows.Scan(&u, &p.tenor, &p.strike, &p.vol); err != nil {
			return fmt.Errorf("failed to scan vol point: %w", err)
		}
		if _, seen := byUnderlying[u]; !seen {
			order = append(order, u)
		}
		byUnderlying[u] = append(byUnderlying[u], p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range order {
		points := byUnderlying[u]
		surface := risk.VolSurface{Underlying: u}
		for _, p := range points {
			if n := len(surface.Tenors); n == 0 || surface.Tenors[n-1] != p.tenor {
				surface.Tenors = append(surface.Tenors, p.tenor)
				surface.Vols = append(surface.Vols, nil)
			}
			if len(surface.Vols) == 1 {
				surface.Strikes = append(surface.Strikes, p.strike)
			}
			last := len(surface.Vols) - 1
			surface.Vols[last] = append(surface.Vols[last], p.vol)
		}
		snap.Surfaces[u] = surface
	}
	return nil
}

func (r *MarketDataRepository) loadFxRates(ctx context.Context, asOf time.Time, snap *risk.MarketDataSnapshot) error {
	rows, err := r.pool.Query(ctx, `
		SELECT pair, rate FROM risk.fx_rates WHERE as_of_date = $1
	`, asOf)
	if err != nil {
		return fmt.Errorf("failed to query fx rates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pair string
		var rate float64
		if err := rows.Scan(&pair, &rate); err != nil {
			return fmt.Errorf("failed to scan fx rate: %w", err)
		}
		snap.FxRates[pair] = rate
	}
	return rows.Err()
}

func (r *MarketDataRepository) loadCdsSpreads(ctx context.Context, asOf time.Time, snap *risk.MarketDataSnapshot) error {
	rows, err := r.pool.Query(ctx, `
		SELECT entity_id, spread FROM risk.cds_spreads WHERE as_of_date = $1
	`, asOf)
	if err != nil {
		return fmt.Errorf("failed to query cds spreads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entity string
		var spread float64
		if err := rows.Scan(&entity, &spread); err != nil {
			return fmt.Errorf("failed to scan cds spread: %w", err)
		}
		snap.CdsSpreads[entity] = spread
	}
	return rows.Err()
}
