package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineFixture(t *testing.T) (*Engine, ComputeInput) {
	t.Helper()
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	bond := Position{
		ID: "POS-BOND", PortfolioID: "PF-1", Kind: KindBond, Currency: "EUR",
		Notional: 1_000_000, ISIN: "XS1", Coupon: 0.04, CouponFreq: 1,
		DayCount: Act365, IssuerID: "ISS-1",
		TradeDate: asOf.AddDate(-2, 0, 0), Maturity: asOf.AddDate(0, 0, 4*365),
	}
	forward := Position{
		ID: "POS-FWD", PortfolioID: "PF-1", Kind: KindFxForward, Currency: "USD",
		Notional: 500_000, Underlying: "EURUSD", Direction: Long, Strike: 1.12,
		CounterpartyID: "CPTY-1",
		TradeDate:      asOf.AddDate(0, -3, 0), Maturity: asOf.AddDate(1, 0, 0),
	}

	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Quotes:   map[string]Quote{"XS1": {CleanPrice: 98.5, PrevClose: 98.4, Bid: 98.4, Ask: 98.6, Volume: 2000}},
		Curves: map[string]YieldCurve{
			"EUR": {Currency: "EUR", Tenors: []float64{0.25, 1, 5, 10}, Rates: []float64{0.020, 0.022, 0.026, 0.028}},
			"USD": {Currency: "USD", Tenors: []float64{0.25, 1, 5, 10}, Rates: []float64{0.045, 0.044, 0.042, 0.041}},
		},
		Surfaces: map[string]VolSurface{
			"EURUSD": {Underlying: "EURUSD", Tenors: []float64{0.5, 1, 2}, Strikes: []float64{1.0, 1.1, 1.2},
				Vols: [][]float64{{0.10, 0.09, 0.10}, {0.11, 0.10, 0.11}, {0.12, 0.11, 0.12}}},
		},
		FxRates: map[string]float64{"EURUSD": 1.10, "USDEUR": 1 / 1.10},
		VIX:     18,
	}

	history := make([]PnLPoint, 0, 330)
	for i := 0; i < 250; i++ {
		history = append(history, PnLPoint{Date: asOf.AddDate(0, 0, -i-1), PnL: float64((i % 41) - 20)})
	}
	// 스트레스 윈도우(2008-09 ~ 2009-03) 관측치
	stressStart := time.Date(2008, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 80; i++ {
		history = append(history, PnLPoint{Date: stressStart.AddDate(0, 0, i), PnL: float64(-(i % 30) * 5)})
	}

	cfg := DefaultConfig()
	cfg.Parallelism = 4
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	in := ComputeInput{
		Portfolio: Portfolio{ID: "PF-1", Name: "Bond Dealer Book", Type: PortfolioBondDealer, BaseCurrency: "EUR", Active: true},
		Positions: []Position{bond, forward},
		Counterparties: []Counterparty{
			{ID: "CPTY-1", Name: "Dealer A", ExternalRating: "A", ISDANetting: true, CollateralHeld: 1000},
		},
		Issuers: []Issuer{
			{ID: "ISS-1", Name: "Sovereign X", Country: "DE", Sector: "SOVEREIGN", Rating: "AA", Seniority: "SENIOR_UNSECURED"},
		},
		MarketData: snap,
		Limits: []Limit{
			{PortfolioID: "PF-1", Metric: "VAR_1D_95", Value: 100, Warning: 0.7, Critical: 0.9},
		},
		PnLHistory: history,
		Funding:    FundingProfile{Cash: 50_000, Outflows: []FundingEntry{{Class: "DEBT_MATURING", Amount: 100_000}}, Inflows: 20_000},
		Capital:    CapitalInput{Tier1: 2_000_000, Tier2: 300_000, ClientMoneyHeldAvg: 1_000_000},
		Scenarios:  []string{"IR-01", "FX-01"},
	}
	return engine, in
}

func TestComputeSnapshotSuccess(t *testing.T) {
	engine, in := engineFixture(t)

	s, err := engine.ComputeSnapshot(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, s.Status)
	assert.Equal(t, "PF-1", s.PortfolioID)
	assert.Equal(t, EngineVersion, s.EngineVersion)
	assert.NotEmpty(t, s.MarketDataSnapshotID)
	assert.Empty(t, s.Unpriced)

	require.NotNil(t, s.Market)
	assert.Greater(t, s.Market.TotalMarketValue, 0.0)
	assert.Greater(t, s.Market.Var1d95, 0.0)
	assert.Greater(t, s.Market.DV01Total, 0.0)
	assert.Greater(t, s.Market.Duration, 0.0)

	require.NotNil(t, s.Credit)
	assert.Greater(t, s.Credit.TotalExposure, 0.0)
	assert.Greater(t, s.Credit.ExpectedLoss, 0.0)

	require.NotNil(t, s.CCR)
	require.Len(t, s.CCR.ByCounterparty, 1)
	require.NotNil(t, s.Liquidity)
	require.NotNil(t, s.Capital)
	assert.Greater(t, s.Capital.CapitalRatio, 1.0)
	require.NotNil(t, s.Concentration)
	assert.Len(t, s.Stress, 2)

	t.Logf("snapshot: mv=%.2f var=%.2f ratio=%.3f status=%s",
		s.Market.TotalMarketValue, s.Market.Var1d95, s.Capital.CapitalRatio, s.Status)
}

func TestComputeSnapshotDeterministic(t *testing.T) {
	engine, in := engineFixture(t)

	a, err := engine.ComputeSnapshot(context.Background(), in)
	require.NoError(t, err)
	b, err := engine.ComputeSnapshot(context.Background(), in)
	require.NoError(t, err)

	// CalculatedAt 외 모든 산출물은 재현 가능해야 함
	assert.Equal(t, a.MarketDataSnapshotID, b.MarketDataSnapshotID)
	assert.InDelta(t, a.Market.TotalMarketValue, b.Market.TotalMarketValue, 1e-9)
	assert.InDelta(t, a.Market.Var1d95, b.Market.Var1d95, 1e-9)
	assert.InDelta(t, a.Market.DV01Total, b.Market.DV01Total, 1e-9)
	assert.InDelta(t, a.Credit.ExpectedLoss, b.Credit.ExpectedLoss, 1e-9)
	assert.InDelta(t, a.CCR.EADTotal, b.CCR.EADTotal, 1e-9)
	assert.InDelta(t, a.Liquidity.LCRRatio, b.Liquidity.LCRRatio, 1e-9)
	assert.InDelta(t, a.Capital.CapitalRatio, b.Capital.CapitalRatio, 1e-9)
	require.Equal(t, len(a.Stress), len(b.Stress))
	for i := range a.Stress {
		assert.InDelta(t, a.Stress[i].PnL, b.Stress[i].PnL, 1e-9)
	}
}

func TestComputeSnapshotFailedOnMissingISIN(t *testing.T) {
	engine, in := engineFixture(t)
	delete(in.MarketData.Quotes, "XS1")

	s, err := engine.ComputeSnapshot(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Contains(t, s.ErrorMessage, "missing market data")
	assert.Nil(t, s.Market)
}

func TestComputeSnapshotPartialOnBadQuote(t *testing.T) {
	engine, in := engineFixture(t)
	q := in.MarketData.Quotes["XS1"]
	q.CleanPrice = 0 // DQ-02 Error
	in.MarketData.Quotes["XS1"] = q

	s, err := engine.ComputeSnapshot(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, s.Status)
	assert.Contains(t, s.Unpriced, "POS-BOND")
	require.NotNil(t, s.Market, "remaining positions still aggregate")
}

func TestComputeSnapshotPartialOnNegativeNotional(t *testing.T) {
	engine, in := engineFixture(t)
	in.Positions[1].Notional = -500_000

	s, err := engine.ComputeSnapshot(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, s.Status)
	assert.Contains(t, s.Unpriced, "POS-FWD")
	require.NotNil(t, s.CCR)
	assert.Empty(t, s.CCR.ByCounterparty, "rejected trade never reaches exposure")
}

func TestComputeSnapshotPartialOnShortHistory(t *testing.T) {
	engine, in := engineFixture(t)
	in.PnLHistory = in.PnLHistory[:10]

	s, err := engine.ComputeSnapshot(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, s.Status)
	assert.Nil(t, s.Market)
	assert.Contains(t, s.ErrorMessage, "insufficient pnl history")
	require.NotNil(t, s.Capital, "downstream blocks still computed")
}

func TestComputeSnapshotCancelled(t *testing.T) {
	engine, in := engineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.ComputeSnapshot(ctx, in)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestComputeSnapshotDeadline(t *testing.T) {
	engine, in := engineFixture(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := engine.ComputeSnapshot(ctx, in)
	assert.ErrorIs(t, err, ErrDeadlineExceeded)
}

func TestEmptyPortfolio(t *testing.T) {
	engine, in := engineFixture(t)
	in.Positions = nil
	in.Funding = FundingProfile{}
	in.Capital = CapitalInput{Tier1: 100_000}

	s, err := engine.ComputeSnapshot(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, s.Market)
	assert.Zero(t, s.Market.TotalMarketValue)
	assert.Zero(t, s.Market.DV01Total)
	require.NotNil(t, s.Liquidity)
	assert.True(t, s.Liquidity.LCRInfinite, "zero net outflows flag the LCR sentinel")
	require.NotNil(t, s.Capital)
	assert.InDelta(t, 75_000, s.Capital.RequiredCap, 1e-9, "PMC floor on an empty book")
}

func TestEvaluateDQOperation(t *testing.T) {
	engine, in := engineFixture(t)
	issues, err := engine.EvaluateDQ(in.MarketData, in.Positions, in.Issuers, "EUR", time.Now())
	require.NoError(t, err)
	assert.Empty(t, issues, "clean fixture has no issues")
}

func TestStoredFormRounding(t *testing.T) {
	engine, in := engineFixture(t)
	s, err := engine.ComputeSnapshot(context.Background(), in)
	require.NoError(t, err)

	stored := s.StoredForm()
	cents := stored.Market.TotalMarketValue * 100
	assert.InDelta(t, cents, float64(int64(cents+0.5)), 1e-6, "currency stored at 2dp")
	// 원본은 풀 정밀도 유지
	assert.Equal(t, s.Market.TotalMarketValue, s.Market.TotalMarketValue)

	data, err := s.MarshalStored()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"portfolio_id\":\"PF-1\"")
}
