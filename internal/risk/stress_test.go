package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stressFixture(t *testing.T) (*stressContext, BondAnalytics) {
	t.Helper()
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	pos := zeroCouponBond(1_000_000, asOf, 5)

	base, err := AnalyzeBondAtYield(&pos, asOf, 0.05)
	require.NoError(t, err)

	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Quotes:   map[string]Quote{pos.ISIN: {CleanPrice: base.CleanValue / pos.Notional * 100}},
		Curves: map[string]YieldCurve{
			"EUR": {Currency: "EUR", Tenors: []float64{1, 5, 10}, Rates: []float64{0.03, 0.05, 0.055}},
		},
	}
	view, err := NewMarketView(snap, []Position{pos})
	require.NoError(t, err)

	priced := []PricedPosition{{Position: &pos, MV: base.MarketValue, Bond: &base}}
	issuers := map[string]Issuer{"": {Rating: "AA", Sector: "SOVEREIGN"}}
	cfg := DefaultConfig()

	ctx := &stressContext{
		asOf:          asOf,
		portfolio:     Portfolio{ID: "PF-1", BaseCurrency: "EUR"},
		view:          view,
		priced:        priced,
		issuers:       issuers,
		funding:       FundingProfile{Cash: 1000, Outflows: []FundingEntry{{Class: "DEBT_MATURING", Amount: 500}}},
		cfg:           cfg,
		pnlWindow:     arithmeticPnL(),
		baseVar:       88,
		baseCapital:   ComputeCapital(priced, issuers, Portfolio{BaseCurrency: "EUR"}, CapitalInput{Tier1: 1_000_000}, cfg),
		baseLiquidity: ComputeLiquidity(priced, issuers, view, FundingProfile{Cash: 1000, Outflows: []FundingEntry{{Class: "DEBT_MATURING", Amount: 500}}}, cfg),
	}
	return ctx, base
}

func TestParallelRateShockApproximatesDuration(t *testing.T) {
	ctx, base := stressFixture(t)
	sc, ok := ScenarioByCode("IR-01")
	require.True(t, ok)
	sc.SpreadIGBp = 0 // 금리 충격만 분리

	result, err := RunScenario(sc, ctx)
	require.NoError(t, err)

	// ΔMV ≈ -ModDur * MV * 0.02, 볼록성 보정 범위 내
	firstOrder := -base.Modified * base.MarketValue * 0.02
	assert.InDelta(t, firstOrder, result.PnL, math.Abs(firstOrder)*0.10)
	assert.Less(t, result.PnL, 0.0, "rates up, long bond down")
	assert.NotZero(t, result.DeltaKNPR+result.DeltaCapitalRatio, "capital must recompute under shock")

	require.NotEmpty(t, result.TopContributors)
	assert.Equal(t, "BOND-ZC", result.TopContributors[0].PositionID)
	assert.InDelta(t, result.PnL, result.TopContributors[0].DeltaMV, 1e-6)
}

func TestOppositeRateShocksHaveOppositeSigns(t *testing.T) {
	ctx, _ := stressFixture(t)

	up, err := RunScenario(Scenario{Code: "IR-01", CurveShiftBp: 200}, ctx)
	require.NoError(t, err)
	down, err := RunScenario(Scenario{Code: "IR-02", CurveShiftBp: -200}, ctx)
	require.NoError(t, err)

	assert.Less(t, up.PnL, 0.0)
	assert.Greater(t, down.PnL, 0.0)
	// 볼록성: 금리 하락 이익이 상승 손실보다 큼
	assert.Greater(t, down.PnL, -up.PnL)
}

func TestCreditSpreadShockHitsHYHarder(t *testing.T) {
	ctx, _ := stressFixture(t)
	sc := Scenario{Code: "CS-01", SpreadIGBp: 100, SpreadHYBp: 300}

	igResult, err := RunScenario(sc, ctx)
	require.NoError(t, err)

	ctx.issuers = map[string]Issuer{"": {Rating: "B", Sector: "CORPORATE"}}
	hyResult, err := RunScenario(sc, ctx)
	require.NoError(t, err)

	assert.Less(t, hyResult.PnL, igResult.PnL, "HY widening 3x must lose more")
}

func TestLiquidityScenarioRaisesOutflows(t *testing.T) {
	ctx, _ := stressFixture(t)
	sc, ok := ScenarioByCode("LIQ-01")
	require.True(t, ok)

	result, err := RunScenario(sc, ctx)
	require.NoError(t, err)
	assert.Less(t, result.DeltaLCR, 0.0, "outflow multiplier must reduce LCR")
	assert.InDelta(t, 0.0, result.PnL, 1e-6, "pure liquidity shock leaves MV unchanged")
}

func TestApplyScenarioImmutable(t *testing.T) {
	snap := sampleSnapshot()
	before := snap.ContentHash()

	shocked := ApplyScenario(snap, Scenario{CurveShiftBp: 200, VolMultiplier: 2, FxShock: map[string]float64{"USD": 0.1}})
	assert.Equal(t, before, snap.ContentHash(), "input snapshot must not be mutated")
	assert.NotEqual(t, before, shocked.ContentHash())

	// 커브 +200bp 확인
	assert.InDelta(t, snap.Curves["EUR"].Rates[0]+0.02, shocked.Curves["EUR"].Rates[0], 1e-12)
}

func TestCatalogueCodesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, sc := range Catalogue() {
		assert.False(t, seen[sc.Code], "duplicate scenario code %s", sc.Code)
		assert.NotEmpty(t, sc.Description)
		seen[sc.Code] = true
	}
	_, ok := ScenarioByCode("IR-01")
	assert.True(t, ok)
	_, ok = ScenarioByCode("NOPE")
	assert.False(t, ok)
}
