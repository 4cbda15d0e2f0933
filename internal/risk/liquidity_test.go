package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyView(t *testing.T) *MarketView {
	t.Helper()
	view, err := NewMarketView(&MarketDataSnapshot{
		AsOfDate: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}, nil)
	require.NoError(t, err)
	return view
}

func TestLCRBands(t *testing.T) {
	cfg := DefaultConfig()
	view := emptyView(t)

	// HQLA 1000 (전액 L1 현금), 유출 950, 유입 800 → 상한 712.5, 순유출 237.5
	funding := FundingProfile{
		Cash:     1000,
		Outflows: []FundingEntry{{Class: "DEBT_MATURING", Amount: 950}},
		Inflows:  800,
	}
	block := ComputeLiquidity(nil, nil, view, funding, cfg)
	assert.InDelta(t, 1000, block.HQLA, 1e-9)
	assert.InDelta(t, 950, block.Outflows30d, 1e-9)
	assert.InDelta(t, 712.5, block.Inflows30dCapped, 1e-9)
	assert.InDelta(t, 237.5, block.NetOutflows30d, 1e-9)
	assert.InDelta(t, 4.21, block.LCRRatio, 0.01)
	assert.Equal(t, SeverityGreen, lcrFloorSeverity(block.LCRRatio))

	// 유출 1050, 유입 0 → LCR = 1000/1050 = 0.95 → Critical
	funding = FundingProfile{Cash: 1000, Outflows: []FundingEntry{{Class: "DEBT_MATURING", Amount: 1050}}}
	block = ComputeLiquidity(nil, nil, view, funding, cfg)
	assert.InDelta(t, 0.952, block.LCRRatio, 0.001)
	assert.Equal(t, SeverityCritical, lcrFloorSeverity(block.LCRRatio))
}

func TestLCRInfiniteSentinel(t *testing.T) {
	cfg := DefaultConfig()
	block := ComputeLiquidity(nil, nil, emptyView(t), FundingProfile{Cash: 500}, cfg)
	assert.True(t, block.LCRInfinite)
}

func TestLCRMonotoneInLevel1(t *testing.T) {
	cfg := DefaultConfig()
	view := emptyView(t)
	funding := FundingProfile{Cash: 1000, Outflows: []FundingEntry{{Class: "WHOLESALE_UNSECURED", Amount: 2000}}}

	base := ComputeLiquidity(nil, nil, view, funding, cfg)
	funding.Cash = 1200
	more := ComputeLiquidity(nil, nil, view, funding, cfg)
	assert.Greater(t, more.LCRRatio, base.LCRRatio, "more Level 1 never decreases LCR")
}

func TestHQLACompositionCaps(t *testing.T) {
	// L1 100에 대해 L2A는 2/3까지만 인정
	h := hqlaBuckets{level1: 100, level2A: 500, level2B: 0}
	total := h.applyCaps(0.40, 0.15)
	assert.InDelta(t, 100+100*0.4/0.6, total, 1e-9)

	// L2B는 L1+L2A' 스택 대비 15/85
	h = hqlaBuckets{level1: 100, level2A: 0, level2B: 500}
	total = h.applyCaps(0.40, 0.15)
	assert.InDelta(t, 100+100*0.15/0.85, total, 1e-9)
}

func TestRunOffRates(t *testing.T) {
	cfg := DefaultConfig()
	view := emptyView(t)
	funding := FundingProfile{
		Cash: 10_000,
		Outflows: []FundingEntry{
			{Class: "RETAIL_STABLE", Amount: 1000},       // 5%
			{Class: "WHOLESALE_UNSECURED", Amount: 1000}, // 40%
			{Class: "UNKNOWN_CLASS", Amount: 100},        // 보수적 100%
		},
	}
	block := ComputeLiquidity(nil, nil, view, funding, cfg)
	assert.InDelta(t, 50+400+100, block.Outflows30d, 1e-9)
}

func TestLiquidationCostAndScore(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()

	pos := Position{
		ID: "BOND-1", Kind: KindBond, Currency: "EUR", Notional: 1_000_000,
		ISIN: "XS1", IssuerID: "ISS-1",
		TradeDate: asOf.AddDate(-1, 0, 0), Maturity: asOf.AddDate(3, 0, 0),
	}
	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Quotes:   map[string]Quote{"XS1": {CleanPrice: 99, Bid: 98.9, Ask: 99.1, Volume: 5_000}},
		Curves:   map[string]YieldCurve{"EUR": {Currency: "EUR", Tenors: []float64{1}, Rates: []float64{0.02}}},
	}
	view, err := NewMarketView(snap, []Position{pos})
	require.NoError(t, err)

	issuers := map[string]Issuer{"ISS-1": {ID: "ISS-1", Sector: "SOVEREIGN", Rating: "AA"}}
	priced := []PricedPosition{{Position: &pos, MV: 990_000, Bond: &BondAnalytics{TimeToMaturity: 3}}}

	funding := FundingProfile{Outflows: []FundingEntry{{Class: "DEBT_MATURING", Amount: 100_000}}}
	block := ComputeLiquidity(priced, issuers, view, funding, cfg)

	// AA 국채는 Level 1: HQLA 전액 인정, 점수 1.0
	assert.InDelta(t, 990_000, block.HQLA, 1e-6)
	assert.InDelta(t, 1.0, block.LiquidityScore, 1e-9)

	// qty = 10,000, ADV = 5,000: 1일 처분 x=2, 5일 분할 x=0.4
	qty := 10_000.0
	spread := 0.5 * 0.2 * qty
	assert.InDelta(t, spread*3, block.LiquidationCost1d, 1e-6)
	assert.InDelta(t, spread*1.4, block.LiquidationCost5d, 1e-6)
	assert.Less(t, block.LiquidationCost5d, block.LiquidationCost1d)
}

func TestFundingGap(t *testing.T) {
	cfg := DefaultConfig()
	funding := FundingProfile{
		Cash:                1000,
		Outflows:            []FundingEntry{{Class: "DEBT_MATURING", Amount: 500}},
		AssetsByBucket:      map[string]float64{"0-7d": 100, "7-30d": 200, "30-90d": 999},
		LiabilitiesByBucket: map[string]float64{"0-7d": 300, "7-30d": 250},
	}
	block := ComputeLiquidity(nil, nil, emptyView(t), funding, cfg)
	// (300-100) + (250-200); 30-90d 버킷은 단기 갭에 불포함
	assert.InDelta(t, 250, block.FundingGapShortTerm, 1e-9)
}
