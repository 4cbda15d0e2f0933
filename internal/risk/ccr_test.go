package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ccrTestView(t *testing.T, asOf time.Time) *MarketView {
	t.Helper()
	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Curves: map[string]YieldCurve{
			"EUR": {Currency: "EUR", Tenors: []float64{0.25, 1, 5, 10}, Rates: []float64{0.02, 0.022, 0.025, 0.027}},
		},
		FxRates: map[string]float64{"EURUSD": 1.10},
	}
	view, err := NewMarketView(snap, nil)
	require.NoError(t, err)
	return view
}

// fxForwardTrade builds a priced FX forward whose PFE add-on is exactly
// notional * 1% (majors CCF, 250 calendar days to maturity, normal regime)
func fxForwardTrade(id string, asOf time.Time, notional, mtm float64, dir Direction) PricedPosition {
	pos := &Position{
		ID:             id,
		Kind:           KindFxForward,
		Currency:       "EUR",
		Notional:       notional,
		Underlying:     "EURUSD",
		Direction:      dir,
		CounterpartyID: "CPTY-1",
		TradeDate:      asOf.AddDate(0, -1, 0),
		Maturity:       asOf.AddDate(0, 0, 250),
	}
	return PricedPosition{
		Position: pos,
		MV:       mtm,
		Deriv:    &DerivAnalytics{PositionID: id, MarketValue: mtm, TimeToMaturity: 250.0 / 365.0},
	}
}

func TestNettingAndCSA(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	view := ccrTestView(t, asOf)

	trades := []PricedPosition{
		fxForwardTrade("FX-1", asOf, 100_000, -10, Long),
		fxForwardTrade("FX-2", asOf, 100_000, -10, Short),
	}
	cptys := map[string]Counterparty{
		"CPTY-1": {
			ID:             "CPTY-1",
			ExternalRating: "A",
			ISDANetting:    true,
			CollateralHeld: 200,
			CSAThreshold:   100,
		},
	}

	block, err := ComputeCCR(trades, cptys, view, "EUR", RegimeNormal, asOf)
	require.NoError(t, err)
	require.Len(t, block.ByCounterparty, 1)
	exp := block.ByCounterparty[0]

	// 각 트레이드 PFE = 100,000 * 1% * sqrt(250/250) = 1,000
	assert.InDelta(t, 2000, exp.GrossPFE, 1e-9)
	assert.InDelta(t, math.Sqrt(2_000_000)*0.6, exp.NetPFE, 1e-9) // 848.53
	assert.InDelta(t, 848.53, exp.NetPFE, 0.01)
	assert.InDelta(t, 748.53, exp.AdjustedPFE, 0.01)

	// 순 MtM 음수: CE = 0, EAD = AdjPFE
	assert.Zero(t, exp.CurrentExposure)
	assert.InDelta(t, exp.AdjustedPFE, exp.EAD, 1e-9)
	assert.Greater(t, exp.CVA, 0.0)
}

func TestNettingReducesExposure(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	view := ccrTestView(t, asOf)

	trades := []PricedPosition{
		fxForwardTrade("FX-1", asOf, 100_000, 50, Long),
		fxForwardTrade("FX-2", asOf, 250_000, 30, Short),
		fxForwardTrade("FX-3", asOf, 80_000, -20, Long),
	}
	cptys := map[string]Counterparty{"CPTY-1": {ID: "CPTY-1", ExternalRating: "BBB", ISDANetting: true}}

	block, err := ComputeCCR(trades, cptys, view, "EUR", RegimeNormal, asOf)
	require.NoError(t, err)
	exp := block.ByCounterparty[0]
	assert.Less(t, exp.NetPFE, exp.GrossPFE, "netting must strictly reduce exposure")
}

func TestNoNettingSumsAddons(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	view := ccrTestView(t, asOf)

	trades := []PricedPosition{
		fxForwardTrade("FX-1", asOf, 100_000, 0, Long),
		fxForwardTrade("FX-2", asOf, 100_000, 0, Short),
	}
	cptys := map[string]Counterparty{"CPTY-1": {ID: "CPTY-1", ExternalRating: "A"}}

	block, err := ComputeCCR(trades, cptys, view, "EUR", RegimeNormal, asOf)
	require.NoError(t, err)
	exp := block.ByCounterparty[0]
	assert.InDelta(t, exp.GrossPFE, exp.NetPFE, 1e-9)
}

func TestVolRegimeMultiplier(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	trade := fxForwardTrade("FX-1", asOf, 100_000, 0, Long)

	normal := tradePFEAddon(trade, RegimeNormal, asOf)
	elevated := tradePFEAddon(trade, RegimeElevated, asOf)
	crisis := tradePFEAddon(trade, RegimeCrisis, asOf)

	assert.InDelta(t, normal*1.3, elevated, 1e-9)
	assert.InDelta(t, normal*1.5, crisis, 1e-9)
}

func TestLongOptionPFECappedAtPremium(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	pos := &Position{
		ID:          "OPT-1",
		Kind:        KindFxOption,
		Currency:    "EUR",
		Notional:    10_000_000,
		Underlying:  "EURUSD",
		Direction:   Long,
		OptionType:  Call,
		PremiumPaid: 5_000,
		Maturity:    asOf.AddDate(1, 0, 0),
	}
	pp := PricedPosition{Position: pos, MV: 5_000, Deriv: &DerivAnalytics{}}

	addon := tradePFEAddon(pp, RegimeCrisis, asOf)
	assert.InDelta(t, 5_000, addon, 1e-9, "long option PFE capped at premium paid")
}

func TestCVAUsesCdsWhenQuoted(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Curves: map[string]YieldCurve{
			"EUR": {Currency: "EUR", Tenors: []float64{1, 5}, Rates: []float64{0.02, 0.025}},
		},
		CdsSpreads: map[string]float64{"CPTY-1": 0.0200},
	}
	view, err := NewMarketView(snap, nil)
	require.NoError(t, err)

	trades := []PricedPosition{fxForwardTrade("FX-1", asOf, 100_000, 500, Long)}
	withCDS, err := counterpartyCVA(trades, Counterparty{ID: "CPTY-1", ExternalRating: "AAA"}, view, "EUR", 500, 1000, asOf)
	require.NoError(t, err)

	noCDSView, err := NewMarketView(&MarketDataSnapshot{AsOfDate: asOf, Curves: snap.Curves}, nil)
	require.NoError(t, err)
	withRating, err := counterpartyCVA(trades, Counterparty{ID: "CPTY-1", ExternalRating: "AAA"}, noCDSView, "EUR", 500, 1000, asOf)
	require.NoError(t, err)

	// 2% CDS 스프레드가 AAA 등급 테이블 PD보다 훨씬 큼
	assert.Greater(t, withCDS, withRating)
	assert.Greater(t, withRating, 0.0)
}

func TestCVAMissingDiscountCurve(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Curves: map[string]YieldCurve{
			"USD": {Currency: "USD", Tenors: []float64{1, 5}, Rates: []float64{0.045, 0.042}},
		},
	}
	view, err := NewMarketView(snap, nil)
	require.NoError(t, err)

	trades := []PricedPosition{fxForwardTrade("FX-1", asOf, 100_000, 500, Long)}
	cptys := map[string]Counterparty{"CPTY-1": {ID: "CPTY-1", ExternalRating: "A"}}

	// 기준통화 커브 부재: 0% 할인으로 대체하지 않고 CVA를 0으로 두고 보고
	block, err := ComputeCCR(trades, cptys, view, "EUR", RegimeNormal, asOf)
	assert.ErrorIs(t, err, ErrMissingMarketData)
	require.Len(t, block.ByCounterparty, 1)
	exp := block.ByCounterparty[0]
	assert.Zero(t, exp.CVA)
	assert.Greater(t, exp.EAD, 0.0, "exposure metrics survive the missing curve")
}
