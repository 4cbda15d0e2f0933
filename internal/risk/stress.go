package risk

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// =============================================================================
// Scenario definitions
// =============================================================================

// Scenario is a declarative bundle of market shocks. Zero values mean
// "no shock" for that axis.
type Scenario struct {
	Code        string `json:"code"`
	Description string `json:"description"`

	CurveShiftBp float64 `json:"curve_shift_bp"` // parallel
	CurveShortBp float64 `json:"curve_short_bp"` // twist anchor at 0Y
	CurveLongBp  float64 `json:"curve_long_bp"`  // twist anchor at 10Y+

	SpreadIGBp float64 `json:"spread_ig_bp"` // AAA..BBB issuers
	SpreadHYBp float64 `json:"spread_hy_bp"` // BB and below

	FxShock map[string]float64 `json:"fx_shock"` // currency -> relative move

	VolMultiplier float64 `json:"vol_multiplier"`
	VIXOverride   float64 `json:"vix_override"`

	BidAskMultiplier  float64 `json:"bid_ask_multiplier"`
	OutflowMultiplier float64 `json:"outflow_multiplier"`
}

// Catalogue returns the built-in stress scenario set
func Catalogue() []Scenario {
	return []Scenario{
		{Code: "IR-01", Description: "Parallel rates +200bp", CurveShiftBp: 200},
		{Code: "IR-02", Description: "Parallel rates -200bp", CurveShiftBp: -200},
		{Code: "IR-03", Description: "Steepener: short -50bp, long +100bp", CurveShortBp: -50, CurveLongBp: 100},
		{Code: "IR-04", Description: "Flattener: short +100bp, long -50bp", CurveShortBp: 100, CurveLongBp: -50},
		{Code: "CS-01", Description: "Credit spreads: IG +100bp, HY +300bp", SpreadIGBp: 100, SpreadHYBp: 300},
		{Code: "CS-02", Description: "Credit crisis: IG +250bp, HY +700bp", SpreadIGBp: 250, SpreadHYBp: 700},
		{Code: "CS-03", Description: "Severe credit: IG +400bp, HY +1200bp", SpreadIGBp: 400, SpreadHYBp: 1200},
		{Code: "FX-01", Description: "USD +10% vs all", FxShock: map[string]float64{"USD": 0.10}},
		{Code: "FX-02", Description: "EM currencies -20%", FxShock: map[string]float64{"TRY": -0.20, "BRL": -0.20, "ZAR": -0.20, "MXN": -0.20}},
		{Code: "VOL-01", Description: "Implied vols x1.5", VolMultiplier: 1.5, VIXOverride: 25},
		{Code: "VOL-02", Description: "Implied vols x2.0, crisis regime", VolMultiplier: 2.0, VIXOverride: 35},
		{Code: "LIQ-01", Description: "Bid-ask x3, outflows x1.5", BidAskMultiplier: 3, OutflowMultiplier: 1.5},
		{Code: "LIQ-02", Description: "Bid-ask x5, outflows x2", BidAskMultiplier: 5, OutflowMultiplier: 2},
	}
}

// ScenarioByCode looks up a catalogue scenario
func ScenarioByCode(code string) (Scenario, bool) {
	for _, sc := range Catalogue() {
		if sc.Code == code {
			return sc, true
		}
	}
	return Scenario{}, false
}

// twistAt interpolates the twist shock linearly between the 0Y and 10Y
// anchors, flat beyond 10Y.
func (sc Scenario) twistAt(tenor float64) float64 {
	w := math.Min(tenor, 10) / 10
	return sc.CurveShortBp + w*(sc.CurveLongBp-sc.CurveShortBp)
}

// yieldShockAt is the total yield shock in decimal at a tenor for a rating
func (sc Scenario) yieldShockAt(tenor float64, rating string) float64 {
	shock := sc.CurveShiftBp + sc.twistAt(tenor)
	switch normalizeRatingBucket(rating) {
	case "AAA", "AA", "A", "BBB":
		shock += sc.SpreadIGBp
	default:
		// 무등급 포함 HY 취급
		shock += sc.SpreadHYBp
	}
	return shock / 1e4
}

// fxFactor is the multiplicative shock on a currency pair
func (sc Scenario) fxFactor(pair string) float64 {
	if len(pair) != 6 {
		return 1
	}
	return (1 + sc.FxShock[pair[:3]]) / (1 + sc.FxShock[pair[3:]])
}

// =============================================================================
// Shocked snapshot
// =============================================================================

// ApplyScenario derives a shocked copy of a market data snapshot.
// The input snapshot is never mutated.
func ApplyScenario(snap *MarketDataSnapshot, sc Scenario) *MarketDataSnapshot {
	out := &MarketDataSnapshot{
		AsOfDate:   snap.AsOfDate,
		Quotes:     make(map[string]Quote, len(snap.Quotes)),
		Curves:     make(map[string]YieldCurve, len(snap.Curves)),
		Surfaces:   make(map[string]VolSurface, len(snap.Surfaces)),
		FxRates:    make(map[string]float64, len(snap.FxRates)),
		CdsSpreads: make(map[string]float64, len(snap.CdsSpreads)),
		VIX:        snap.VIX,
	}
	if sc.VIXOverride > 0 {
		out.VIX = sc.VIXOverride
	}

	for isin, q := range snap.Quotes {
		if sc.BidAskMultiplier > 0 && q.Ask > q.Bid {
			mid := 0.5 * (q.Bid + q.Ask)
			half := 0.5 * (q.Ask - q.Bid) * sc.BidAskMultiplier
			q.Bid = mid - half
			q.Ask = mid + half
		}
		out.Quotes[isin] = q
	}

	for ccy, c := range snap.Curves {
		shifted := YieldCurve{
			Currency: c.Currency,
			Tenors:   append([]float64(nil), c.Tenors...),
			Rates:    make([]float64, len(c.Rates)),
		}
		for i, r := range c.Rates {
			shifted.Rates[i] = r + (sc.CurveShiftBp+sc.twistAt(c.Tenors[i]))/1e4
		}
		out.Curves[ccy] = shifted
	}

	for und, s := range snap.Surfaces {
		mult := sc.VolMultiplier
		if mult <= 0 {
			mult = 1
		}
		shocked := VolSurface{
			Underlying: s.Underlying,
			Tenors:     append([]float64(nil), s.Tenors...),
			Strikes:    append([]float64(nil), s.Strikes...),
			Vols:       make([][]float64, len(s.Vols)),
		}
		for i, row := range s.Vols {
			shocked.Vols[i] = make([]float64, len(row))
			for j, v := range row {
				shocked.Vols[i][j] = v * mult
			}
		}
		out.Surfaces[und] = shocked
	}

	for pair, rate := range snap.FxRates {
		out.FxRates[pair] = rate * sc.fxFactor(pair)
	}
	for issuer, s := range snap.CdsSpreads {
		out.CdsSpreads[issuer] = s
	}
	return out
}

// =============================================================================
// Scenario execution
// =============================================================================

// stressContext carries the base run state the scenarios reprice against
type stressContext struct {
	asOf         time.Time
	portfolio    Portfolio
	view         *MarketView
	priced       []PricedPosition
	issuers      map[string]Issuer
	cptys        map[string]Counterparty
	funding      FundingProfile
	capitalInput CapitalInput
	cfg          EngineConfig

	pnlWindow     []float64
	baseVar       float64
	baseCapital   *CapitalBlock
	baseLiquidity *LiquidityBlock
}

// RunScenario reprices the book under a shocked view and recomputes the
// downstream capital and liquidity blocks.
func RunScenario(sc Scenario, ctx *stressContext) (ScenarioResult, error) {
	shockedSnap := ApplyScenario(ctx.view.snap, sc)

	positions := make([]Position, 0, len(ctx.priced))
	for _, pp := range ctx.priced {
		positions = append(positions, *pp.Position)
	}
	shockedView, err := NewMarketView(shockedSnap, positions)
	if err != nil {
		return ScenarioResult{}, fmt.Errorf("scenario %s: %w", sc.Code, err)
	}

	result := ScenarioResult{Scenario: sc.Code, Description: sc.Description}

	shockedPriced := make([]PricedPosition, 0, len(ctx.priced))
	contributors := make([]StressContributor, 0, len(ctx.priced))
	var baseTotal, shockedTotal float64

	for _, pp := range ctx.priced {
		shocked := repriceUnderScenario(pp, sc, shockedView, ctx)
		baseTotal += pp.MV
		shockedTotal += shocked.MV
		shockedPriced = append(shockedPriced, shocked)
		contributors = append(contributors, StressContributor{
			PositionID: pp.Position.ID,
			BaseMV:     pp.MV,
			ShockedMV:  shocked.MV,
			DeltaMV:    shocked.MV - pp.MV,
		})
	}

	result.PnL = shockedTotal - baseTotal
	if baseTotal != 0 {
		result.PnLPct = result.PnL / math.Abs(baseTotal)
	}

	sort.Slice(contributors, func(i, j int) bool {
		di, dj := math.Abs(contributors[i].DeltaMV), math.Abs(contributors[j].DeltaMV)
		if di != dj {
			return di > dj
		}
		return contributors[i].PositionID < contributors[j].PositionID
	})
	if len(contributors) > 10 {
		contributors = contributors[:10]
	}
	result.TopContributors = contributors

	// ΔVaR: 기본 손익 시계열을 충격 후 포트폴리오 가치 비율로 재척도
	if ctx.baseVar > 0 && baseTotal != 0 && len(ctx.pnlWindow) >= minVarObservations {
		scaled := ScalePnL(ctx.pnlWindow, math.Abs(shockedTotal/baseTotal))
		if shockedVar, err := HistoricalVaR(scaled, ctx.cfg.VarConfidence); err == nil {
			result.DeltaVar = shockedVar - ctx.baseVar
		}
	}

	shockedCapital := ComputeCapital(shockedPriced, ctx.issuers, ctx.portfolio, ctx.capitalInput, ctx.cfg)
	if ctx.baseCapital != nil {
		result.DeltaKNPR = shockedCapital.KNPR - ctx.baseCapital.KNPR
		result.DeltaCapitalRatio = shockedCapital.CapitalRatio - ctx.baseCapital.CapitalRatio
	}

	shockedFunding := ctx.funding
	if sc.OutflowMultiplier > 0 {
		entries := make([]FundingEntry, len(ctx.funding.Outflows))
		for i, e := range ctx.funding.Outflows {
			entries[i] = FundingEntry{Class: e.Class, Amount: e.Amount * sc.OutflowMultiplier}
		}
		shockedFunding.Outflows = entries
	}
	shockedLiquidity := ComputeLiquidity(shockedPriced, ctx.issuers, shockedView, shockedFunding, ctx.cfg)
	if ctx.baseLiquidity != nil && !ctx.baseLiquidity.LCRInfinite && !shockedLiquidity.LCRInfinite {
		result.DeltaLCR = shockedLiquidity.LCRRatio - ctx.baseLiquidity.LCRRatio
	}

	return result, nil
}

// repriceUnderScenario revalues a single position under the scenario.
// A position that fails to reprice keeps its base value (zero contribution).
func repriceUnderScenario(pp PricedPosition, sc Scenario, shockedView *MarketView, ctx *stressContext) PricedPosition {
	pos := pp.Position
	fx := 1.0
	if pos.Currency != ctx.portfolio.BaseCurrency {
		if r, err := shockedView.FxRate(pos.Currency + ctx.portfolio.BaseCurrency); err == nil {
			fx = r
		}
	}

	if pp.Bond != nil {
		rating := ctx.issuers[pos.IssuerID].Rating
		dy := sc.yieldShockAt(pp.Bond.TimeToMaturity, rating)
		shocked, err := AnalyzeBondAtYield(pos, ctx.asOf, pp.Bond.YTM+dy)
		if err != nil {
			return pp
		}
		return PricedPosition{Position: pos, MV: shocked.MarketValue * fx, Bond: &shocked}
	}

	shocked, err := AnalyzeDerivative(pos, shockedView, ctx.asOf)
	if err != nil {
		return pp
	}
	return PricedPosition{Position: pos, MV: shocked.MarketValue * fx, Deriv: &shocked}
}
