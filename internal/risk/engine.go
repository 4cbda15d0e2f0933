package risk

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// Engine is the deterministic risk calculator. It performs no I/O and
// holds no state beyond its immutable configuration; every ComputeSnapshot
// call is a pure function of the input bundle and the engine version.
type Engine struct {
	cfg EngineConfig
}

// NewEngine validates the configuration and returns an engine
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// checkpoint polls the context at component boundaries
func checkpoint(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrDeadlineExceeded
		}
		return ErrCancelled
	default:
		return nil
	}
}

// EvaluateDQ runs the data quality rule table against a market snapshot
// and the positions that will price off it.
func (e *Engine) EvaluateDQ(snap *MarketDataSnapshot, positions []Position, issuers []Issuer, baseCurrency string, detectedAt time.Time) ([]DataQualityIssue, error) {
	view, err := NewMarketView(snap, positions)
	if err != nil {
		return nil, err
	}
	return EvaluateDQ(view, positions, issuerIndex(issuers), baseCurrency, detectedAt), nil
}

// ComputeSnapshot runs the full pipeline for one portfolio and as-of date:
// market view, data quality, pricing, VaR, credit, CCR, liquidity, capital,
// concentration, stress and limits, assembled into one immutable snapshot.
//
// A non-nil error is returned only for cancellation, deadline or an
// internal bug; domain failures are encoded in the snapshot status.
func (e *Engine) ComputeSnapshot(ctx context.Context, in ComputeInput) (RiskSnapshot, error) {
	if e.cfg.DeadlineMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.DeadlineMs)*time.Millisecond)
		defer cancel()
	}

	asOf := time.Time{}
	if in.MarketData != nil {
		asOf = in.MarketData.AsOfDate
	}
	snapshot := RiskSnapshot{
		PortfolioID:   in.Portfolio.ID,
		AsOfDate:      asOf,
		CalculatedAt:  time.Now().UTC(),
		EngineVersion: e.cfg.EngineVersion,
		Status:        StatusRunning,
	}
	var failures []string

	// ===== C1: market view =====
	view, err := NewMarketView(in.MarketData, in.Positions)
	if err != nil {
		snapshot.Status = StatusFailed
		snapshot.ErrorMessage = err.Error()
		return snapshot, nil
	}
	snapshot.MarketDataSnapshotID = view.ID()

	issuers := issuerIndex(in.Issuers)
	cptys := counterpartyIndex(in.Counterparties)

	// ===== C2: data quality =====
	snapshot.DQIssues = EvaluateDQ(view, in.Positions, issuers, in.Portfolio.BaseCurrency, snapshot.CalculatedAt)
	excluded := ExcludedPositions(snapshot.DQIssues)

	// ===== C3/C4: position pricing =====
	priced, unpriced := e.pricePositions(ctx, in.Positions, view, in.Portfolio.BaseCurrency, excluded, asOf)
	snapshot.Unpriced = unpriced
	if err := checkpoint(ctx); err != nil {
		return snapshot, err
	}

	// ===== C5: market block with VaR =====
	pnlWindow := WindowPnL(in.PnLHistory, asOf, e.cfg.VarWindowDays)
	var baseVar float64
	market, varErr := e.marketBlock(priced, pnlWindow, in.PnLHistory)
	if varErr != nil {
		failures = append(failures, varErr.Error())
	}
	snapshot.Market = market
	if market != nil {
		baseVar = market.Var1d95
	}
	if err := checkpoint(ctx); err != nil {
		return snapshot, err
	}

	// ===== C6: credit =====
	credit, _ := ComputeCredit(priced, issuers)
	snapshot.Credit = credit
	if err := checkpoint(ctx); err != nil {
		return snapshot, err
	}

	// ===== C7: CCR / CVA =====
	regime := view.Regime(regimeOverride(e.cfg.VolRegimeOverride))
	ccr, ccrErr := ComputeCCR(priced, cptys, view, in.Portfolio.BaseCurrency, regime, asOf)
	if ccrErr != nil {
		failures = append(failures, ccrErr.Error())
	}
	snapshot.CCR = ccr
	for _, exp := range ccr.ByCounterparty {
		credit.CVATotal += exp.CVA
	}
	if err := checkpoint(ctx); err != nil {
		return snapshot, err
	}

	// ===== C8: liquidity =====
	snapshot.Liquidity = ComputeLiquidity(priced, issuers, view, in.Funding, e.cfg)
	if err := checkpoint(ctx); err != nil {
		return snapshot, err
	}

	// ===== C9: capital =====
	snapshot.Capital = ComputeCapital(priced, issuers, in.Portfolio, in.Capital, e.cfg)
	if err := checkpoint(ctx); err != nil {
		return snapshot, err
	}

	// ===== concentration =====
	snapshot.Concentration = ComputeConcentration(priced, issuers, cptys)

	// ===== C10: stress =====
	stressCtx := &stressContext{
		asOf:          asOf,
		portfolio:     in.Portfolio,
		view:          view,
		priced:        priced,
		issuers:       issuers,
		cptys:         cptys,
		funding:       in.Funding,
		capitalInput:  in.Capital,
		cfg:           e.cfg,
		pnlWindow:     pnlWindow,
		baseVar:       baseVar,
		baseCapital:   snapshot.Capital,
		baseLiquidity: snapshot.Liquidity,
	}
	for _, sc := range selectScenarios(in.Scenarios) {
		result, err := RunScenario(sc, stressCtx)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		snapshot.Stress = append(snapshot.Stress, result)
	}
	if err := checkpoint(ctx); err != nil {
		return snapshot, err
	}

	// ===== C11: limits =====
	snapshot.Alerts, snapshot.AlertsSummary = EvaluateLimits(&snapshot, in.Limits, snapshot.CalculatedAt)

	// ===== status =====
	snapshot.Status = StatusSuccess
	if len(unpriced) > 0 || len(failures) > 0 || snapshot.Market == nil {
		snapshot.Status = StatusPartial
	}
	if len(failures) > 0 {
		snapshot.ErrorMessage = strings.Join(failures, "; ")
	}
	return snapshot, nil
}

// pricePositions values every non-excluded position, bounded by the
// configured parallelism. Result order is input order; failures collect
// into the unpriced list with their position IDs.
func (e *Engine) pricePositions(ctx context.Context, positions []Position, view *MarketView, baseCurrency string, excluded map[string]bool, asOf time.Time) ([]PricedPosition, []string) {
	type slot struct {
		pp  *PricedPosition
		err error
	}
	slots := make([]slot, len(positions))

	sem := make(chan struct{}, e.cfg.Parallelism)
	var wg sync.WaitGroup
	for i := range positions {
		pos := &positions[i]
		if excluded[pos.ID] {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, pos *Position) {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil {
				slots[i].err = ctx.Err()
				return
			}
			pp, err := e.priceOne(pos, view, baseCurrency, asOf)
			if err != nil {
				slots[i].err = err
				return
			}
			slots[i].pp = &pp
		}(i, pos)
	}
	wg.Wait()

	var priced []PricedPosition
	var unpriced []string
	for i := range positions {
		pos := &positions[i]
		switch {
		case excluded[pos.ID]:
			unpriced = append(unpriced, pos.ID)
		case slots[i].err != nil:
			unpriced = append(unpriced, pos.ID)
		case slots[i].pp != nil:
			priced = append(priced, *slots[i].pp)
		}
	}
	sort.Strings(unpriced)
	return priced, unpriced
}

// priceOne values a single position and converts MV to the base currency
func (e *Engine) priceOne(pos *Position, view *MarketView, baseCurrency string, asOf time.Time) (PricedPosition, error) {
	fx := 1.0
	if pos.Currency != baseCurrency {
		r, err := view.FxRate(pos.Currency + baseCurrency)
		if err != nil {
			return PricedPosition{}, err
		}
		fx = r
	}

	if pos.IsBond() {
		quote, err := view.Quote(pos.ISIN)
		if err != nil {
			return PricedPosition{}, err
		}
		b, err := AnalyzeBond(pos, asOf, quote, e.cfg.YtmTolerance, e.cfg.YtmMaxIter)
		if err != nil {
			return PricedPosition{}, err
		}
		return PricedPosition{Position: pos, MV: b.MarketValue * fx, Bond: &b}, nil
	}

	d, err := AnalyzeDerivative(pos, view, asOf)
	if err != nil {
		return PricedPosition{}, err
	}
	return PricedPosition{Position: pos, MV: d.MarketValue * fx, Deriv: &d}, nil
}

// marketBlock aggregates pricing results and the VaR measures.
// InsufficientHistory nulls the whole block; a short stress window keeps
// the block with StressedVar zeroed, both reported to the caller.
func (e *Engine) marketBlock(priced []PricedPosition, pnlWindow []float64, history []PnLPoint) (*MarketBlock, error) {
	block := &MarketBlock{}
	var durationWeighted, convexityWeighted, wamWeighted, bondMV float64
	for _, pp := range priced {
		block.TotalMarketValue += pp.MV
		if pp.Bond != nil {
			block.DV01Total += pp.Bond.DV01
			durationWeighted += pp.Bond.Modified * pp.MV
			convexityWeighted += pp.Bond.Convexity * pp.MV
			wamWeighted += pp.Bond.TimeToMaturity * pp.MV
			bondMV += pp.MV
		} else if pp.Deriv != nil {
			block.DV01Total += pp.Deriv.DV01
		}
	}
	if bondMV != 0 {
		block.Duration = durationWeighted / bondMV
		block.Convexity = convexityWeighted / bondMV
		block.WAM = wamWeighted / bondMV
	}

	v, err := HistoricalVaR(pnlWindow, e.cfg.VarConfidence)
	if err != nil {
		return nil, err
	}
	block.Var1d95 = v

	sv, err := StressedVaR(history, e.cfg.VarConfidence, e.cfg.StressWindowStart, e.cfg.StressWindowEnd)
	if err != nil {
		// 스트레스 윈도우 부족: 블록은 유지, 값은 0
		block.StressedVar = 0
		return block, err
	}
	block.StressedVar = sv
	return block, nil
}

func regimeOverride(v string) string {
	if v == "Auto" {
		return ""
	}
	return v
}

func selectScenarios(codes []string) []Scenario {
	if len(codes) == 0 {
		return Catalogue()
	}
	var out []Scenario
	for _, code := range codes {
		if sc, ok := ScenarioByCode(code); ok {
			out = append(out, sc)
		}
	}
	return out
}

func issuerIndex(issuers []Issuer) map[string]Issuer {
	out := make(map[string]Issuer, len(issuers))
	for _, iss := range issuers {
		out[iss.ID] = iss
	}
	return out
}

func counterpartyIndex(cptys []Counterparty) map[string]Counterparty {
	out := make(map[string]Counterparty, len(cptys))
	for _, cp := range cptys {
		out[cp.ID] = cp
	}
	return out
}
