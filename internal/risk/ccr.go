package risk

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ComputeCCR evaluates counterparty credit risk over the derivative book:
// current exposure, PFE add-ons with netting and CSA collateral, EAD_CCR
// and bucketed CVA per counterparty.
//
// Exposure metrics never need the discount curve; a missing base-currency
// curve zeroes the affected CVA and is reported through the error so the
// snapshot degrades to Partial instead of discounting at zero.
func ComputeCCR(priced []PricedPosition, cptys map[string]Counterparty, view *MarketView, baseCurrency string, regime VolRegime, asOf time.Time) (*CCRBlock, error) {
	byCpty := make(map[string][]PricedPosition)
	for _, pp := range priced {
		if pp.Deriv == nil || pp.Position.CounterpartyID == "" {
			continue
		}
		id := pp.Position.CounterpartyID
		byCpty[id] = append(byCpty[id], pp)
	}

	ids := make([]string, 0, len(byCpty))
	for id := range byCpty {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	block := &CCRBlock{}
	var cvaErr error
	for _, id := range ids {
		trades := byCpty[id]
		cpty := cptys[id]
		exp, err := counterpartyExposure(trades, cpty, view, baseCurrency, regime, asOf)
		if err != nil && cvaErr == nil {
			cvaErr = err
		}
		block.PFECurrent += exp.AdjustedPFE
		if exp.AdjustedPFE > block.PFEPeak {
			block.PFEPeak = exp.AdjustedPFE
		}
		block.EADTotal += exp.EAD
		block.ByCounterparty = append(block.ByCounterparty, exp)
	}
	return block, cvaErr
}

func counterpartyExposure(trades []PricedPosition, cpty Counterparty, view *MarketView, baseCurrency string, regime VolRegime, asOf time.Time) (CounterpartyExposure, error) {
	// CE는 상계 후 순 MtM 기준
	var totalMtM float64
	for _, pp := range trades {
		totalMtM += pp.MV
	}
	ce := math.Max(totalMtM, 0)

	addons := make([]float64, 0, len(trades))
	var grossPFE float64
	for _, pp := range trades {
		a := tradePFEAddon(pp, regime, asOf)
		addons = append(addons, a)
		grossPFE += a
	}

	var netPFE float64
	if cpty.ISDANetting {
		var sumSq float64
		for _, a := range addons {
			sumSq += a * a
		}
		netPFE = math.Sqrt(sumSq) * nettingFactor
	} else {
		netPFE = grossPFE
	}

	if len(trades) > portfolioFactorMinTrades {
		netPFE *= portfolioFactor(trades)
	}

	adjPFE := math.Max(0, netPFE-cpty.CollateralHeld+cpty.CSAThreshold)
	ead := ce + adjPFE

	cva, err := counterpartyCVA(trades, cpty, view, baseCurrency, ce, adjPFE, asOf)
	return CounterpartyExposure{
		CounterpartyID:  cpty.ID,
		CurrentExposure: ce,
		GrossPFE:        grossPFE,
		NetPFE:          netPFE,
		AdjustedPFE:     adjPFE,
		EAD:             ead,
		CVA:             cva,
		TradeCount:      len(trades),
	}, err
}

// tradePFEAddon computes the per-trade PFE add-on by instrument class.
// T is calendar days to maturity over a 250-day year.
func tradePFEAddon(pp PricedPosition, regime VolRegime, asOf time.Time) float64 {
	pos := pp.Position
	days := daysBetween(asOf, pos.Maturity)
	if days <= 0 {
		return 0
	}
	sqrtT := math.Sqrt(days / 250.0)

	if pos.IsOption() && pos.Direction == Long && pos.PremiumPaid > 0 {
		return math.Min(pos.PremiumPaid, longOptionPFECap)
	}

	switch pos.Kind {
	case KindFxForward, KindFxOption:
		ccf := ccfFxEM
		if base, quote, err := fxPairCurrencies(pos.Underlying); err == nil &&
			fxMajorCurrencies[base] && fxMajorCurrencies[quote] {
			ccf = ccfFxMajor
		}
		if pos.Kind == KindFxOption && pos.Direction == Short {
			return math.Abs(pp.Deriv.Delta) * ccf
		}
		return math.Abs(pos.Notional) * ccf * sqrtT * fxVolMultiplier(regime)

	case KindIrSwap, KindCapFloor, KindSwaption:
		ccf := irCCFForTenor(days / 365.0)
		return math.Abs(pos.Notional) * ccf * sqrtT * irVolMultiplier(regime)

	default:
		return 0
	}
}

// portfolioFactor rewards diversified trade books above the trade-count
// threshold: 0.5 when the book is delta-flat, 0.8 when one-directional,
// 1.0 otherwise.
func portfolioFactor(trades []PricedPosition) float64 {
	var net, gross float64
	var longs, shorts int
	for _, pp := range trades {
		d := pp.Deriv.Delta
		if d == 0 {
			d = directionSign(pp.Position.Direction) * pp.Position.Notional
		}
		net += d
		gross += math.Abs(d)
		if pp.Position.Direction == Short {
			shorts++
		} else {
			longs++
		}
	}
	if gross > 0 && math.Abs(net) <= 0.05*gross {
		return 0.5
	}
	if longs == 0 || shorts == 0 {
		return 0.8
	}
	return 1.0
}

// counterpartyCVA computes the bucketed CVA:
// CVA = LGD * Σ_t (PD_t − PD_{t−1}) * DF_t * EAD_t over the standard
// bucket grid capped at the longest trade maturity.
func counterpartyCVA(trades []PricedPosition, cpty Counterparty, view *MarketView, baseCurrency string, ce, pfe float64, asOf time.Time) (float64, error) {
	var tMax float64
	for _, pp := range trades {
		if t := daysBetween(asOf, pp.Position.Maturity) / 365.0; t > tMax {
			tMax = t
		}
	}
	if tMax <= 0 {
		return 0, nil
	}

	lgd := LGDForSeniority("SENIOR_UNSECURED")
	pd1y := PDForRating(cpty.ExternalRating)
	cds, hasCDS := view.CdsSpread(cpty.ID)

	pdAt := func(t float64) float64 {
		if hasCDS {
			return 1 - math.Exp(-cds*t/lgd)
		}
		return 1 - math.Pow(1-pd1y, t)
	}

	var cva, prevPD float64
	for _, t := range cvaBuckets {
		if t > tMax {
			t = tMax
		}
		eadT := ce + pfe*math.Sqrt(t/tMax)
		rf, err := view.ZeroRate(baseCurrency, t)
		if err != nil {
			return 0, fmt.Errorf("%w: cva discount curve %s for counterparty %s", ErrMissingMarketData, baseCurrency, cpty.ID)
		}
		dfT := math.Exp(-rf * t)
		pdT := pdAt(t)
		cva += (pdT - prevPD) * dfT * eadT
		prevPD = pdT
		if t >= tMax {
			break
		}
	}
	return lgd * cva, nil
}
