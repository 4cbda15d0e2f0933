package risk

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// roundCurrency rounds a currency amount to 2 decimal places using exact
// decimal arithmetic. Ratios, rates and indices are never rounded.
func roundCurrency(x float64) float64 {
	if !isFinite(x) {
		return 0
	}
	out, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return out
}

// StoredForm returns the persistence copy of a snapshot: currency amounts
// rounded to 2 decimals, in-memory values untouched. Rounding happens at
// serialization only so recomputation stays comparable at full precision.
func (s RiskSnapshot) StoredForm() RiskSnapshot {
	out := s

	if s.Market != nil {
		m := *s.Market
		m.TotalMarketValue = roundCurrency(m.TotalMarketValue)
		m.Var1d95 = roundCurrency(m.Var1d95)
		m.StressedVar = roundCurrency(m.StressedVar)
		m.DV01Total = roundCurrency(m.DV01Total)
		out.Market = &m
	}
	if s.Credit != nil {
		c := *s.Credit
		c.TotalExposure = roundCurrency(c.TotalExposure)
		c.ExpectedLoss = roundCurrency(c.ExpectedLoss)
		c.CVATotal = roundCurrency(c.CVATotal)
		out.Credit = &c
	}
	if s.CCR != nil {
		c := *s.CCR
		c.PFECurrent = roundCurrency(c.PFECurrent)
		c.PFEPeak = roundCurrency(c.PFEPeak)
		c.EADTotal = roundCurrency(c.EADTotal)
		exposures := make([]CounterpartyExposure, len(c.ByCounterparty))
		for i, exp := range c.ByCounterparty {
			exp.CurrentExposure = roundCurrency(exp.CurrentExposure)
			exp.GrossPFE = roundCurrency(exp.GrossPFE)
			exp.NetPFE = roundCurrency(exp.NetPFE)
			exp.AdjustedPFE = roundCurrency(exp.AdjustedPFE)
			exp.EAD = roundCurrency(exp.EAD)
			exp.CVA = roundCurrency(exp.CVA)
			exposures[i] = exp
		}
		c.ByCounterparty = exposures
		out.CCR = &c
	}
	if s.Liquidity != nil {
		l := *s.Liquidity
		l.HQLA = roundCurrency(l.HQLA)
		l.Outflows30d = roundCurrency(l.Outflows30d)
		l.Inflows30dCapped = roundCurrency(l.Inflows30dCapped)
		l.NetOutflows30d = roundCurrency(l.NetOutflows30d)
		l.FundingGapShortTerm = roundCurrency(l.FundingGapShortTerm)
		l.LiquidationCost1d = roundCurrency(l.LiquidationCost1d)
		l.LiquidationCost5d = roundCurrency(l.LiquidationCost5d)
		if l.LCRInfinite {
			l.LCRRatio = 0 // 센티널 플래그가 진실, 수치는 0으로 저장
		}
		out.Liquidity = &l
	}
	if s.Capital != nil {
		c := *s.Capital
		c.KIR = roundCurrency(c.KIR)
		c.KCredNR = roundCurrency(c.KCredNR)
		c.KFX = roundCurrency(c.KFX)
		c.KNPR = roundCurrency(c.KNPR)
		c.KAUM = roundCurrency(c.KAUM)
		c.KCMH = roundCurrency(c.KCMH)
		c.KCOH = roundCurrency(c.KCOH)
		c.TotalKReq = roundCurrency(c.TotalKReq)
		c.RequiredCap = roundCurrency(c.RequiredCap)
		c.OwnFunds = roundCurrency(c.OwnFunds)
		out.Capital = &c
	}
	if len(s.Stress) > 0 {
		stress := make([]ScenarioResult, len(s.Stress))
		for i, r := range s.Stress {
			r.PnL = roundCurrency(r.PnL)
			r.DeltaVar = roundCurrency(r.DeltaVar)
			r.DeltaKNPR = roundCurrency(r.DeltaKNPR)
			contributors := make([]StressContributor, len(r.TopContributors))
			for j, c := range r.TopContributors {
				c.BaseMV = roundCurrency(c.BaseMV)
				c.ShockedMV = roundCurrency(c.ShockedMV)
				c.DeltaMV = roundCurrency(c.DeltaMV)
				contributors[j] = c
			}
			r.TopContributors = contributors
			stress[i] = r
		}
		out.Stress = stress
	}
	if len(s.Alerts) > 0 {
		alerts := make([]Alert, len(s.Alerts))
		for i, a := range s.Alerts {
			a.CurrentValue = sanitize(a.CurrentValue)
			a.LimitValue = sanitize(a.LimitValue)
			alerts[i] = a
		}
		out.Alerts = alerts
	}
	return out
}

// MarshalStored serializes the snapshot in its stored form
func (s RiskSnapshot) MarshalStored() ([]byte, error) {
	return json.Marshal(s.StoredForm())
}

func sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
