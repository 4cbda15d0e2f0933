package risk

import (
	"fmt"
	"math"
	"time"
)

// =============================================================================
// Cashflows & day counts
// =============================================================================

// Cashflow is one bond payment, Time in years from the as-of date
type Cashflow struct {
	Time   float64
	Amount float64
}

// YearFraction computes the accrual fraction between two dates
func YearFraction(dc DayCount, start, end time.Time) float64 {
	switch dc {
	case Act360:
		return daysBetween(start, end) / 360.0
	case ActAct:
		return daysBetween(start, end) / 365.25
	case Thirty360:
		d1, d2 := start.Day(), end.Day()
		if d1 == 31 {
			d1 = 30
		}
		if d2 == 31 && d1 == 30 {
			d2 = 30
		}
		days := 360*(end.Year()-start.Year()) +
			30*(int(end.Month())-int(start.Month())) +
			(d2 - d1)
		return float64(days) / 360.0
	default: // ACT/365
		return daysBetween(start, end) / 365.0
	}
}

func daysBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24.0
}

// BondCashflows generates the remaining coupon and redemption cashflows,
// coupon dates rolled back from maturity by the coupon frequency.
// A zero coupon or zero frequency collapses to the single redemption flow.
func BondCashflows(pos *Position, asOf time.Time) ([]Cashflow, error) {
	if pos.Notional <= 0 {
		return nil, fmt.Errorf("%w: notional must be > 0 (%s)", ErrInputValidation, pos.ID)
	}
	if !pos.Maturity.After(asOf) {
		return nil, fmt.Errorf("%w: %s matured", ErrInputValidation, pos.ID)
	}

	if pos.Coupon == 0 || pos.CouponFreq <= 0 {
		t := YearFraction(pos.DayCount, asOf, pos.Maturity)
		return []Cashflow{{Time: t, Amount: pos.Notional}}, nil
	}

	couponAmt := pos.Notional * pos.Coupon / float64(pos.CouponFreq)
	monthsStep := 12 / pos.CouponFreq

	// 만기에서 역순으로 쿠폰일 생성
	var dates []time.Time
	for d := pos.Maturity; d.After(asOf); d = d.AddDate(0, -monthsStep, 0) {
		dates = append(dates, d)
	}

	cfs := make([]Cashflow, 0, len(dates))
	for i := len(dates) - 1; i >= 0; i-- {
		d := dates[i]
		amt := couponAmt
		if d.Equal(pos.Maturity) {
			amt += pos.Notional
		}
		cfs = append(cfs, Cashflow{Time: YearFraction(pos.DayCount, asOf, d), Amount: amt})
	}
	return cfs, nil
}

// AccruedInterest returns the coupon accrued from the last coupon date
func AccruedInterest(pos *Position, asOf time.Time) float64 {
	if pos.Coupon == 0 || pos.CouponFreq <= 0 {
		return 0
	}
	monthsStep := 12 / pos.CouponFreq

	next := pos.Maturity
	for prev := next.AddDate(0, -monthsStep, 0); prev.After(asOf); {
		next = prev
		prev = next.AddDate(0, -monthsStep, 0)
	}
	prev := next.AddDate(0, -monthsStep, 0)

	period := YearFraction(pos.DayCount, prev, next)
	if period <= 0 {
		return 0
	}
	elapsed := YearFraction(pos.DayCount, prev, asOf)
	return pos.Notional * pos.Coupon / float64(pos.CouponFreq) * (elapsed / period)
}

// =============================================================================
// Pricing & yield solving
// =============================================================================

// PriceFromYield discounts cashflows at an annually compounded yield
func PriceFromYield(cfs []Cashflow, y float64) float64 {
	var pv float64
	for _, cf := range cfs {
		pv += cf.Amount * math.Pow(1+y, -cf.Time)
	}
	return pv
}

// priceDerivative is dPrice/dy at yield y
func priceDerivative(cfs []Cashflow, y float64) float64 {
	var d float64
	for _, cf := range cfs {
		d -= cf.Time * cf.Amount * math.Pow(1+y, -cf.Time-1)
	}
	return d
}

// SolveYTM finds the yield matching a dirty price: bracketed bisection on
// [-0.5, 1.0] to localize, then Newton refinement. Non-convergence within
// maxIter Newton steps is ErrYtmNotConverged.
func SolveYTM(cfs []Cashflow, dirtyPrice, tol float64, maxIter int) (float64, error) {
	if dirtyPrice <= 0 || !isFinite(dirtyPrice) {
		return 0, fmt.Errorf("%w: dirty price %g", ErrInputValidation, dirtyPrice)
	}

	lo, hi := -0.5, 1.0
	fLo := PriceFromYield(cfs, lo) - dirtyPrice
	fHi := PriceFromYield(cfs, hi) - dirtyPrice
	if fLo*fHi > 0 {
		return 0, fmt.Errorf("%w: no root in [%.2f, %.2f]", ErrYtmNotConverged, lo, hi)
	}

	// price is monotone decreasing in yield, so bisection is safe
	for i := 0; i < maxIter; i++ {
		mid := 0.5 * (lo + hi)
		fMid := PriceFromYield(cfs, mid) - dirtyPrice
		if fLo*fMid <= 0 {
			hi = mid
		} else {
			lo = mid
			fLo = fMid
		}
	}

	y := 0.5 * (lo + hi)
	for i := 0; i < maxIter; i++ {
		f := PriceFromYield(cfs, y) - dirtyPrice
		df := priceDerivative(cfs, y)
		if df == 0 || !isFinite(df) {
			return 0, fmt.Errorf("%w: flat derivative at y=%g", ErrYtmNotConverged, y)
		}
		step := f / df
		y -= step
		if math.Abs(step) < tol {
			if !isFinite(y) {
				return 0, fmt.Errorf("%w: ytm", ErrNumericInstability)
			}
			return y, nil
		}
	}
	return 0, fmt.Errorf("%w: after %d iterations", ErrYtmNotConverged, maxIter)
}

// =============================================================================
// Analytics
// =============================================================================

// BondAnalytics is the per-position bond valuation result
type BondAnalytics struct {
	PositionID     string  `json:"position_id"`
	MarketValue    float64 `json:"market_value"` // dirty, absolute
	CleanValue     float64 `json:"clean_value"`
	Accrued        float64 `json:"accrued"`
	YTM            float64 `json:"ytm"`
	Macaulay       float64 `json:"macaulay_duration"`
	Modified       float64 `json:"modified_duration"`
	DV01           float64 `json:"dv01"`
	Convexity      float64 `json:"convexity"`
	SpreadDuration float64 `json:"spread_duration"`
	TimeToMaturity float64 `json:"time_to_maturity"`
}

// AnalyzeBond values a bond off its market quote: dirty price from the
// quoted clean price plus accrued, YTM solved against it, risk measures
// at the solved yield.
func AnalyzeBond(pos *Position, asOf time.Time, quote Quote, tol float64, maxIter int) (BondAnalytics, error) {
	cfs, err := BondCashflows(pos, asOf)
	if err != nil {
		return BondAnalytics{}, err
	}

	accrued := AccruedInterest(pos, asOf)
	clean := quote.CleanPrice / 100.0 * pos.Notional
	dirty := clean + accrued

	ytm, err := SolveYTM(cfs, dirty, tol, maxIter)
	if err != nil {
		return BondAnalytics{}, err
	}

	return analyticsAtYield(pos, asOf, cfs, ytm, clean, accrued)
}

// AnalyzeBondAtYield values a bond directly from a yield, used when no
// quote exists (model price) and by the stress engine for shocked yields.
func AnalyzeBondAtYield(pos *Position, asOf time.Time, y float64) (BondAnalytics, error) {
	cfs, err := BondCashflows(pos, asOf)
	if err != nil {
		return BondAnalytics{}, err
	}
	accrued := AccruedInterest(pos, asOf)
	dirty := PriceFromYield(cfs, y)
	return analyticsAtYield(pos, asOf, cfs, y, dirty-accrued, accrued)
}

func analyticsAtYield(pos *Position, asOf time.Time, cfs []Cashflow, y, clean, accrued float64) (BondAnalytics, error) {
	dirty := PriceFromYield(cfs, y)
	if dirty <= 0 || !isFinite(dirty) {
		return BondAnalytics{}, fmt.Errorf("%w: bond %s price %g", ErrNumericInstability, pos.ID, dirty)
	}

	var macWeighted, convexity float64
	for _, cf := range cfs {
		pv := cf.Amount * math.Pow(1+y, -cf.Time)
		macWeighted += cf.Time * pv
		convexity += cf.Time * (cf.Time + 1) * cf.Amount * math.Pow(1+y, -(cf.Time+2))
	}
	macaulay := macWeighted / dirty
	modified := macaulay / (1 + y)
	convexity /= dirty

	a := BondAnalytics{
		PositionID:     pos.ID,
		MarketValue:    dirty,
		CleanValue:     clean,
		Accrued:        accrued,
		YTM:            y,
		Macaulay:       macaulay,
		Modified:       modified,
		DV01:           modified * dirty * 1e-4,
		Convexity:      convexity,
		SpreadDuration: modified, // fixed cashflows: spread and yield sensitivity coincide
		TimeToMaturity: YearFraction(pos.DayCount, asOf, pos.Maturity),
	}
	for _, v := range []float64{a.Macaulay, a.Modified, a.DV01, a.Convexity} {
		if !isFinite(v) {
			return BondAnalytics{}, fmt.Errorf("%w: bond %s analytics", ErrNumericInstability, pos.ID)
		}
	}
	return a, nil
}
