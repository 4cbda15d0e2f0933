package risk

import (
	"fmt"
	"math"
	"time"
)

// =============================================================================
// Normal distribution & Black-76
// =============================================================================

// NormCDF is the standard normal CDF via the complementary error function
func NormCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// NormPDF is the standard normal density
func NormPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// black76 prices a European call/put on a forward.
// Returns the undiscounted option value plus d1 for the Greeks.
func black76(forward, strike, vol, expiry float64, call bool) (value, d1 float64) {
	if expiry <= 0 || vol <= 0 {
		// 만기 또는 변동성 0: 내재가치만
		intrinsic := forward - strike
		if !call {
			intrinsic = -intrinsic
		}
		if intrinsic < 0 {
			intrinsic = 0
		}
		return intrinsic, 0
	}
	sd := vol * math.Sqrt(expiry)
	d1 = (math.Log(forward/strike) + 0.5*vol*vol*expiry) / sd
	d2 := d1 - sd
	if call {
		return forward*NormCDF(d1) - strike*NormCDF(d2), d1
	}
	return strike*NormCDF(-d2) - forward*NormCDF(-d1), d1
}

// =============================================================================
// Derivative analytics
// =============================================================================

// DerivAnalytics is the per-position derivative valuation result.
// MarketValue is signed: positive means the position is an asset.
type DerivAnalytics struct {
	PositionID     string  `json:"position_id"`
	MarketValue    float64 `json:"market_value"`
	Delta          float64 `json:"delta"`
	Gamma          float64 `json:"gamma"`
	Vega           float64 `json:"vega"`
	Theta          float64 `json:"theta"`
	DV01           float64 `json:"dv01"`
	TimeToMaturity float64 `json:"time_to_maturity"`
}

// AnalyzeDerivative values a derivative position off the market view.
// DV01 is numeric: half-difference of a +/-1bp parallel shift of the
// discount curve, positive when value rises as rates fall.
func AnalyzeDerivative(pos *Position, view *MarketView, asOf time.Time) (DerivAnalytics, error) {
	base, err := deriveValue(pos, view, asOf, 0)
	if err != nil {
		return DerivAnalytics{}, err
	}

	up, err := deriveValue(pos, view, asOf, 1e-4)
	if err != nil {
		return DerivAnalytics{}, err
	}
	down, err := deriveValue(pos, view, asOf, -1e-4)
	if err != nil {
		return DerivAnalytics{}, err
	}
	base.DV01 = 0.5 * (down.MarketValue - up.MarketValue)

	if !isFinite(base.MarketValue) || !isFinite(base.DV01) {
		return DerivAnalytics{}, fmt.Errorf("%w: derivative %s", ErrNumericInstability, pos.ID)
	}
	return base, nil
}

// deriveValue dispatches on instrument kind, with a parallel rate shift
// applied to every curve lookup.
func deriveValue(pos *Position, view *MarketView, asOf time.Time, shift float64) (DerivAnalytics, error) {
	if pos.Notional <= 0 {
		return DerivAnalytics{}, fmt.Errorf("%w: %s notional must be positive", ErrInputValidation, pos.ID)
	}
	T := daysBetween(asOf, pos.Maturity) / 365.0
	if T <= 0 {
		return DerivAnalytics{}, fmt.Errorf("%w: %s matured", ErrInputValidation, pos.ID)
	}

	switch pos.Kind {
	case KindFxForward:
		return fxForwardValue(pos, view, T, shift)
	case KindFxOption:
		return fxOptionValue(pos, view, T, shift)
	case KindIrSwap:
		return irSwapValue(pos, view, T, shift)
	case KindCapFloor:
		return capFloorValue(pos, view, T, shift)
	case KindSwaption:
		return swaptionValue(pos, view, T, shift)
	default:
		return DerivAnalytics{}, fmt.Errorf("%w: unsupported kind %s", ErrInputValidation, pos.Kind)
	}
}

func directionSign(d Direction) float64 {
	if d == Short {
		return -1
	}
	return 1
}

// shiftedDF discounts at the curve zero rate plus the parallel shift
func shiftedDF(view *MarketView, ccy string, t, shift float64) (float64, error) {
	z, err := view.ZeroRate(ccy, t)
	if err != nil {
		return 0, err
	}
	return math.Exp(-(z + shift) * t), nil
}

// fxPairCurrencies splits "EURUSD" into base and quote
func fxPairCurrencies(pair string) (string, string, error) {
	if len(pair) != 6 {
		return "", "", fmt.Errorf("%w: fx pair %q", ErrInputValidation, pair)
	}
	return pair[:3], pair[3:], nil
}

// fxForwardRate derives the market forward from spot and the two curves
func fxForwardRate(view *MarketView, pair string, T, shift float64) (fwd, df float64, err error) {
	baseCcy, quoteCcy, err := fxPairCurrencies(pair)
	if err != nil {
		return 0, 0, err
	}
	spot, err := view.FxRate(pair)
	if err != nil {
		return 0, 0, err
	}
	rd, err := view.ZeroRate(quoteCcy, T)
	if err != nil {
		return 0, 0, err
	}
	rf, err := view.ZeroRate(baseCcy, T)
	if err != nil {
		return 0, 0, err
	}
	rd += shift
	rf += shift
	fwd = spot * math.Exp((rd-rf)*T)
	df = math.Exp(-rd * T)
	return fwd, df, nil
}

// =============================================================================
// FX forward
// =============================================================================

func fxForwardValue(pos *Position, view *MarketView, T, shift float64) (DerivAnalytics, error) {
	fwd, df, err := fxForwardRate(view, pos.Underlying, T, shift)
	if err != nil {
		return DerivAnalytics{}, err
	}
	sign := directionSign(pos.Direction)
	return DerivAnalytics{
		PositionID:     pos.ID,
		MarketValue:    sign * pos.Notional * (fwd - pos.Strike) * df,
		Delta:          sign * pos.Notional * df,
		TimeToMaturity: T,
	}, nil
}

// =============================================================================
// FX vanilla option (Black-Scholes on the forward)
// =============================================================================

func fxOptionValue(pos *Position, view *MarketView, T, shift float64) (DerivAnalytics, error) {
	fwd, df, err := fxForwardRate(view, pos.Underlying, T, shift)
	if err != nil {
		return DerivAnalytics{}, err
	}
	vol, err := view.Vol(pos.Underlying, T, pos.Strike)
	if err != nil {
		return DerivAnalytics{}, err
	}

	call := pos.OptionType == Call
	unit, d1 := black76(fwd, pos.Strike, vol, T, call)
	sign := directionSign(pos.Direction)

	delta := NormCDF(d1)
	if !call {
		delta -= 1
	}
	var gamma, vega, theta float64
	if vol > 0 && T > 0 {
		phi := NormPDF(d1)
		gamma = phi / (fwd * vol * math.Sqrt(T))
		vega = fwd * phi * math.Sqrt(T)
		theta = -fwd * phi * vol / (2 * math.Sqrt(T))
	}

	return DerivAnalytics{
		PositionID:     pos.ID,
		MarketValue:    sign * pos.Notional * df * unit,
		Delta:          sign * pos.Notional * df * delta,
		Gamma:          pos.Notional * df * gamma,
		Vega:           pos.Notional * df * vega,
		Theta:          sign * pos.Notional * df * theta,
		TimeToMaturity: T,
	}, nil
}

// =============================================================================
// IR swap (annual fixed leg; floating leg = par minus terminal DF)
// =============================================================================

func irSwapValue(pos *Position, view *MarketView, T, shift float64) (DerivAnalytics, error) {
	ccy := pos.Currency

	var fixedPV float64
	for t := 1.0; t <= T+1e-9; t++ {
		tau := 1.0
		if t > T {
			tau = T - (t - 1)
		}
		df, err := shiftedDF(view, ccy, math.Min(t, T), shift)
		if err != nil {
			return DerivAnalytics{}, err
		}
		fixedPV += pos.Notional * pos.FixedRate * tau * df
	}
	// stub 구간 처리: 마지막 비정수 만기
	if frac := T - math.Floor(T); frac > 1e-9 {
		df, err := shiftedDF(view, ccy, T, shift)
		if err != nil {
			return DerivAnalytics{}, err
		}
		fixedPV += pos.Notional * pos.FixedRate * frac * df
	}

	dfT, err := shiftedDF(view, ccy, T, shift)
	if err != nil {
		return DerivAnalytics{}, err
	}
	floatPV := pos.Notional * (1 - dfT)

	// LONG = pay fixed, receive floating
	sign := directionSign(pos.Direction)
	return DerivAnalytics{
		PositionID:     pos.ID,
		MarketValue:    sign * (floatPV - fixedPV),
		TimeToMaturity: T,
	}, nil
}

// =============================================================================
// Cap / Floor (sum of Black-76 caplets on curve forwards)
// =============================================================================

func capFloorValue(pos *Position, view *MarketView, T, shift float64) (DerivAnalytics, error) {
	ccy := pos.Currency
	call := pos.OptionType == Call // cap
	sign := directionSign(pos.Direction)

	var pv float64
	for tEnd := 1.0; tEnd <= T+1e-9; tEnd++ {
		tStart := tEnd - 1
		tau := 1.0
		if tEnd > T {
			tEnd = T
			tau = tEnd - tStart
			if tau <= 1e-9 {
				break
			}
		}
		dfStart, err := shiftedDF(view, ccy, tStart, shift)
		if err != nil {
			return DerivAnalytics{}, err
		}
		dfEnd, err := shiftedDF(view, ccy, tEnd, shift)
		if err != nil {
			return DerivAnalytics{}, err
		}
		forward := (dfStart/dfEnd - 1) / tau

		vol, err := view.Vol(pos.Underlying, tEnd, pos.Strike)
		if err != nil {
			return DerivAnalytics{}, err
		}
		unit, _ := black76(forward, pos.Strike, vol, tStart, call)
		pv += pos.Notional * tau * dfEnd * unit
	}

	return DerivAnalytics{
		PositionID:     pos.ID,
		MarketValue:    sign * pv,
		TimeToMaturity: T,
	}, nil
}

// =============================================================================
// European swaption (Black-76 on the forward swap rate)
// =============================================================================

func swaptionValue(pos *Position, view *MarketView, T, shift float64) (DerivAnalytics, error) {
	if pos.SwapTenorYears <= 0 {
		return DerivAnalytics{}, fmt.Errorf("%w: swaption %s missing swap tenor", ErrInputValidation, pos.ID)
	}
	ccy := pos.Currency
	expiry := T

	// annuity = 연간 고정 지급일 할인계수 합
	var annuity float64
	for i := 1.0; i <= pos.SwapTenorYears+1e-9; i++ {
		df, err := shiftedDF(view, ccy, expiry+i, shift)
		if err != nil {
			return DerivAnalytics{}, err
		}
		annuity += df
	}
	if annuity <= 0 {
		return DerivAnalytics{}, fmt.Errorf("%w: swaption %s annuity", ErrNumericInstability, pos.ID)
	}

	dfStart, err := shiftedDF(view, ccy, expiry, shift)
	if err != nil {
		return DerivAnalytics{}, err
	}
	dfEnd, err := shiftedDF(view, ccy, expiry+pos.SwapTenorYears, shift)
	if err != nil {
		return DerivAnalytics{}, err
	}
	forwardSwap := (dfStart - dfEnd) / annuity

	vol, err := view.Vol(pos.Underlying, expiry, pos.Strike)
	if err != nil {
		return DerivAnalytics{}, err
	}
	payer := pos.OptionType == Payer || pos.OptionType == Call
	unit, _ := black76(forwardSwap, pos.Strike, vol, expiry, payer)

	sign := directionSign(pos.Direction)
	return DerivAnalytics{
		PositionID:     pos.ID,
		MarketValue:    sign * pos.Notional * annuity * unit,
		TimeToMaturity: expiry,
	}, nil
}
