package risk

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// minVarObservations is the minimum P&L series length for a VaR estimate
const minVarObservations = 60

// HistoricalVaR computes the 1-day historical VaR at the given confidence.
// Result follows the loss-positive convention and is never negative.
// VaR=88 → 88 통화단위 손실 가능
func HistoricalVaR(pnl []float64, confidence float64) (float64, error) {
	n := len(pnl)
	if n < minVarObservations {
		return 0, fmt.Errorf("%w: %d observations, need >= %d",
			ErrInsufficientHistory, n, minVarObservations)
	}
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("%w: confidence %g", ErrInputValidation, confidence)
	}

	sorted := make([]float64, n)
	copy(sorted, pnl)
	for _, v := range sorted {
		if !isFinite(v) {
			return 0, fmt.Errorf("%w: non-finite pnl observation", ErrNumericInstability)
		}
	}
	sort.Float64s(sorted)

	k := int(math.Floor((1 - confidence) * float64(n)))
	if k >= n {
		k = n - 1
	}
	v := -sorted[k]
	if v < 0 {
		v = 0
	}
	return v, nil
}

// StressedVaR computes VaR over a fixed crisis window of the history.
// Fewer than minVarObservations dates inside the window yields NaN
// with ErrStressWindowTooShort.
func StressedVaR(history []PnLPoint, confidence float64, start, end time.Time) (float64, error) {
	var window []float64
	for _, p := range history {
		if !p.Date.Before(start) && !p.Date.After(end) {
			window = append(window, p.PnL)
		}
	}
	if len(window) < minVarObservations {
		return math.NaN(), fmt.Errorf("%w: %d observations in [%s, %s]",
			ErrStressWindowTooShort, len(window),
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return HistoricalVaR(window, confidence)
}

// WindowPnL extracts the trailing VaR window from the history: observations
// strictly before asOf, date-ascending, keeping the most recent windowDays.
func WindowPnL(history []PnLPoint, asOf time.Time, windowDays int) []float64 {
	points := make([]PnLPoint, 0, len(history))
	for _, p := range history {
		if p.Date.Before(asOf) {
			points = append(points, p)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	if len(points) > windowDays {
		points = points[len(points)-windowDays:]
	}
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.PnL
	}
	return out
}

// ScalePnL rescales a P&L series by a factor, used by the stress engine
// to restate the historical series under a shocked portfolio value.
func ScalePnL(pnl []float64, factor float64) []float64 {
	out := make([]float64, len(pnl))
	for i, v := range pnl {
		out[i] = v * factor
	}
	return out
}
