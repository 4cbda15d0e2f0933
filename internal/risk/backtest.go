package risk

import (
	"math"
	"sort"
	"time"
)

// backtestWindow is the rolling observation count for the traffic light
const backtestWindow = 250

// NewBacktestingRecord pairs yesterday's VaR forecast with today's
// realized P&L. Exception when the loss exceeds the forecast.
func NewBacktestingRecord(portfolioID string, date time.Time, varForecast, pnlActual float64) BacktestingRecord {
	return BacktestingRecord{
		PortfolioID: portfolioID,
		Date:        date,
		VaRForecast: varForecast,
		PnLActual:   pnlActual,
		IsException: pnlActual < -varForecast,
	}
}

// EvaluateBacktest summarizes the rolling window: exception count,
// Basel traffic light, Kupiec p-value and the VaR multiplier.
// Exceptions never block or modify the current run.
func EvaluateBacktest(records []BacktestingRecord, confidence float64) BacktestStats {
	sorted := make([]BacktestingRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	if len(sorted) > backtestWindow {
		sorted = sorted[len(sorted)-backtestWindow:]
	}

	stats := BacktestStats{TotalDays: len(sorted)}
	for _, r := range sorted {
		if r.IsException {
			stats.Exceptions++
		}
	}
	if stats.TotalDays > 0 {
		stats.ExceptionRate = float64(stats.Exceptions) / float64(stats.TotalDays)
	}
	stats.TrafficLight = trafficLight(stats.Exceptions)
	stats.KupiecPValue = kupiecPValue(stats.Exceptions, stats.TotalDays, confidence)
	stats.VaRMultiplier = varMultiplier(stats.Exceptions)
	return stats
}

// trafficLight applies the Basel zones on the rolling-250 exception count
func trafficLight(exceptions int) TrafficLight {
	switch {
	case exceptions <= 4:
		return LightGreen
	case exceptions <= 9:
		return LightYellow
	default:
		return LightRed
	}
}

// varMultiplier is the Basel plus-factor schedule: 3.0 in the green zone,
// stepping up through yellow, 4.0 from the red zone.
func varMultiplier(exceptions int) float64 {
	switch {
	case exceptions <= 4:
		return 3.0
	case exceptions == 5:
		return 3.4
	case exceptions == 6:
		return 3.5
	case exceptions == 7:
		return 3.65
	case exceptions == 8:
		return 3.75
	case exceptions == 9:
		return 3.85
	default:
		return 4.0
	}
}

// kupiecPValue is the unconditional-coverage likelihood ratio test:
// LR = -2 ln[(1-p)^(n-x) p^x] + 2 ln[(1-x/n)^(n-x) (x/n)^x],
// chi-square with 1 dof. Informational only, never gating.
func kupiecPValue(exceptions, days int, confidence float64) float64 {
	if days == 0 {
		return 1
	}
	p := 1 - confidence
	x := float64(exceptions)
	n := float64(days)

	if exceptions == 0 {
		lr := -2 * n * math.Log(1-p)
		return chiSquare1Survival(lr)
	}
	if exceptions == days {
		lr := -2 * n * math.Log(p)
		return chiSquare1Survival(lr)
	}

	rate := x / n
	logNull := (n-x)*math.Log(1-p) + x*math.Log(p)
	logAlt := (n-x)*math.Log(1-rate) + x*math.Log(rate)
	lr := -2 * (logNull - logAlt)
	return chiSquare1Survival(lr)
}

// chiSquare1Survival is P(X > x) for chi-square with 1 dof: erfc(sqrt(x/2))
func chiSquare1Survival(x float64) float64 {
	if x <= 0 {
		return 1
	}
	return math.Erfc(math.Sqrt(x / 2))
}
