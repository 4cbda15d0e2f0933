package risk

import (
	"fmt"
	"math"
	"time"
)

// curveInversionTolerance allows mild inversions before DQ-20 fires
const curveInversionTolerance = 0.005 // 50bp

// EvaluateDQ applies the data quality rule table to a market view and the
// positions pricing off it. Never fails; returns zero or more issues.
// Error-severity issues on a position's price path exclude that position
// from pricing (Unpriced) and downgrade the snapshot to PARTIAL.
func EvaluateDQ(view *MarketView, positions []Position, issuers map[string]Issuer, baseCurrency string, detectedAt time.Time) []DataQualityIssue {
	var issues []DataQualityIssue
	add := func(rule string, sev DQSeverity, source, instrumentID, detail string) {
		issues = append(issues, DataQualityIssue{
			Rule:         rule,
			Severity:     sev,
			Source:       source,
			InstrumentID: instrumentID,
			SnapshotID:   view.ID(),
			Detail:       detail,
			DetectedAt:   detectedAt,
		})
	}
	asOf := view.AsOfDate()

	for i := range positions {
		pos := &positions[i]

		// ===== position invariants =====
		if pos.TradeDate.After(asOf) {
			add("DQ-40", DQError, "position", pos.ID,
				fmt.Sprintf("trade_date %s after as_of %s",
					pos.TradeDate.Format("2006-01-02"), asOf.Format("2006-01-02")))
		}
		if !pos.Maturity.After(asOf) {
			add("DQ-41", DQError, "position", pos.ID,
				fmt.Sprintf("maturity %s not after as_of", pos.Maturity.Format("2006-01-02")))
		}

		// ===== FX coverage =====
		if pos.Currency != baseCurrency {
			if _, err := view.FxRate(pos.Currency + baseCurrency); err != nil {
				add("DQ-10", DQError, "fx", pos.ID,
					fmt.Sprintf("no FX rate for %s/%s", pos.Currency, baseCurrency))
			}
		}

		// ===== bond quote rules =====
		if pos.IsBond() {
			q, err := view.Quote(pos.ISIN)
			if err != nil {
				continue // construction guarantees presence; defensive only for ad-hoc views
			}
			if q.CleanPrice <= 0 {
				add("DQ-02", DQError, "market", pos.ID,
					fmt.Sprintf("clean price %g for %s", q.CleanPrice, pos.ISIN))
			}
			if q.PrevClose > 0 && math.Abs(q.CleanPrice/q.PrevClose-1) > 0.5 {
				add("DQ-01", DQWarning, "market", pos.ID,
					fmt.Sprintf("price jump %.1f%% day-on-day for %s",
						(q.CleanPrice/q.PrevClose-1)*100, pos.ISIN))
			}
			if q.Bid > 0 && q.Ask > 0 {
				if q.Bid > q.Ask {
					add("DQ-03", DQError, "market", pos.ID,
						fmt.Sprintf("bid %g > ask %g for %s", q.Bid, q.Ask, pos.ISIN))
				} else if mid := 0.5 * (q.Bid + q.Ask); mid > 0 && (q.Ask-q.Bid)/mid > 0.05 {
					add("DQ-04", DQWarning, "market", pos.ID,
						fmt.Sprintf("bid-ask spread %.0f bps for %s", (q.Ask-q.Bid)/mid*1e4, pos.ISIN))
				}
			}
			if q.DaysSinceTrade > 5 {
				add("DQ-05", DQWarning, "market", pos.ID,
					fmt.Sprintf("stale quote, %d days since last trade", q.DaysSinceTrade))
			}

			// ===== issuer reference =====
			if iss, ok := issuers[pos.IssuerID]; ok && iss.Rating == "" {
				add("DQ-30", DQWarning, "position", pos.ID,
					fmt.Sprintf("issuer %s has no rating, default PD applies", iss.ID))
			}
		}
	}

	// ===== curve rules =====
	for _, ccy := range sortedKeys(view.snap.Curves) {
		c := view.snap.Curves[ccy]
		for i := 1; i < len(c.Rates); i++ {
			if c.Rates[i] < c.Rates[i-1]-curveInversionTolerance {
				add("DQ-20", DQWarning, "curve", ccy,
					fmt.Sprintf("%s curve inverted beyond tolerance at tenor %g", ccy, c.Tenors[i]))
				break
			}
		}
	}

	return issues
}

// ExcludedPositions returns the IDs of positions touched by an
// Error-severity issue; those positions are reported Unpriced.
func ExcludedPositions(issues []DataQualityIssue) map[string]bool {
	out := make(map[string]bool)
	for _, issue := range issues {
		if issue.Severity == DQError && issue.InstrumentID != "" {
			out[issue.InstrumentID] = true
		}
	}
	return out
}
