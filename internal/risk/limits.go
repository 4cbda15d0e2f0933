package risk

import (
	"fmt"
	"time"
)

// floorMetrics are evaluated inverted: the metric must stay ABOVE the
// configured value, so usage = limit / current.
var floorMetrics = map[string]bool{
	"LCR":           true,
	"CAPITAL_RATIO": true,
}

// metricValue resolves a limit metric code against the snapshot.
// Unknown codes and nil blocks report false.
func metricValue(s *RiskSnapshot, metric string) (float64, bool) {
	switch metric {
	case "VAR_1D_95":
		if s.Market != nil {
			return s.Market.Var1d95, true
		}
	case "STRESSED_VAR":
		if s.Market != nil {
			return s.Market.StressedVar, true
		}
	case "DV01":
		if s.Market != nil {
			return s.Market.DV01Total, true
		}
	case "TOTAL_MARKET_VALUE":
		if s.Market != nil {
			return s.Market.TotalMarketValue, true
		}
	case "EXPECTED_LOSS":
		if s.Credit != nil {
			return s.Credit.ExpectedLoss, true
		}
	case "CREDIT_EXPOSURE":
		if s.Credit != nil {
			return s.Credit.TotalExposure, true
		}
	case "CVA":
		if s.Credit != nil {
			return s.Credit.CVATotal, true
		}
	case "PFE":
		if s.CCR != nil {
			return s.CCR.PFECurrent, true
		}
	case "EAD_CCR":
		if s.CCR != nil {
			return s.CCR.EADTotal, true
		}
	case "LCR":
		if s.Liquidity != nil && !s.Liquidity.LCRInfinite {
			return s.Liquidity.LCRRatio, true
		}
	case "LIQUIDATION_COST_1D":
		if s.Liquidity != nil {
			return s.Liquidity.LiquidationCost1d, true
		}
	case "CAPITAL_RATIO":
		if s.Capital != nil {
			return s.Capital.CapitalRatio, true
		}
	case "K_NPR":
		if s.Capital != nil {
			return s.Capital.KNPR, true
		}
	case "HHI_ISSUER":
		if s.Concentration != nil {
			return s.Concentration.HHIIssuer, true
		}
	case "LARGEST_ISSUER":
		if s.Concentration != nil {
			return s.Concentration.LargestIssuer, true
		}
	}
	return 0, false
}

// EvaluateLimits maps configured limits against snapshot metrics and
// applies the regulatory floors. Green evaluations count in the summary
// but emit no alert.
func EvaluateLimits(s *RiskSnapshot, limits []Limit, now time.Time) ([]Alert, AlertsSummary) {
	var alerts []Alert
	var summary AlertsSummary

	for _, lim := range limits {
		current, ok := metricValue(s, lim.Metric)
		if !ok || lim.Value == 0 {
			continue
		}

		var usage float64
		if floorMetrics[lim.Metric] {
			if current <= 0 {
				usage = 2 // 0 이하 바닥 지표는 즉시 위반
			} else {
				usage = lim.Value / current
			}
		} else {
			usage = current / lim.Value
		}

		sev := severityForUsage(usage, lim.Warning, lim.Critical)
		if sev == SeverityGreen {
			summary.Green++
			continue
		}
		countSeverity(&summary, sev)
		alerts = append(alerts, Alert{
			PortfolioID:  lim.PortfolioID,
			Metric:       lim.Metric,
			CurrentValue: current,
			LimitValue:   lim.Value,
			Usage:        usage,
			Severity:     sev,
			Description: fmt.Sprintf("%s at %.4g against limit %.4g (%.0f%% usage), severity %s",
				lim.Metric, current, lim.Value, usage*100, sev),
			CreatedAt: now,
		})
	}

	// ===== regulatory floors, independent of configured limits =====
	if s.Capital != nil && s.Capital.CapitalRatio < 1.00 {
		countSeverity(&summary, SeverityCritical)
		alerts = append(alerts, Alert{
			PortfolioID:  s.PortfolioID,
			Metric:       "CAPITAL_RATIO",
			CurrentValue: s.Capital.CapitalRatio,
			LimitValue:   1.00,
			Usage:        1.00 / nonZero(s.Capital.CapitalRatio),
			Severity:     SeverityCritical,
			Description: fmt.Sprintf("capital ratio %.2f below regulatory minimum 1.00, own funds shortfall %.2f",
				s.Capital.CapitalRatio, s.Capital.RequiredCap-s.Capital.OwnFunds),
			CreatedAt: now,
		})
	}
	if s.Liquidity != nil && !s.Liquidity.LCRInfinite {
		if sev := lcrFloorSeverity(s.Liquidity.LCRRatio); sev != SeverityGreen {
			countSeverity(&summary, sev)
			alerts = append(alerts, Alert{
				PortfolioID:  s.PortfolioID,
				Metric:       "LCR",
				CurrentValue: s.Liquidity.LCRRatio,
				LimitValue:   1.00,
				Usage:        1.00 / nonZero(s.Liquidity.LCRRatio),
				Severity:     sev,
				Description: fmt.Sprintf("LCR %.2f against regulatory floor 1.00, net outflows %.2f",
					s.Liquidity.LCRRatio, s.Liquidity.NetOutflows30d),
				CreatedAt: now,
			})
		}
	}

	return alerts, summary
}

// severityForUsage maps usage into the severity bands
func severityForUsage(usage, warning, critical float64) Severity {
	switch {
	case usage >= 1.0:
		return SeverityCritical
	case usage >= critical:
		return SeverityRed
	case usage >= warning:
		return SeverityYellow
	default:
		return SeverityGreen
	}
}

// lcrFloorSeverity applies the LCR regulatory bands
func lcrFloorSeverity(lcr float64) Severity {
	switch {
	case lcr < 1.00:
		return SeverityCritical
	case lcr < 1.05:
		return SeverityRed
	case lcr < 1.10:
		return SeverityYellow
	default:
		return SeverityGreen
	}
}

func countSeverity(s *AlertsSummary, sev Severity) {
	switch sev {
	case SeverityYellow:
		s.Yellow++
	case SeverityRed:
		s.Red++
	case SeverityCritical:
		s.Critical++
	default:
		s.Green++
	}
}

func nonZero(x float64) float64 {
	if x == 0 {
		return 1e-12
	}
	return x
}
