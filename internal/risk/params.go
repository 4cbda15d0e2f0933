package risk

// Parameter tables. Read-only configuration, not state.
// ⭐ SSOT: 테이블을 바꾸면 EngineVersion을 올릴 것 (스냅샷 식별자가 달라져야 함)

// =============================================================================
// Credit parameters
// =============================================================================

// pdByRating maps external rating to 1-year probability of default.
// Monotonic from AAA to D.
var pdByRating = map[string]float64{
	"AAA":  0.0002,
	"AA+":  0.0003,
	"AA":   0.0004,
	"AA-":  0.0005,
	"A+":   0.0010,
	"A":    0.0015,
	"A-":   0.0025,
	"BBB+": 0.0050,
	"BBB":  0.0075,
	"BBB-": 0.0120,
	"BB+":  0.0200,
	"BB":   0.0350,
	"BB-":  0.0600,
	"B+":   0.1000,
	"B":    0.1500,
	"B-":   0.2500,
	"CCC+": 0.3500,
	"CCC":  0.5000,
	"CCC-": 0.6500,
	"CC":   0.8000,
	"C":    0.9000,
	"D":    1.0000,
}

// defaultPD applies when a rating is unknown or missing (flagged by DQ-30)
const defaultPD = 0.0100

// lgdBySeniority maps seniority to loss given default
var lgdBySeniority = map[string]float64{
	"SENIOR_SECURED":   0.25,
	"SENIOR_UNSECURED": 0.40,
	"SENIOR":           0.40,
	"SUBORDINATED":     0.60,
}

// defaultLGD applies when seniority is unknown
const defaultLGD = 0.45

// PDForRating returns the 1-year PD for a rating
func PDForRating(rating string) float64 {
	if pd, ok := pdByRating[rating]; ok {
		return pd
	}
	return defaultPD
}

// LGDForSeniority returns the LGD for a seniority class
func LGDForSeniority(seniority string) float64 {
	if lgd, ok := lgdBySeniority[seniority]; ok {
		return lgd
	}
	return defaultLGD
}

// =============================================================================
// CCR parameters
// =============================================================================

// fxMajorCurrencies defines the major-currency set for FX CCF selection.
// Pairs made up entirely of majors use the 1.0% CCF, everything else 2.5%.
var fxMajorCurrencies = map[string]bool{
	"USD": true, "EUR": true, "JPY": true, "GBP": true,
	"CHF": true, "CAD": true, "AUD": true, "NZD": true, "SEK": true,
}

const (
	ccfFxMajor = 0.010
	ccfFxEM    = 0.025
)

// irCCFForTenor returns the stepped IR credit conversion factor
func irCCFForTenor(tenorYears float64) float64 {
	switch {
	case tenorYears <= 1.0:
		return 0.0
	case tenorYears <= 5.0:
		return 0.005
	case tenorYears <= 10.0:
		return 0.010
	default:
		return 0.015
	}
}

// VolRegime classifies the volatility environment for PFE multipliers
type VolRegime string

const (
	RegimeNormal   VolRegime = "Normal"
	RegimeElevated VolRegime = "Elevated" // VIX > 20
	RegimeCrisis   VolRegime = "Crisis"   // VIX > 30
)

// fxVolMultiplier returns the FX PFE multiplier by regime
func fxVolMultiplier(regime VolRegime) float64 {
	switch regime {
	case RegimeCrisis:
		return 1.5
	case RegimeElevated:
		return 1.3
	default:
		return 1.0
	}
}

// irVolMultiplier returns the IR PFE multiplier by regime
func irVolMultiplier(regime VolRegime) float64 {
	if regime == RegimeNormal {
		return 1.0
	}
	return 1.2
}

const (
	// nettingFactor applies to the root-sum-square of PFEs under ISDA netting
	nettingFactor = 0.6

	// longOptionPFECap bounds PFE at the premium paid for long options
	longOptionPFECap = 1_000_000.0

	// portfolio factor kicks in above this trade count per counterparty
	portfolioFactorMinTrades = 10
)

// cvaBuckets are the CVA time buckets in years, capped at max trade maturity
var cvaBuckets = []float64{0.25, 0.5, 1.0, 2.0, 3.0, 5.0}

// =============================================================================
// Liquidity parameters
// =============================================================================

// HQLA haircut factors and composition caps
const (
	hqlaLevel1Factor  = 1.00
	hqlaLevel2AFactor = 0.85
	hqlaLevel2BFactor = 0.50

	hqlaL2ACap = 0.40 // L2A / HQLA
	hqlaL2BCap = 0.15 // L2B / HQLA

	lcrInflowCap = 0.75 // inflows capped at 75% of outflows
)

// runOffRates maps funding class to 30-day run-off rate
var runOffRates = map[string]float64{
	"RETAIL_STABLE":        0.05,
	"RETAIL_LESS_STABLE":   0.10,
	"WHOLESALE_OPERATIONAL": 0.25,
	"WHOLESALE_UNSECURED":  0.40,
	"SECURED_L1":           0.00,
	"SECURED_L2A":          0.15,
	"SECURED_OTHER":        1.00,
	"DERIVATIVE_COLLATERAL": 1.00,
	"COMMITTED_CREDIT":     0.30,
	"COMMITTED_LIQUIDITY":  1.00,
	"DEBT_MATURING":        1.00,
}

// defaultRunOff applies to unrecognized funding classes, conservatively
const defaultRunOff = 1.00

// liquidity score per HQLA level, MV-weighted into LiquidityBlock
var liquidityScoreByLevel = map[int]float64{
	1: 1.00,
	2: 0.75, // 2A
	3: 0.50, // 2B
	0: 0.25, // non-HQLA
}

// =============================================================================
// Capital parameters
// =============================================================================

const (
	kAUMRate          = 0.0002
	kCMHRate          = 0.004
	kCMHGuaranteedRate = 0.003
	kFXRate           = 0.08
	permanentMinCapitalEUR = 75_000.0
	tier2CapFraction  = 0.25 // Tier2 counted up to 25% of Tier1
)

// kIRBucketWeight returns the interest-rate risk weight by maturity bucket
func kIRBucketWeight(tenorYears float64) float64 {
	switch {
	case tenorYears <= 1.0:
		return 0.007
	case tenorYears <= 5.0:
		return 0.0125
	case tenorYears <= 10.0:
		return 0.0175
	default:
		return 0.020
	}
}

// kCredWeightForRating returns the credit risk weight for K-CREDNR
func kCredWeightForRating(rating string) float64 {
	switch normalizeRatingBucket(rating) {
	case "AAA", "AA":
		return 0.005
	case "A":
		return 0.010
	case "BBB":
		return 0.020
	case "BB":
		return 0.040
	default:
		return 0.080
	}
}

// normalizeRatingBucket collapses notched ratings into whole-letter buckets
func normalizeRatingBucket(rating string) string {
	if rating == "" {
		return "NR"
	}
	for _, bucket := range []string{"AAA", "AA", "A", "BBB", "BB", "B", "CCC", "CC", "C", "D"} {
		if rating == bucket {
			return bucket
		}
		if len(rating) == len(bucket)+1 && rating[:len(bucket)] == bucket &&
			(rating[len(bucket)] == '+' || rating[len(bucket)] == '-') {
			return bucket
		}
	}
	return "NR"
}
