package risk

import "math"

// hqlaLevel classifies a bond into HQLA levels:
// 1 = Level 1, 2 = Level 2A, 3 = Level 2B, 0 = non-HQLA
func hqlaLevel(issuer Issuer) int {
	bucket := normalizeRatingBucket(issuer.Rating)
	if issuer.Sector == "SOVEREIGN" && (bucket == "AAA" || bucket == "AA") {
		return 1
	}
	switch bucket {
	case "AAA", "AA", "A":
		return 2
	case "BBB":
		return 3
	default:
		return 0
	}
}

// LiquidityInputs bundles the per-level HQLA values before caps
type hqlaBuckets struct {
	level1 float64
	level2A float64 // after haircut
	level2B float64
}

// applyCaps enforces the composition caps deterministically in two passes:
// first L2A against L1, then L2B against the L1+L2A stack.
func (h hqlaBuckets) applyCaps(l2aCap, l2bCap float64) float64 {
	l2a := math.Min(h.level2A, h.level1*l2aCap/(1-l2aCap))
	l2b := math.Min(h.level2B, (h.level1+l2a)*l2bCap/(1-l2bCap))
	return h.level1 + l2a + l2b
}

// ComputeLiquidity evaluates HQLA, the LCR, funding gaps and liquidation
// cost over the bond book and the funding profile.
func ComputeLiquidity(priced []PricedPosition, issuers map[string]Issuer, view *MarketView, funding FundingProfile, cfg EngineConfig) *LiquidityBlock {
	var buckets hqlaBuckets
	buckets.level1 = funding.Cash * hqlaLevel1Factor

	var scoreWeighted, mvTotal float64
	var cost1d, cost5d float64

	for _, pp := range priced {
		if pp.Bond == nil {
			continue
		}
		issuer := issuers[pp.Position.IssuerID]
		level := hqlaLevel(issuer)
		switch level {
		case 1:
			buckets.level1 += pp.MV * hqlaLevel1Factor
		case 2:
			buckets.level2A += pp.MV * hqlaLevel2AFactor
		case 3:
			buckets.level2B += pp.MV * hqlaLevel2BFactor
		}

		scoreWeighted += pp.MV * liquidityScoreByLevel[level]
		mvTotal += pp.MV

		if q, err := view.Quote(pp.Position.ISIN); err == nil && q.Ask > q.Bid && q.Volume > 0 {
			qty := pp.Position.Notional / 100.0
			spreadCost := 0.5 * (q.Ask - q.Bid) * qty
			cost1d += spreadCost * depthImpact(qty/q.Volume)
			cost5d += spreadCost * depthImpact(qty/(5*q.Volume))
		}
	}

	hqla := buckets.applyCaps(cfg.LcrL2ACap, cfg.LcrL2BCap)

	var outflows float64
	for _, entry := range funding.Outflows {
		rate, ok := runOffRates[entry.Class]
		if !ok {
			rate = defaultRunOff
		}
		outflows += entry.Amount * rate
	}
	inflowsCapped := math.Min(funding.Inflows, cfg.LcrInflowCap*outflows)
	netOutflows := outflows - inflowsCapped

	block := &LiquidityBlock{
		HQLA:              hqla,
		Outflows30d:       outflows,
		Inflows30dCapped:  inflowsCapped,
		NetOutflows30d:    netOutflows,
		LiquidationCost1d: cost1d,
		LiquidationCost5d: cost5d,
	}
	if netOutflows > 0 {
		block.LCRRatio = hqla / netOutflows
	} else {
		// 순유출 0 이하: LCR 무한대 센티널
		block.LCRInfinite = true
		block.LCRRatio = math.MaxFloat64
	}

	for _, bucket := range []string{"0-7d", "7-30d"} {
		block.FundingGapShortTerm += funding.LiabilitiesByBucket[bucket] - funding.AssetsByBucket[bucket]
	}

	if mvTotal > 0 {
		block.LiquidityScore = scoreWeighted / mvTotal
	}
	return block
}

// depthImpact scales liquidation cost by order size relative to depth:
// f(x) = 1 + min(9, x)
func depthImpact(x float64) float64 {
	return 1 + math.Min(9, x)
}
