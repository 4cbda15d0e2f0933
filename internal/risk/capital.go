package risk

import "math"

// ComputeCapital derives the K-factor capital requirement and the capital
// ratio. CapitalRatio is a dimensionless fraction: 1.00 = 100%.
func ComputeCapital(priced []PricedPosition, issuers map[string]Issuer, portfolio Portfolio, input CapitalInput, cfg EngineConfig) *CapitalBlock {
	block := &CapitalBlock{}

	// ===== K-IR: net position per tenor bucket =====
	// 버킷: 0-1Y, 1-5Y, 5-10Y, >10Y (가중치를 버킷 키로 사용)
	netByBucket := make(map[float64]float64)
	for _, pp := range priced {
		var exposure, tenor float64
		switch {
		case pp.Bond != nil:
			exposure = pp.MV
			tenor = pp.Bond.TimeToMaturity
		case pp.Position.Kind == KindIrSwap || pp.Position.Kind == KindCapFloor || pp.Position.Kind == KindSwaption:
			exposure = directionSign(pp.Position.Direction) * pp.Position.Notional
			tenor = pp.Deriv.TimeToMaturity
		default:
			continue
		}
		netByBucket[kIRBucketWeight(tenor)] += exposure
	}
	for weight, net := range netByBucket {
		block.KIR += math.Abs(net) * weight
	}

	// ===== K-CREDNR: issuer credit weights on the bond book =====
	for _, pp := range priced {
		if pp.Bond == nil {
			continue
		}
		issuer := issuers[pp.Position.IssuerID]
		block.KCredNR += math.Abs(pp.MV) * kCredWeightForRating(issuer.Rating)
	}

	// ===== K-FX: net open positions in non-base currencies =====
	netByCcy := make(map[string]float64)
	for _, pp := range priced {
		if pp.Position.Currency != portfolio.BaseCurrency {
			netByCcy[pp.Position.Currency] += pp.MV
		}
	}
	var netLong, netShort float64
	for _, net := range netByCcy {
		if net > 0 {
			netLong += net
		} else {
			netShort += net
		}
	}
	block.KFX = kFXRate * math.Max(netLong, math.Abs(netShort))

	block.KNPR = block.KIR + block.KCredNR + block.KFX

	// ===== firm-level K-factors =====
	block.KAUM = kAUMRate * input.AUMAvg
	cmhRate := kCMHRate
	if input.ClientMoneyGuaranteed {
		cmhRate = kCMHGuaranteedRate
	}
	block.KCMH = cmhRate * input.ClientMoneyHeldAvg
	block.KCOH = cfg.KCohRate * input.ClientOrderVolume

	block.TotalKReq = block.KNPR + block.KAUM + block.KCMH + block.KCOH
	block.RequiredCap = math.Max(cfg.PermanentMinCapital, block.TotalKReq)
	block.OwnFunds = input.Tier1 + math.Min(input.Tier2, tier2CapFraction*input.Tier1)
	if block.RequiredCap > 0 {
		block.CapitalRatio = block.OwnFunds / block.RequiredCap
	}
	return block
}
