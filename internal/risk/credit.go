package risk

import "sort"

// PricedPosition pairs a position with its valuation, MV converted to the
// portfolio base currency. Exactly one of Bond/Deriv is set.
type PricedPosition struct {
	Position *Position
	MV       float64 // base currency, signed
	Bond     *BondAnalytics
	Deriv    *DerivAnalytics
}

// IssuerExposure is the per-issuer credit decomposition
type IssuerExposure struct {
	IssuerID     string  `json:"issuer_id"`
	Rating       string  `json:"rating"`
	EAD          float64 `json:"ead"`
	PD           float64 `json:"pd"`
	LGD          float64 `json:"lgd"`
	ExpectedLoss float64 `json:"expected_loss"`
}

// ComputeCredit aggregates issuer credit risk over the bond book.
// EAD per issuer is the sum of bond market values; EL = PD * LGD * EAD.
// CVATotal on the block is filled in by the assembler from the CCR result.
func ComputeCredit(priced []PricedPosition, issuers map[string]Issuer) (*CreditBlock, []IssuerExposure) {
	eadByIssuer := make(map[string]float64)
	for _, pp := range priced {
		if pp.Bond == nil {
			continue
		}
		eadByIssuer[pp.Position.IssuerID] += pp.MV
	}

	ids := make([]string, 0, len(eadByIssuer))
	for id := range eadByIssuer {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	block := &CreditBlock{}
	exposures := make([]IssuerExposure, 0, len(ids))
	for _, id := range ids {
		ead := eadByIssuer[id]
		iss := issuers[id]
		pd := PDForRating(iss.Rating)
		lgd := LGDForSeniority(iss.Seniority)
		el := pd * lgd * ead

		exposures = append(exposures, IssuerExposure{
			IssuerID:     id,
			Rating:       iss.Rating,
			EAD:          ead,
			PD:           pd,
			LGD:          lgd,
			ExpectedLoss: el,
		})
		block.TotalExposure += ead
		block.ExpectedLoss += el
	}
	return block, exposures
}
