package risk

import (
	"math"
	"sort"
)

// ComputeConcentration derives Herfindahl indices and top-N exposure
// shares across issuer, country, sector and counterparty dimensions.
// Shares are fractions of total absolute exposure per dimension.
func ComputeConcentration(priced []PricedPosition, issuers map[string]Issuer, cptys map[string]Counterparty) *ConcentrationBlock {
	byIssuer := make(map[string]float64)
	byCountry := make(map[string]float64)
	bySector := make(map[string]float64)
	byCpty := make(map[string]float64)

	for _, pp := range priced {
		mv := math.Abs(pp.MV)
		if pp.Bond != nil {
			iss := issuers[pp.Position.IssuerID]
			byIssuer[pp.Position.IssuerID] += mv
			byCountry[iss.Country] += mv
			bySector[iss.Sector] += mv
		}
		if pp.Deriv != nil && pp.Position.CounterpartyID != "" {
			cp := cptys[pp.Position.CounterpartyID]
			byCpty[pp.Position.CounterpartyID] += mv
			byCountry[cp.Country] += mv
		}
	}

	block := &ConcentrationBlock{}
	issuerShares := shares(byIssuer)
	block.LargestIssuer = topN(issuerShares, 1)
	block.Top5Issuers = topN(issuerShares, 5)
	block.Top10Issuers = topN(issuerShares, 10)
	block.HHIIssuer = hhi(issuerShares)

	countryShares := shares(byCountry)
	block.LargestCountry = topN(countryShares, 1)
	block.HHICountry = hhi(countryShares)

	sectorShares := shares(bySector)
	block.LargestSector = topN(sectorShares, 1)
	block.HHISector = hhi(sectorShares)

	cptyShares := shares(byCpty)
	block.LargestCounterparty = topN(cptyShares, 1)
	block.HHICounterparty = hhi(cptyShares)

	return block
}

// shares converts an exposure map into descending fraction-of-total shares
func shares(exposures map[string]float64) []float64 {
	var total float64
	for _, v := range exposures {
		total += v
	}
	if total <= 0 {
		return nil
	}
	out := make([]float64, 0, len(exposures))
	for _, v := range exposures {
		out = append(out, v/total)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

func topN(shares []float64, n int) float64 {
	var sum float64
	for i, s := range shares {
		if i >= n {
			break
		}
		sum += s
	}
	return sum
}

// hhi is the Herfindahl-Hirschman index on fraction shares, in [0, 1]
func hhi(shares []float64) float64 {
	var sum float64
	for _, s := range shares {
		sum += s * s
	}
	return sum
}
