package risk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Raw market data snapshot
// =============================================================================

// Quote is one instrument's market data for the as-of date
type Quote struct {
	CleanPrice     float64 `json:"clean_price"` // per 100 nominal
	PrevClose      float64 `json:"prev_close"`
	Yield          float64 `json:"yield"`
	SpreadBps      float64 `json:"spread_bps"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Volume         float64 `json:"volume"` // average daily volume, units of 100 nominal
	DaysSinceTrade int     `json:"days_since_trade"`
}

// YieldCurve is an ordered sequence of (tenor, zero rate).
// Tenors are strictly increasing; rates are continuously compounded.
type YieldCurve struct {
	Currency string    `json:"currency"`
	Tenors   []float64 `json:"tenors"` // years
	Rates    []float64 `json:"rates"`
}

// VolSurface is a (tenor, strike) implied vol grid.
// Interpolation is bilinear on (log-strike, sqrt-tenor); outside the grid
// the nearest edge value applies.
type VolSurface struct {
	Underlying string      `json:"underlying"`
	Tenors     []float64   `json:"tenors"`  // years, increasing
	Strikes    []float64   `json:"strikes"` // increasing
	Vols       [][]float64 `json:"vols"`    // [tenor][strike]
}

// MarketDataSnapshot is the raw, unvalidated market data bundle.
// Immutable once built; identified by a content hash.
type MarketDataSnapshot struct {
	AsOfDate   time.Time             `json:"as_of_date"`
	Quotes     map[string]Quote      `json:"quotes"`   // ISIN -> quote
	Curves     map[string]YieldCurve `json:"curves"`   // currency -> curve
	Surfaces   map[string]VolSurface `json:"surfaces"` // underlying -> surface
	FxRates    map[string]float64    `json:"fx_rates"` // "EURUSD" -> rate
	CdsSpreads map[string]float64    `json:"cds_spreads"` // issuer -> spread (decimal p.a.)
	VIX        float64               `json:"vix"`
}

// =============================================================================
// Market View (validated, O(1) lookups)
// =============================================================================

// MarketView is the validated read-only access layer over a snapshot.
// Two views built from the same raw data compare equal by ID.
type MarketView struct {
	snap *MarketDataSnapshot
	id   string
}

// NewMarketView validates a snapshot against the positions that will price
// off it. Construction fails on structural defects only: an unresolvable
// ISIN or currency curve, a non-positive FX rate, or a curve whose tenors
// are not strictly increasing. Quote-level anomalies (bid > ask, stale
// prices) are left to the data quality evaluator.
func NewMarketView(snap *MarketDataSnapshot, positions []Position) (*MarketView, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInputValidation)
	}

	for pair, rate := range snap.FxRates {
		if rate <= 0 || !isFinite(rate) {
			return nil, fmt.Errorf("%w: fx rate %s = %g", ErrInputValidation, pair, rate)
		}
	}

	for ccy, curve := range snap.Curves {
		if len(curve.Tenors) == 0 || len(curve.Tenors) != len(curve.Rates) {
			return nil, fmt.Errorf("%w: curve %s malformed", ErrInputValidation, ccy)
		}
		for i := 1; i < len(curve.Tenors); i++ {
			if curve.Tenors[i] <= curve.Tenors[i-1] {
				return nil, fmt.Errorf("%w: curve %s tenors not strictly increasing at index %d",
					ErrInputValidation, ccy, i)
			}
		}
	}

	for i := range positions {
		pos := &positions[i]
		if pos.IsBond() {
			if _, ok := snap.Quotes[pos.ISIN]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingMarketData, pos.ISIN)
			}
		}
		if _, ok := snap.Curves[pos.Currency]; !ok {
			return nil, fmt.Errorf("%w: no %s curve", ErrMissingMarketData, pos.Currency)
		}
	}

	return &MarketView{snap: snap, id: snap.ContentHash()}, nil
}

// ID returns the content hash identifying the underlying snapshot
func (v *MarketView) ID() string {
	return v.id
}

// AsOfDate returns the snapshot date
func (v *MarketView) AsOfDate() time.Time {
	return v.snap.AsOfDate
}

// VIX returns the snapshot VIX level (0 when not provided)
func (v *MarketView) VIX() float64 {
	return v.snap.VIX
}

// Quote returns the quote for an ISIN
func (v *MarketView) Quote(isin string) (Quote, error) {
	q, ok := v.snap.Quotes[isin]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrMissingMarketData, isin)
	}
	return q, nil
}

// Curve returns the zero curve for a currency
func (v *MarketView) Curve(currency string) (YieldCurve, error) {
	c, ok := v.snap.Curves[currency]
	if !ok {
		return YieldCurve{}, fmt.Errorf("%w: no %s curve", ErrMissingMarketData, currency)
	}
	return c, nil
}

// ZeroRate interpolates the zero rate for a currency and tenor.
// Linear in zero rate between pillars, flat beyond the ends.
func (v *MarketView) ZeroRate(currency string, tenorYears float64) (float64, error) {
	c, err := v.Curve(currency)
	if err != nil {
		return 0, err
	}
	return c.Interpolate(tenorYears), nil
}

// DiscountFactor returns exp(-z*t) off the currency zero curve
func (v *MarketView) DiscountFactor(currency string, tenorYears float64) (float64, error) {
	z, err := v.ZeroRate(currency, tenorYears)
	if err != nil {
		return 0, err
	}
	return math.Exp(-z * tenorYears), nil
}

// Vol interpolates implied volatility for an underlying
func (v *MarketView) Vol(underlying string, tenorYears, strike float64) (float64, error) {
	s, ok := v.snap.Surfaces[underlying]
	if !ok {
		return 0, fmt.Errorf("%w: no %s vol surface", ErrMissingMarketData, underlying)
	}
	return s.Interpolate(tenorYears, strike), nil
}

// FxRate returns the rate for a currency pair like "EURUSD".
// The inverse pair is derived when only the reciprocal is quoted.
func (v *MarketView) FxRate(pair string) (float64, error) {
	if len(pair) == 6 && pair[:3] == pair[3:] {
		return 1.0, nil
	}
	if r, ok := v.snap.FxRates[pair]; ok {
		return r, nil
	}
	if len(pair) == 6 {
		inverse := pair[3:] + pair[:3]
		if r, ok := v.snap.FxRates[inverse]; ok {
			return 1.0 / r, nil
		}
	}
	return 0, fmt.Errorf("%w: fx %s", ErrMissingMarketData, pair)
}

// CdsSpread returns the CDS spread for an issuer, if quoted
func (v *MarketView) CdsSpread(issuerID string) (float64, bool) {
	s, ok := v.snap.CdsSpreads[issuerID]
	return s, ok
}

// Regime resolves the volatility regime from the VIX level,
// unless overridden in config.
func (v *MarketView) Regime(override string) VolRegime {
	switch override {
	case "Normal":
		return RegimeNormal
	case "Elevated":
		return RegimeElevated
	case "Crisis":
		return RegimeCrisis
	}
	switch {
	case v.snap.VIX > 30:
		return RegimeCrisis
	case v.snap.VIX > 20:
		return RegimeElevated
	default:
		return RegimeNormal
	}
}

// =============================================================================
// Interpolation
// =============================================================================

// Interpolate returns the zero rate at a tenor, linear between pillars
// and flat beyond the curve ends.
func (c YieldCurve) Interpolate(tenor float64) float64 {
	n := len(c.Tenors)
	if n == 0 {
		return 0
	}
	if tenor <= c.Tenors[0] {
		return c.Rates[0]
	}
	if tenor >= c.Tenors[n-1] {
		return c.Rates[n-1]
	}
	i := sort.SearchFloat64s(c.Tenors, tenor)
	// c.Tenors[i-1] < tenor <= c.Tenors[i]
	t0, t1 := c.Tenors[i-1], c.Tenors[i]
	r0, r1 := c.Rates[i-1], c.Rates[i]
	w := (tenor - t0) / (t1 - t0)
	return r0 + w*(r1-r0)
}

// Interpolate returns the implied vol at (tenor, strike), bilinear on
// (sqrt-tenor, log-strike) coordinates with flat extrapolation.
func (s VolSurface) Interpolate(tenor, strike float64) float64 {
	if len(s.Tenors) == 0 || len(s.Strikes) == 0 {
		return 0
	}

	ti, tw := edgeWeight(sqrtAxis(s.Tenors), math.Sqrt(math.Max(tenor, 0)))
	ki, kw := edgeWeight(logAxis(s.Strikes), safeLog(strike))

	v00 := s.Vols[ti][ki]
	v01 := s.Vols[ti][min(ki+1, len(s.Strikes)-1)]
	v10 := s.Vols[min(ti+1, len(s.Tenors)-1)][ki]
	v11 := s.Vols[min(ti+1, len(s.Tenors)-1)][min(ki+1, len(s.Strikes)-1)]

	top := v00 + kw*(v01-v00)
	bot := v10 + kw*(v11-v10)
	return top + tw*(bot-top)
}

// edgeWeight locates x on an increasing axis, returning the lower index
// and the interpolation weight in [0, 1]. Outside the axis the weight
// clamps to the nearest edge.
func edgeWeight(axis []float64, x float64) (int, float64) {
	n := len(axis)
	if n == 1 || x <= axis[0] {
		return 0, 0
	}
	if x >= axis[n-1] {
		return n - 2, 1
	}
	i := sort.SearchFloat64s(axis, x)
	lo, hi := axis[i-1], axis[i]
	return i - 1, (x - lo) / (hi - lo)
}

func sqrtAxis(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Sqrt(math.Max(v, 0))
	}
	return out
}

func logAxis(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = safeLog(v)
	}
	return out
}

func safeLog(x float64) float64 {
	if x <= 0 {
		return -50 // below any quoted strike
	}
	return math.Log(x)
}

// =============================================================================
// Content hash
// =============================================================================

// ContentHash returns the SHA-256 of the canonical serialization:
// keys sorted lexicographically, floats formatted %.15g.
// ⭐ SSOT: market_data_snapshot_id는 이 해시로만 만든다
func (s *MarketDataSnapshot) ContentHash() string {
	var b strings.Builder

	fmt.Fprintf(&b, "as_of=%s\n", s.AsOfDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "vix=%.15g\n", s.VIX)

	for _, isin := range sortedKeys(s.Quotes) {
		q := s.Quotes[isin]
		fmt.Fprintf(&b, "q:%s=%.15g,%.15g,%.15g,%.15g,%.15g,%.15g,%.15g,%d\n",
			isin, q.CleanPrice, q.PrevClose, q.Yield, q.SpreadBps, q.Bid, q.Ask, q.Volume, q.DaysSinceTrade)
	}
	for _, ccy := range sortedKeys(s.Curves) {
		c := s.Curves[ccy]
		fmt.Fprintf(&b, "c:%s=", ccy)
		for i := range c.Tenors {
			fmt.Fprintf(&b, "%.15g:%.15g;", c.Tenors[i], c.Rates[i])
		}
		b.WriteByte('\n')
	}
	for _, und := range sortedKeys(s.Surfaces) {
		sf := s.Surfaces[und]
		fmt.Fprintf(&b, "v:%s=", und)
		for i := range sf.Tenors {
			for j := range sf.Strikes {
				fmt.Fprintf(&b, "%.15g:%.15g:%.15g;", sf.Tenors[i], sf.Strikes[j], sf.Vols[i][j])
			}
		}
		b.WriteByte('\n')
	}
	for _, pair := range sortedKeys(s.FxRates) {
		fmt.Fprintf(&b, "fx:%s=%.15g\n", pair, s.FxRates[pair])
	}
	for _, issuer := range sortedKeys(s.CdsSpreads) {
		fmt.Fprintf(&b, "cds:%s=%.15g\n", issuer, s.CdsSpreads[issuer])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
