package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroCouponBond(notional float64, asOf time.Time, years int) Position {
	return Position{
		ID:          "BOND-ZC",
		PortfolioID: "PF-1",
		Kind:        KindBond,
		Currency:    "EUR",
		Notional:    notional,
		ISIN:        "XS0000000001",
		DayCount:    Act365,
		TradeDate:   asOf.AddDate(-1, 0, 0),
		Maturity:    asOf.AddDate(0, 0, years*365), // ACT/365 exact year fractions
	}
}

func TestZeroCouponAnalytics(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	pos := zeroCouponBond(1_000_000, asOf, 5)

	a, err := AnalyzeBondAtYield(&pos, asOf, 0.05)
	require.NoError(t, err)

	// 1e6 * 1.05^-5
	assert.InDelta(t, 783_526.17, a.MarketValue, 0.01)
	assert.InDelta(t, 5.0, a.Macaulay, 1e-9)
	assert.InDelta(t, 5.0/1.05, a.Modified, 1e-9)
	assert.InDelta(t, 373.11, a.DV01, 0.01)
	assert.InDelta(t, 5*6/(1.05*1.05), a.Convexity, 1e-9)
	assert.Zero(t, a.Accrued)

	t.Logf("zero coupon: price=%.2f ytm=%.4f dv01=%.2f", a.MarketValue, a.YTM, a.DV01)
}

func TestYTMRoundTrip(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	pos := zeroCouponBond(1_000_000, asOf, 5)

	cfs, err := BondCashflows(&pos, asOf)
	require.NoError(t, err)

	for _, y := range []float64{-0.01, 0.0, 0.025, 0.05, 0.12, 0.30} {
		price := PriceFromYield(cfs, y)
		solved, err := SolveYTM(cfs, price, 1e-10, 50)
		require.NoError(t, err, "y=%g", y)
		assert.InDelta(t, y, solved, 1e-8)
		// 재가격은 단위 명목당 1e-6 이내
		assert.InDelta(t, price, PriceFromYield(cfs, solved), 1e-6*pos.Notional/100)
	}
}

func TestCouponBondFromQuote(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	pos := Position{
		ID:       "BOND-C",
		Kind:     KindBond,
		Currency: "EUR",
		Notional: 1_000_000,
		ISIN:     "XS0000000002",
		Coupon:   0.05,
		CouponFreq: 1,
		DayCount: Act365,
		TradeDate: asOf.AddDate(-1, 0, 0),
		Maturity:  asOf.AddDate(0, 0, 5*365),
	}

	// 액면가 부근 호가: YTM은 쿠폰 근처 (일자 이동으로 수 bp 오차 허용)
	a, err := AnalyzeBond(&pos, asOf, Quote{CleanPrice: 100}, 1e-10, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, a.YTM, 5e-4)
	assert.Greater(t, a.DV01, 0.0, "long fixed-rate bond must have positive DV01")
	assert.Less(t, a.Macaulay, 5.0, "coupons shorten duration below maturity")
	assert.Greater(t, a.Modified, 0.0)
}

func TestAccruedInterest(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	pos := Position{
		ID:       "BOND-A",
		Kind:     KindBond,
		Currency: "EUR",
		Notional: 1_000_000,
		Coupon:   0.04,
		CouponFreq: 2,
		DayCount: Act365,
		TradeDate: asOf.AddDate(-2, 0, 0),
		Maturity:  time.Date(2027, 9, 30, 0, 0, 0, 0, time.UTC),
	}

	accrued := AccruedInterest(&pos, asOf)
	assert.Greater(t, accrued, 0.0)
	assert.Less(t, accrued, pos.Notional*pos.Coupon/2, "accrued below a full coupon")
}

func TestYTMNotConverged(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	pos := zeroCouponBond(1_000_000, asOf, 5)
	cfs, err := BondCashflows(&pos, asOf)
	require.NoError(t, err)

	// 가격이 구간 밖: [-0.5, 1.0]에 근이 없음
	_, err = SolveYTM(cfs, 1e12, 1e-10, 50)
	assert.ErrorIs(t, err, ErrYtmNotConverged)
}

func TestBondCashflowsValidation(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	matured := zeroCouponBond(1_000_000, asOf, 5)
	matured.Maturity = asOf
	_, err := BondCashflows(&matured, asOf)
	assert.ErrorIs(t, err, ErrInputValidation)

	negative := zeroCouponBond(-1, asOf, 5)
	_, err = BondCashflows(&negative, asOf)
	assert.ErrorIs(t, err, ErrInputValidation)
}

func TestYearFractionConventions(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC) // 181 days

	assert.InDelta(t, 181.0/365.0, YearFraction(Act365, start, end), 1e-12)
	assert.InDelta(t, 181.0/360.0, YearFraction(Act360, start, end), 1e-12)
	assert.InDelta(t, 181.0/365.25, YearFraction(ActAct, start, end), 1e-12)
	assert.InDelta(t, 0.5, YearFraction(Thirty360, start, end), 1e-12)
}
