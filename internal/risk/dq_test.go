package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dqFixture(t *testing.T, quote Quote) (*MarketView, []Position) {
	t.Helper()
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	positions := []Position{{
		ID: "POS-1", Kind: KindBond, Currency: "EUR", Notional: 1_000_000,
		ISIN: "XS1", IssuerID: "ISS-1",
		TradeDate: asOf.AddDate(-1, 0, 0), Maturity: asOf.AddDate(3, 0, 0),
	}}
	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Quotes:   map[string]Quote{"XS1": quote},
		Curves:   map[string]YieldCurve{"EUR": {Currency: "EUR", Tenors: []float64{1, 5}, Rates: []float64{0.02, 0.025}}},
	}
	view, err := NewMarketView(snap, positions)
	require.NoError(t, err)
	return view, positions
}

func rulesFired(issues []DataQualityIssue) map[string]DQSeverity {
	out := make(map[string]DQSeverity)
	for _, issue := range issues {
		out[issue.Rule] = issue.Severity
	}
	return out
}

func TestCleanQuoteNoIssues(t *testing.T) {
	view, positions := dqFixture(t, Quote{CleanPrice: 99, PrevClose: 99.2, Bid: 98.9, Ask: 99.1, DaysSinceTrade: 1})
	issues := EvaluateDQ(view, positions, map[string]Issuer{"ISS-1": {ID: "ISS-1", Rating: "A"}}, "EUR", time.Now())
	assert.Empty(t, issues)
}

func TestPriceRules(t *testing.T) {
	now := time.Now()
	issuers := map[string]Issuer{"ISS-1": {ID: "ISS-1", Rating: "A"}}

	// DQ-02: 가격 0
	view, positions := dqFixture(t, Quote{CleanPrice: 0})
	fired := rulesFired(EvaluateDQ(view, positions, issuers, "EUR", now))
	assert.Equal(t, DQError, fired["DQ-02"])

	// DQ-01: 일중 50% 초과 급변
	view, positions = dqFixture(t, Quote{CleanPrice: 160, PrevClose: 100})
	fired = rulesFired(EvaluateDQ(view, positions, issuers, "EUR", now))
	assert.Equal(t, DQWarning, fired["DQ-01"])

	// DQ-03: 매수호가 > 매도호가
	view, positions = dqFixture(t, Quote{CleanPrice: 99, Bid: 99.5, Ask: 99.0})
	fired = rulesFired(EvaluateDQ(view, positions, issuers, "EUR", now))
	assert.Equal(t, DQError, fired["DQ-03"])

	// DQ-04: 스프레드 500bp 초과
	view, positions = dqFixture(t, Quote{CleanPrice: 99, Bid: 90, Ask: 99})
	fired = rulesFired(EvaluateDQ(view, positions, issuers, "EUR", now))
	assert.Equal(t, DQWarning, fired["DQ-04"])

	// DQ-05: 6일 이상 미체결
	view, positions = dqFixture(t, Quote{CleanPrice: 99, DaysSinceTrade: 6})
	fired = rulesFired(EvaluateDQ(view, positions, issuers, "EUR", now))
	assert.Equal(t, DQWarning, fired["DQ-05"])

	// 매수호가 == 매도호가: 유효, 스프레드 0
	view, positions = dqFixture(t, Quote{CleanPrice: 99, Bid: 99, Ask: 99})
	fired = rulesFired(EvaluateDQ(view, positions, issuers, "EUR", now))
	assert.NotContains(t, fired, "DQ-03")
	assert.NotContains(t, fired, "DQ-04")
}

func TestDateRules(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	view, _ := dqFixture(t, Quote{CleanPrice: 99})

	future := Position{
		ID: "POS-F", Kind: KindBond, Currency: "EUR", Notional: 1, ISIN: "XS1",
		TradeDate: asOf.AddDate(0, 0, 1), Maturity: asOf.AddDate(1, 0, 0),
	}
	matured := Position{
		ID: "POS-M", Kind: KindBond, Currency: "EUR", Notional: 1, ISIN: "XS1",
		TradeDate: asOf.AddDate(-1, 0, 0), Maturity: asOf, // as_of 당일 만기
	}
	fired := rulesFired(EvaluateDQ(view, []Position{future, matured}, nil, "EUR", time.Now()))
	assert.Equal(t, DQError, fired["DQ-40"])
	assert.Equal(t, DQError, fired["DQ-41"])
}

func TestMissingFxRule(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	pos := Position{
		ID: "POS-USD", Kind: KindFxForward, Currency: "USD", Notional: 1, Underlying: "EURUSD",
		TradeDate: asOf.AddDate(-1, 0, 0), Maturity: asOf.AddDate(1, 0, 0),
	}
	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Curves:   map[string]YieldCurve{"USD": {Currency: "USD", Tenors: []float64{1}, Rates: []float64{0.04}}},
	}
	view, err := NewMarketView(snap, []Position{pos})
	require.NoError(t, err)

	fired := rulesFired(EvaluateDQ(view, []Position{pos}, nil, "EUR", time.Now()))
	assert.Equal(t, DQError, fired["DQ-10"])
}

func TestCurveInversionRule(t *testing.T) {
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Curves: map[string]YieldCurve{
			"EUR": {Currency: "EUR", Tenors: []float64{1, 2, 5}, Rates: []float64{0.05, 0.04, 0.045}},
		},
	}
	view, err := NewMarketView(snap, nil)
	require.NoError(t, err)

	fired := rulesFired(EvaluateDQ(view, nil, nil, "EUR", time.Now()))
	assert.Equal(t, DQWarning, fired["DQ-20"], "100bp inversion exceeds the 50bp tolerance")
}

func TestMissingRatingRule(t *testing.T) {
	view, positions := dqFixture(t, Quote{CleanPrice: 99})
	issuers := map[string]Issuer{"ISS-1": {ID: "ISS-1"}} // 무등급
	fired := rulesFired(EvaluateDQ(view, positions, issuers, "EUR", time.Now()))
	assert.Equal(t, DQWarning, fired["DQ-30"])
}

func TestExcludedPositions(t *testing.T) {
	issues := []DataQualityIssue{
		{Rule: "DQ-02", Severity: DQError, InstrumentID: "POS-1"},
		{Rule: "DQ-05", Severity: DQWarning, InstrumentID: "POS-2"},
		{Rule: "DQ-20", Severity: DQWarning, InstrumentID: "EUR"},
	}
	excluded := ExcludedPositions(issues)
	assert.True(t, excluded["POS-1"])
	assert.False(t, excluded["POS-2"], "warnings never exclude a position")
}
