package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func derivView(t *testing.T) (*MarketView, time.Time) {
	t.Helper()
	asOf := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	snap := &MarketDataSnapshot{
		AsOfDate: asOf,
		Curves: map[string]YieldCurve{
			"EUR": {Currency: "EUR", Tenors: []float64{0.25, 1, 5, 10}, Rates: []float64{0.020, 0.022, 0.026, 0.028}},
			"USD": {Currency: "USD", Tenors: []float64{0.25, 1, 5, 10}, Rates: []float64{0.045, 0.044, 0.042, 0.041}},
		},
		Surfaces: map[string]VolSurface{
			"EURUSD": {Underlying: "EURUSD", Tenors: []float64{0.5, 1, 2}, Strikes: []float64{1.0, 1.1, 1.2},
				Vols: [][]float64{{0.10, 0.09, 0.10}, {0.11, 0.10, 0.11}, {0.12, 0.11, 0.12}}},
			"EUR": {Underlying: "EUR", Tenors: []float64{1, 5}, Strikes: []float64{0.01, 0.03, 0.05},
				Vols: [][]float64{{0.25, 0.22, 0.25}, {0.28, 0.24, 0.28}}},
		},
		FxRates: map[string]float64{"EURUSD": 1.10},
	}
	view, err := NewMarketView(snap, nil)
	require.NoError(t, err)
	return view, asOf
}

func TestNormCDF(t *testing.T) {
	assert.InDelta(t, 0.5, NormCDF(0), 1e-12)
	assert.InDelta(t, 0.8413, NormCDF(1), 1e-4)
	assert.InDelta(t, 0.0228, NormCDF(-2), 1e-4)
	assert.InDelta(t, 1.0, NormCDF(-0.7)+NormCDF(0.7), 1e-12)
}

func TestFxForwardAtMarketForwardIsFlat(t *testing.T) {
	view, asOf := derivView(t)
	pos := Position{
		ID: "FWD-1", Kind: KindFxForward, Currency: "USD", Notional: 1_000_000,
		Underlying: "EURUSD", Direction: Long,
		TradeDate: asOf.AddDate(0, -1, 0), Maturity: asOf.AddDate(1, 0, 0),
	}

	fwd, _, err := fxForwardRate(view, "EURUSD", 1.0, 0)
	require.NoError(t, err)
	pos.Strike = fwd

	a, err := AnalyzeDerivative(&pos, view, asOf)
	require.NoError(t, err)
	assert.InDelta(t, 0, a.MarketValue, 1e-6, "strike at market forward values to zero")
	assert.Greater(t, a.Delta, 0.0)

	// 숏 방향은 부호 반전
	pos.Direction = Short
	pos.Strike = fwd - 0.01
	long := pos
	long.Direction = Long
	av, err := AnalyzeDerivative(&pos, view, asOf)
	require.NoError(t, err)
	lv, err := AnalyzeDerivative(&long, view, asOf)
	require.NoError(t, err)
	assert.InDelta(t, -lv.MarketValue, av.MarketValue, 1e-9)
}

func TestFxOptionParity(t *testing.T) {
	view, asOf := derivView(t)
	strike := 1.10
	mk := func(ot OptionType) Position {
		return Position{
			ID: "OPT", Kind: KindFxOption, Currency: "USD", Notional: 1_000_000,
			Underlying: "EURUSD", Direction: Long, Strike: strike, OptionType: ot,
			TradeDate: asOf.AddDate(0, -1, 0), Maturity: asOf.AddDate(1, 0, 0),
		}
	}

	call, err := AnalyzeDerivative(ptr(mk(Call)), view, asOf)
	require.NoError(t, err)
	put, err := AnalyzeDerivative(ptr(mk(Put)), view, asOf)
	require.NoError(t, err)

	// 풋-콜 패리티: C - P = DF * (F - K) * N
	fwd, df, err := fxForwardRate(view, "EURUSD", 1.0, 0)
	require.NoError(t, err)
	assert.InDelta(t, df*(fwd-strike)*1_000_000, call.MarketValue-put.MarketValue, 1e-4)

	assert.Greater(t, call.MarketValue, 0.0)
	assert.Greater(t, put.MarketValue, 0.0)
	assert.Greater(t, call.Vega, 0.0)
	assert.Greater(t, call.Gamma, 0.0)
	assert.Less(t, call.Theta, 0.0)
	assert.Greater(t, call.Delta, 0.0)
	assert.Less(t, put.Delta, 0.0)
}

func TestIrSwapAtParAndDV01(t *testing.T) {
	view, asOf := derivView(t)
	pos := Position{
		ID: "SWP-1", Kind: KindIrSwap, Currency: "EUR", Notional: 10_000_000,
		Direction: Long, FixedRate: 0.05,
		TradeDate: asOf.AddDate(0, -1, 0), Maturity: asOf.AddDate(5, 0, 0),
	}

	// 고정 5% 지급 vs 커브 ~2.6%: 페이어는 마이너스
	a, err := AnalyzeDerivative(&pos, view, asOf)
	require.NoError(t, err)
	assert.Less(t, a.MarketValue, 0.0)

	// 페이어 스왑은 금리 상승 이익: DV01 음수 (1bp 하락 시 가치 하락)
	assert.Less(t, a.DV01, 0.0)

	recv := pos
	recv.Direction = Short
	r, err := AnalyzeDerivative(&recv, view, asOf)
	require.NoError(t, err)
	assert.InDelta(t, -a.MarketValue, r.MarketValue, 1e-6)
	assert.InDelta(t, -a.DV01, r.DV01, 1e-6)
}

func TestDerivativeRejectsNonPositiveNotional(t *testing.T) {
	view, asOf := derivView(t)
	pos := Position{
		ID: "FWD-NEG", Kind: KindFxForward, Currency: "USD", Notional: -1_000_000,
		Underlying: "EURUSD", Direction: Long, Strike: 1.10,
		TradeDate: asOf.AddDate(0, -1, 0), Maturity: asOf.AddDate(1, 0, 0),
	}

	// 방향은 Direction으로 표현하고 명목금액은 항상 양수
	_, err := AnalyzeDerivative(&pos, view, asOf)
	assert.ErrorIs(t, err, ErrInputValidation)

	pos.Notional = 0
	_, err = AnalyzeDerivative(&pos, view, asOf)
	assert.ErrorIs(t, err, ErrInputValidation)
}

func TestCapFloorValue(t *testing.T) {
	view, asOf := derivView(t)
	cap := Position{
		ID: "CAP-1", Kind: KindCapFloor, Currency: "EUR", Notional: 10_000_000,
		Underlying: "EUR", Direction: Long, Strike: 0.01, OptionType: Call,
		TradeDate: asOf.AddDate(0, -1, 0), Maturity: asOf.AddDate(3, 0, 0),
	}

	a, err := AnalyzeDerivative(&cap, view, asOf)
	require.NoError(t, err)
	// 행사가 1% vs 포워드 ~2.6%: 깊은 내가격 캡
	assert.Greater(t, a.MarketValue, 0.0)

	floor := cap
	floor.OptionType = Put
	f, err := AnalyzeDerivative(&floor, view, asOf)
	require.NoError(t, err)
	assert.Less(t, f.MarketValue, a.MarketValue, "1% floor far out of the money")
}

func TestSwaptionValue(t *testing.T) {
	view, asOf := derivView(t)
	pos := Position{
		ID: "SWPT-1", Kind: KindSwaption, Currency: "EUR", Notional: 10_000_000,
		Underlying: "EUR", Direction: Long, Strike: 0.02, OptionType: Payer,
		SwapTenorYears: 5,
		TradeDate:      asOf.AddDate(0, -1, 0), Maturity: asOf.AddDate(1, 0, 0),
	}

	payer, err := AnalyzeDerivative(&pos, view, asOf)
	require.NoError(t, err)
	assert.Greater(t, payer.MarketValue, 0.0)

	recv := pos
	recv.OptionType = Recvr
	r, err := AnalyzeDerivative(&recv, view, asOf)
	require.NoError(t, err)
	assert.Greater(t, r.MarketValue, 0.0)
	assert.NotEqual(t, payer.MarketValue, r.MarketValue)

	// 스왑 테너 누락은 입력 오류
	bad := pos
	bad.SwapTenorYears = 0
	_, err = AnalyzeDerivative(&bad, view, asOf)
	assert.ErrorIs(t, err, ErrInputValidation)
}

func ptr(p Position) *Position { return &p }
