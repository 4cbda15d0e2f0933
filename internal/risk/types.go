package risk

import "time"

// =============================================================================
// Identity & Conventions
// =============================================================================

// EngineVersion identifies the calculation semantics of this build.
// ⭐ SSOT: 파라미터 테이블이나 알고리즘이 바뀌면 반드시 버전을 올릴 것
// 스냅샷 식별자는 (portfolio_id, as_of_date, engine_version)
const EngineVersion = "1.0.0"

// VaRConvention VaR 부호 규약
// ⭐ SSOT: Loss를 양수로 표현 (VaR=88 → 88 통화단위 손실 가능)
const VaRConvention = "loss_positive"

// =============================================================================
// Portfolio & Positions
// =============================================================================

// PortfolioType classifies the business line a portfolio belongs to
type PortfolioType string

const (
	PortfolioBondDealer        PortfolioType = "BOND_DEALER"
	PortfolioDerivativesClient PortfolioType = "DERIVATIVES_CLIENT"
	PortfolioProprietary       PortfolioType = "PROPRIETARY"
)

// Portfolio is the unit of risk aggregation
type Portfolio struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         PortfolioType `json:"type"`
	BaseCurrency string        `json:"base_currency"`
	Active       bool          `json:"active"`
}

// InstrumentKind enumerates the supported instrument universe.
// Vanilla only: exotics are rejected at input validation.
type InstrumentKind string

const (
	KindBond      InstrumentKind = "BOND"
	KindFxForward InstrumentKind = "FX_FORWARD"
	KindFxOption  InstrumentKind = "FX_OPTION"
	KindIrSwap    InstrumentKind = "IR_SWAP"
	KindCapFloor  InstrumentKind = "CAP_FLOOR"
	KindSwaption  InstrumentKind = "SWAPTION"
)

// Direction of a derivative position
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// OptionType for FX options and caps/floors
type OptionType string

const (
	Call  OptionType = "CALL"  // cap leg for CapFloor
	Put   OptionType = "PUT"   // floor leg for CapFloor
	Payer OptionType = "PAYER" // swaptions
	Recvr OptionType = "RECEIVER"
)

// DayCount conventions for bond accrual
type DayCount string

const (
	Act365    DayCount = "ACT/365"
	Act360    DayCount = "ACT/360"
	ActAct    DayCount = "ACT/ACT"
	Thirty360 DayCount = "30/360"
)

// Position is a single bond or derivative holding.
// Bond fields and derivative fields are mutually exclusive by Kind.
// Invariants: Notional > 0; TradeDate <= as_of < MaturityDate (DQ-40/41 otherwise).
type Position struct {
	ID          string         `json:"id"`
	PortfolioID string         `json:"portfolio_id"`
	Kind        InstrumentKind `json:"kind"`
	Currency    string         `json:"currency"`
	Notional    float64        `json:"notional"`
	TradeDate   time.Time      `json:"trade_date"`
	Maturity    time.Time      `json:"maturity_date"`

	// Bond fields
	ISIN      string   `json:"isin,omitempty"`
	Coupon    float64  `json:"coupon,omitempty"`     // annual rate, e.g. 0.045
	CouponFreq int     `json:"coupon_freq,omitempty"` // payments per year: 1, 2, 4
	DayCount  DayCount `json:"day_count,omitempty"`
	IssuerID  string   `json:"issuer_id,omitempty"`

	// Derivative fields
	Underlying     string     `json:"underlying,omitempty"` // e.g. "EURUSD", "EUR" curve
	Direction      Direction  `json:"direction,omitempty"`
	Strike         float64    `json:"strike,omitempty"`
	OptionType     OptionType `json:"option_type,omitempty"`
	CounterpartyID string     `json:"counterparty_id,omitempty"`
	FixedRate      float64    `json:"fixed_rate,omitempty"`   // IR swaps
	PremiumPaid    float64    `json:"premium_paid,omitempty"` // long options
	SwapTenorYears float64    `json:"swap_tenor_years,omitempty"` // swaptions: underlying swap length
}

// IsBond reports whether the position prices through the bond pricer
func (p *Position) IsBond() bool {
	return p.Kind == KindBond
}

// IsDerivative reports whether the position prices through the derivative pricer
func (p *Position) IsDerivative() bool {
	return !p.IsBond()
}

// IsOption reports whether the position carries optionality
func (p *Position) IsOption() bool {
	return p.Kind == KindFxOption || p.Kind == KindCapFloor || p.Kind == KindSwaption
}

// =============================================================================
// Reference Data (weak, id-based lookups — no ownership)
// =============================================================================

// Counterparty reference data including CSA terms
type Counterparty struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Country        string  `json:"country"`
	ExternalRating string  `json:"external_rating"`
	InternalRating string  `json:"internal_rating"`
	ISDANetting    bool    `json:"isda_netting"`
	CollateralHeld float64 `json:"collateral_held"`
	CSAThreshold   float64 `json:"csa_threshold"`
	MinTransfer    float64 `json:"min_transfer"`
}

// Issuer reference data for bond positions
type Issuer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	Sector    string `json:"sector"` // SOVEREIGN, FINANCIAL, CORPORATE, ...
	Rating    string `json:"rating"`
	Seniority string `json:"seniority"` // SENIOR_SECURED, SENIOR_UNSECURED, SUBORDINATED
}

// =============================================================================
// Limits & Alerts
// =============================================================================

// Limit is a configured ceiling for a metric on a portfolio.
// Warning and Critical are fractions of the limit: warning in (0,1],
// critical in (warning, 1].
type Limit struct {
	PortfolioID string  `json:"portfolio_id"`
	Metric      string  `json:"metric"`
	Value       float64 `json:"value"`
	Warning     float64 `json:"warning"`
	Critical    float64 `json:"critical"`
}

// Severity classifies alerts
type Severity string

const (
	SeverityGreen    Severity = "GREEN"
	SeverityYellow   Severity = "YELLOW"
	SeverityRed      Severity = "RED"
	SeverityCritical Severity = "CRITICAL"
)

// rank orders severities for comparisons
func (s Severity) rank() int {
	switch s {
	case SeverityYellow:
		return 1
	case SeverityRed:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as other
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// Alert is a severity-classified limit evaluation result.
// Acknowledged is mutated only by the host, never by the engine.
type Alert struct {
	PortfolioID  string    `json:"portfolio_id"`
	Metric       string    `json:"metric"`
	CurrentValue float64   `json:"current_value"`
	LimitValue   float64   `json:"limit_value"`
	Usage        float64   `json:"usage"`
	Severity     Severity  `json:"severity"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	Acknowledged bool      `json:"acknowledged"`
}

// AlertsSummary counts alerts per severity band
type AlertsSummary struct {
	Green    int `json:"GREEN"`
	Yellow   int `json:"YELLOW"`
	Red      int `json:"RED"`
	Critical int `json:"CRITICAL"`
}

// =============================================================================
// Data Quality
// =============================================================================

// DQSeverity classifies data quality issues
type DQSeverity string

const (
	DQInfo    DQSeverity = "INFO"
	DQWarning DQSeverity = "WARNING"
	DQError   DQSeverity = "ERROR"
)

// DataQualityIssue is one failed rule application
type DataQualityIssue struct {
	Rule       string     `json:"rule"` // DQ-01, DQ-02, ...
	Severity   DQSeverity `json:"severity"`
	Source     string     `json:"source"` // position, market, curve, fx
	InstrumentID string   `json:"instrument_id,omitempty"`
	SnapshotID string     `json:"snapshot_id,omitempty"`
	Detail     string     `json:"detail"`
	DetectedAt time.Time  `json:"detected_at"`
}

// =============================================================================
// P&L history & Backtesting
// =============================================================================

// PnLPoint is one realized daily P&L observation
type PnLPoint struct {
	Date time.Time `json:"date"`
	PnL  float64   `json:"pnl"`
}

// BacktestingRecord pairs a prior VaR forecast with realized P&L.
// Append-only; the host linearizes writes.
type BacktestingRecord struct {
	PortfolioID string    `json:"portfolio_id"`
	Date        time.Time `json:"date"`
	VaRForecast float64   `json:"var_forecast"` // previous day's VaR, loss positive
	PnLActual   float64   `json:"pnl_actual"`
	IsException bool      `json:"is_exception"`
}

// TrafficLight is the Basel backtesting zone
type TrafficLight string

const (
	LightGreen  TrafficLight = "GREEN"
	LightYellow TrafficLight = "YELLOW"
	LightRed    TrafficLight = "RED"
)

// BacktestStats summarizes a rolling backtesting window
type BacktestStats struct {
	TotalDays     int          `json:"total_days"`
	Exceptions    int          `json:"exceptions"`
	ExceptionRate float64      `json:"exception_rate"`
	TrafficLight  TrafficLight `json:"traffic_light"`
	KupiecPValue  float64      `json:"kupiec_p_value"` // informational, never gating
	VaRMultiplier float64      `json:"var_multiplier"` // Basel multiplier 3.0 - 4.0
}

// =============================================================================
// Snapshot sub-blocks
// =============================================================================

// MarketBlock holds market risk metrics
type MarketBlock struct {
	TotalMarketValue float64 `json:"total_market_value"`
	Var1d95          float64 `json:"var_1d_95"`
	StressedVar      float64 `json:"stressed_var"`
	DV01Total        float64 `json:"dv01_total"`
	Duration         float64 `json:"duration"` // MV-weighted modified duration
	Convexity        float64 `json:"convexity"`
	WAM              float64 `json:"wam"` // weighted average maturity, years
}

// CreditBlock holds issuer credit metrics
type CreditBlock struct {
	TotalExposure float64 `json:"total_exposure"`
	ExpectedLoss  float64 `json:"expected_loss"`
	CVATotal      float64 `json:"cva_total"`
}

// CCRBlock holds counterparty credit risk metrics
type CCRBlock struct {
	PFECurrent float64 `json:"pfe_current"`
	PFEPeak    float64 `json:"pfe_peak"`
	EADTotal   float64 `json:"ead_total"`

	ByCounterparty []CounterpartyExposure `json:"by_counterparty,omitempty"`
}

// CounterpartyExposure is the per-counterparty CCR decomposition
type CounterpartyExposure struct {
	CounterpartyID  string  `json:"counterparty_id"`
	CurrentExposure float64 `json:"current_exposure"`
	GrossPFE        float64 `json:"gross_pfe"`
	NetPFE          float64 `json:"net_pfe"`
	AdjustedPFE     float64 `json:"adjusted_pfe"` // after CSA collateral/threshold
	EAD             float64 `json:"ead"`
	CVA             float64 `json:"cva"`
	TradeCount      int     `json:"trade_count"`
}

// LiquidityBlock holds LCR and liquidation metrics
type LiquidityBlock struct {
	HQLA                float64 `json:"hqla"`
	Outflows30d         float64 `json:"outflows_30d"`
	Inflows30dCapped    float64 `json:"inflows_30d_capped"`
	NetOutflows30d      float64 `json:"net_outflows_30d"`
	LCRRatio            float64 `json:"lcr_ratio"` // +Inf encoded as LCRInfinite
	LCRInfinite         bool    `json:"lcr_infinite,omitempty"`
	FundingGapShortTerm float64 `json:"funding_gap_short_term"`
	LiquidationCost1d   float64 `json:"liquidation_cost_1d"`
	LiquidationCost5d   float64 `json:"liquidation_cost_5d"`
	LiquidityScore      float64 `json:"liquidity_score"` // 0-1, MV weighted
}

// CapitalBlock holds IFR K-factor capital metrics.
// CapitalRatio is a dimensionless fraction: 1.00 = 100%.
type CapitalBlock struct {
	KIR          float64 `json:"k_ir"`
	KCredNR      float64 `json:"k_crednr"`
	KFX          float64 `json:"k_fx"`
	KNPR         float64 `json:"k_npr"`
	KAUM         float64 `json:"k_aum"`
	KCMH         float64 `json:"k_cmh"`
	KCOH         float64 `json:"k_coh"`
	TotalKReq    float64 `json:"total_k_req"`
	RequiredCap  float64 `json:"required_capital"` // max(PMC, sum K)
	OwnFunds     float64 `json:"own_funds"`
	CapitalRatio float64 `json:"capital_ratio"`
}

// ConcentrationBlock holds HHI and top-N exposure shares
type ConcentrationBlock struct {
	LargestIssuer      float64 `json:"largest_issuer"`
	Top5Issuers        float64 `json:"top_5_issuers"`
	Top10Issuers       float64 `json:"top_10_issuers"`
	HHIIssuer          float64 `json:"hhi_issuer"`
	LargestCountry     float64 `json:"largest_country"`
	HHICountry         float64 `json:"hhi_country"`
	LargestSector      float64 `json:"largest_sector"`
	HHISector          float64 `json:"hhi_sector"`
	LargestCounterparty float64 `json:"largest_counterparty"`
	HHICounterparty    float64 `json:"hhi_counterparty"`
}

// ScenarioResult is the outcome of one stress scenario
type ScenarioResult struct {
	Scenario          string             `json:"scenario"`
	Description       string             `json:"description"`
	PnL               float64            `json:"pnl"`
	PnLPct            float64            `json:"pnl_pct"`
	DeltaVar          float64            `json:"delta_var"`
	DeltaKNPR         float64            `json:"delta_k_npr"`
	DeltaCapitalRatio float64            `json:"delta_capital_ratio"`
	DeltaLCR          float64            `json:"delta_lcr"`
	TopContributors   []StressContributor `json:"top_contributors,omitempty"`
}

// StressContributor is one of the top-10 positions by |ΔMV|
type StressContributor struct {
	PositionID string  `json:"position_id"`
	BaseMV     float64 `json:"base_mv"`
	ShockedMV  float64 `json:"shocked_mv"`
	DeltaMV    float64 `json:"delta_mv"`
}

// =============================================================================
// Risk Snapshot (output root)
// =============================================================================

// CalcStatus is the snapshot state machine terminal state
type CalcStatus string

const (
	StatusPending CalcStatus = "PENDING"
	StatusRunning CalcStatus = "RUNNING"
	StatusSuccess CalcStatus = "SUCCESS"
	StatusPartial CalcStatus = "PARTIAL"
	StatusFailed  CalcStatus = "FAILED"
)

// RiskSnapshot is the immutable result of one engine run.
// Identified by (PortfolioID, AsOfDate, EngineVersion); recomputation with
// the same inputs must reproduce every scalar within 1e-9.
// Nil sub-blocks mean the corresponding computation failed (status PARTIAL)
// with the cause recorded in ErrorMessage.
type RiskSnapshot struct {
	PortfolioID          string     `json:"portfolio_id"`
	AsOfDate             time.Time  `json:"as_of_date"`
	CalculatedAt         time.Time  `json:"calculated_at"`
	EngineVersion        string     `json:"engine_version"`
	MarketDataSnapshotID string     `json:"market_data_snapshot_id"`
	Status               CalcStatus `json:"status"`

	Market        *MarketBlock        `json:"market,omitempty"`
	Credit        *CreditBlock        `json:"credit,omitempty"`
	CCR           *CCRBlock           `json:"ccr,omitempty"`
	Liquidity     *LiquidityBlock     `json:"liquidity,omitempty"`
	Capital       *CapitalBlock       `json:"capital,omitempty"`
	Concentration *ConcentrationBlock `json:"concentration,omitempty"`
	Stress        []ScenarioResult    `json:"stress,omitempty"`

	Alerts        []Alert            `json:"alerts,omitempty"`
	AlertsSummary AlertsSummary      `json:"alerts_summary"`
	DQIssues      []DataQualityIssue `json:"dq_issues,omitempty"`
	Unpriced      []string           `json:"unpriced,omitempty"` // position IDs excluded by DQ

	ErrorMessage string `json:"error_message,omitempty"`
}

// =============================================================================
// Engine input bundle
// =============================================================================

// FundingEntry is one 30-day cash flow for the LCR calculation
type FundingEntry struct {
	Class  string  `json:"class"` // run-off class key, see params.go
	Amount float64 `json:"amount"`
}

// FundingProfile carries the liquidity inputs the positions alone cannot provide
type FundingProfile struct {
	Cash             float64            `json:"cash"` // Level 1 by definition
	Outflows         []FundingEntry     `json:"outflows"`
	Inflows          float64            `json:"inflows_30d"`
	AssetsByBucket   map[string]float64 `json:"assets_by_bucket"`      // "0-7d", "7-30d", ...
	LiabilitiesByBucket map[string]float64 `json:"liabilities_by_bucket"`
}

// CapitalInput carries the firm-level capital inputs
type CapitalInput struct {
	AUMAvg               float64 `json:"aum_avg"` // trailing quarterly average
	ClientMoneyHeldAvg   float64 `json:"client_money_held_avg"`
	ClientMoneyGuaranteed bool   `json:"client_money_guaranteed"`
	ClientOrderVolume    float64 `json:"client_order_volume_annual"`
	Tier1                float64 `json:"tier1"`
	Tier2                float64 `json:"tier2"`
}

// ComputeInput is the immutable input bundle for one engine run.
// All data fetches happen upstream; the engine performs no I/O.
type ComputeInput struct {
	Portfolio      Portfolio
	Positions      []Position
	Counterparties []Counterparty
	Issuers        []Issuer
	MarketData     *MarketDataSnapshot
	Limits         []Limit
	PnLHistory     []PnLPoint
	Funding        FundingProfile
	Capital        CapitalInput
	Scenarios      []string // scenario codes; nil = full catalogue
}
