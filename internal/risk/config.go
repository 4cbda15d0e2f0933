package risk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EngineConfig is the flat, immutable option record for one Engine.
// Unknown fields are rejected when decoded to prevent silent semantic
// drift across versions.
type EngineConfig struct {
	EngineVersion     string    `json:"engine_version"`
	VarWindowDays     int       `json:"var_window_days"`
	VarConfidence     float64   `json:"var_confidence"`
	StressWindowStart time.Time `json:"var_stress_window_start"`
	StressWindowEnd   time.Time `json:"var_stress_window_end"`
	VolRegimeOverride string    `json:"vol_regime_override"` // Auto, Normal, Elevated, Crisis
	LcrL2ACap         float64   `json:"lcr_l2a_cap"`
	LcrL2BCap         float64   `json:"lcr_l2b_cap"`
	LcrInflowCap      float64   `json:"lcr_inflow_cap"`
	PermanentMinCapital float64 `json:"permanent_min_capital_eur"`
	KCohRate          float64   `json:"k_coh_rate"`
	YtmTolerance      float64   `json:"ytm_tolerance"`
	YtmMaxIter        int       `json:"ytm_max_iter"`
	Parallelism       int       `json:"parallelism"`
	DeadlineMs        int       `json:"deadline_ms"` // 0 = none
}

// DefaultConfig returns the engine defaults.
// 규제 기본값: 250일 윈도우, 95% 신뢰수준, 2008-09 ~ 2009-03 스트레스 윈도우
func DefaultConfig() EngineConfig {
	return EngineConfig{
		EngineVersion:     EngineVersion,
		VarWindowDays:     250,
		VarConfidence:     0.95,
		StressWindowStart: time.Date(2008, 9, 1, 0, 0, 0, 0, time.UTC),
		StressWindowEnd:   time.Date(2009, 3, 31, 0, 0, 0, 0, time.UTC),
		VolRegimeOverride: "Auto",
		LcrL2ACap:         hqlaL2ACap,
		LcrL2BCap:         hqlaL2BCap,
		LcrInflowCap:      lcrInflowCap,
		PermanentMinCapital: permanentMinCapitalEUR,
		KCohRate:          0.001,
		YtmTolerance:      1e-10,
		YtmMaxIter:        50,
		Parallelism:       1,
		DeadlineMs:        0,
	}
}

// Validate checks config invariants
func (c EngineConfig) Validate() error {
	if c.EngineVersion == "" {
		return fmt.Errorf("%w: engine_version is required", ErrInputValidation)
	}
	if c.VarWindowDays < minVarObservations {
		return fmt.Errorf("%w: var_window_days must be >= %d", ErrInputValidation, minVarObservations)
	}
	if c.VarConfidence <= 0 || c.VarConfidence >= 1 {
		return fmt.Errorf("%w: var_confidence must be in (0, 1)", ErrInputValidation)
	}
	if !c.StressWindowStart.Before(c.StressWindowEnd) {
		return fmt.Errorf("%w: stress window start must precede end", ErrInputValidation)
	}
	switch c.VolRegimeOverride {
	case "Auto", "Normal", "Elevated", "Crisis":
	default:
		return fmt.Errorf("%w: vol_regime_override %q not recognized", ErrInputValidation, c.VolRegimeOverride)
	}
	if c.LcrL2ACap <= 0 || c.LcrL2ACap > 1 || c.LcrL2BCap <= 0 || c.LcrL2BCap > 1 {
		return fmt.Errorf("%w: lcr caps must be in (0, 1]", ErrInputValidation)
	}
	if c.LcrInflowCap <= 0 || c.LcrInflowCap > 1 {
		return fmt.Errorf("%w: lcr_inflow_cap must be in (0, 1]", ErrInputValidation)
	}
	if c.KCohRate < 0 {
		return fmt.Errorf("%w: k_coh_rate must be >= 0", ErrInputValidation)
	}
	if c.YtmTolerance <= 0 {
		return fmt.Errorf("%w: ytm_tolerance must be > 0", ErrInputValidation)
	}
	if c.YtmMaxIter <= 0 {
		return fmt.Errorf("%w: ytm_max_iter must be > 0", ErrInputValidation)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be >= 1", ErrInputValidation)
	}
	if c.DeadlineMs < 0 {
		return fmt.Errorf("%w: deadline_ms must be >= 0", ErrInputValidation)
	}
	return nil
}

// ParseConfig decodes an EngineConfig from JSON, rejecting unknown fields
func ParseConfig(data []byte) (EngineConfig, error) {
	cfg := DefaultConfig()

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("%w: %v", ErrInputValidation, err)
	}

	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}
