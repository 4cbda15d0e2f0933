package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, EngineVersion, cfg.EngineVersion)
	assert.Equal(t, 250, cfg.VarWindowDays)
	assert.InDelta(t, 0.95, cfg.VarConfidence, 1e-12)
	assert.Equal(t, time.Date(2008, 9, 1, 0, 0, 0, 0, time.UTC), cfg.StressWindowStart)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"empty version", func(c *EngineConfig) { c.EngineVersion = "" }},
		{"window below minimum", func(c *EngineConfig) { c.VarWindowDays = 30 }},
		{"confidence zero", func(c *EngineConfig) { c.VarConfidence = 0 }},
		{"confidence one", func(c *EngineConfig) { c.VarConfidence = 1 }},
		{"inverted stress window", func(c *EngineConfig) {
			c.StressWindowStart, c.StressWindowEnd = c.StressWindowEnd, c.StressWindowStart
		}},
		{"unknown regime", func(c *EngineConfig) { c.VolRegimeOverride = "Chaotic" }},
		{"bad l2a cap", func(c *EngineConfig) { c.LcrL2ACap = 1.5 }},
		{"negative coh rate", func(c *EngineConfig) { c.KCohRate = -0.1 }},
		{"zero tolerance", func(c *EngineConfig) { c.YtmTolerance = 0 }},
		{"zero iterations", func(c *EngineConfig) { c.YtmMaxIter = 0 }},
		{"zero parallelism", func(c *EngineConfig) { c.Parallelism = 0 }},
		{"negative deadline", func(c *EngineConfig) { c.DeadlineMs = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInputValidation)
		})
	}
}

func TestParseConfigRejectsUnknownFields(t *testing.T) {
	_, err := ParseConfig([]byte(`{"var_window_days": 200, "mystery_knob": true}`))
	assert.ErrorIs(t, err, ErrInputValidation)
}

func TestParseConfigAppliesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"var_window_days": 120, "parallelism": 8}`))
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.VarWindowDays)
	assert.Equal(t, 8, cfg.Parallelism)
	// 나머지는 기본값 유지
	assert.InDelta(t, 0.95, cfg.VarConfidence, 1e-12)
	assert.Equal(t, 50, cfg.YtmMaxIter)
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VarConfidence = 2
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, ErrInputValidation)
}
