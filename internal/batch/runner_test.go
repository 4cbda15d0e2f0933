package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valmeris/atlas/pkg/config"
)

func TestEngineConfigFromEnv(t *testing.T) {
	cfg := &config.Config{
		Engine: config.EngineConfig{
			VarWindowDays:     500,
			VarConfidence:     0.99,
			StressWindowStart: "2008-09-01",
			StressWindowEnd:   "2009-03-31",
			VolRegimeOverride: "Crisis",
			KCohRate:          0.002,
			Parallelism:       4,
			DeadlineMs:        2000,
		},
	}

	ec := EngineConfigFromEnv(cfg)
	require.NoError(t, ec.Validate())
	assert.Equal(t, 500, ec.VarWindowDays)
	assert.InDelta(t, 0.99, ec.VarConfidence, 1e-12)
	assert.Equal(t, time.Date(2008, 9, 1, 0, 0, 0, 0, time.UTC), ec.StressWindowStart)
	assert.Equal(t, "Crisis", ec.VolRegimeOverride)
	assert.Equal(t, 4, ec.Parallelism)
	assert.Equal(t, 2000, ec.DeadlineMs)
}

func TestEngineConfigFromEnvDefaults(t *testing.T) {
	cfg := &config.Config{
		Engine: config.EngineConfig{
			VarWindowDays:     250,
			VarConfidence:     0.95,
			StressWindowStart: "not-a-date", // 파싱 실패는 기본값 유지
			StressWindowEnd:   "",
			VolRegimeOverride: "Auto",
			Parallelism:       0, // 0 = NumCPU
		},
	}

	ec := EngineConfigFromEnv(cfg)
	assert.Equal(t, time.Date(2008, 9, 1, 0, 0, 0, 0, time.UTC), ec.StressWindowStart)
	assert.Equal(t, time.Date(2009, 3, 31, 0, 0, 0, 0, time.UTC), ec.StressWindowEnd)
	assert.GreaterOrEqual(t, ec.Parallelism, 1)
}
