package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreviousBusinessDay(t *testing.T) {
	// 월요일 → 금요일
	monday := time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 27, 0, 0, 0, 0, time.UTC), previousBusinessDay(monday))

	// 수요일 → 화요일
	wednesday := time.Date(2025, 6, 25, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 24, 0, 0, 0, 0, time.UTC), previousBusinessDay(wednesday))

	// 일요일 → 금요일
	sunday := time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 27, 0, 0, 0, 0, time.UTC), previousBusinessDay(sunday))
}

func TestJobHistoryKeepsLast100(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{JobName: "j", Success: i%3 != 0})
	}
	assert.Len(t, h.Results, 100)

	latest := h.GetLatestResults(10)
	assert.Len(t, latest, 10)
	assert.NotEmpty(t, h.GetFailedResults())
	assert.InDelta(t, 0.66, h.GetSuccessRate(), 0.05)
}
