package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildBreakdownPrompt_Deterministic(t *testing.T) {
	bctx := BreakdownContext{
		Deadline:         time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC),
		Priority:         "high",
		TimeLimitMinutes: 120,
	}
	first := BuildBreakdownPrompt("Plan my thesis defense prep", bctx)
	second := BuildBreakdownPrompt("Plan my thesis defense prep", bctx)
	assert.Equal(t, first, second)
}

func TestBuildBreakdownPrompt_EmbedsConstraints(t *testing.T) {
	prompt := BuildBreakdownPrompt("Plan my thesis defense prep", BreakdownContext{TimeLimitMinutes: 120})
	assert.Contains(t, prompt, "between 1 and 10 tasks")
	assert.Contains(t, prompt, "between 5 and 480")
	assert.Contains(t, prompt, "must not exceed 120")
	assert.Contains(t, prompt, "ONLY a raw JSON object")
	assert.Contains(t, prompt, `"tasks"`)
	assert.Contains(t, prompt, "Plan my thesis defense prep")
}

func TestBuildBreakdownPrompt_NoCeilingWithoutLimit(t *testing.T) {
	prompt := BuildBreakdownPrompt("Write the quarterly report", BreakdownContext{})
	assert.NotContains(t, prompt, "HARD CONSTRAINT")
	assert.NotContains(t, prompt, "Deadline:")
}

func TestBuildInsightsPrompt_EmbedsStatsAndSchema(t *testing.T) {
	stats := WeeklyStats{
		CompletedTasks: 12,
		FocusMinutes:   540,
		Sessions:       18,
		CompletionRate: 0.8,
		BestDay:        "Tuesday",
		TopCategories:  []string{"writing", "research"},
	}
	prompt := BuildInsightsPrompt("felt tired this week", stats)
	assert.Contains(t, prompt, "Completed tasks: 12")
	assert.Contains(t, prompt, "Focus minutes: 540")
	assert.Contains(t, prompt, "Completion rate: 80%")
	assert.Contains(t, prompt, "Tuesday")
	assert.Contains(t, prompt, "writing, research")
	assert.Contains(t, prompt, "focus, habits, workload, wellbeing")
	assert.Contains(t, prompt, `"headline"`)
	assert.Contains(t, prompt, "ONLY a raw JSON object")

	assert.Equal(t, prompt, BuildInsightsPrompt("felt tired this week", stats))
}
