package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects the structured-output variant the pipeline produces.
type Kind string

const (
	KindTaskBreakdown  Kind = "TASK_BREAKDOWN"
	KindWeeklyInsights Kind = "WEEKLY_INSIGHTS"
)

// BreakdownContext carries the caller-supplied constraints for a task
// breakdown request.
type BreakdownContext struct {
	Deadline time.Time
	Priority string
	// TimeLimitMinutes is an explicit user-stated ceiling ("in 2 hours");
	// zero means no ceiling.
	TimeLimitMinutes int
}

// WeeklyStats summarizes the user's activity for the insights variant.
type WeeklyStats struct {
	CompletedTasks int
	FocusMinutes   int
	Sessions       int
	CompletionRate float64
	BestDay        string
	TopCategories  []string
}

// HasActivity reports whether there is anything to summarize at all.
func (s WeeklyStats) HasActivity() bool {
	return s.CompletedTasks > 0 || s.FocusMinutes > 0 || s.Sessions > 0
}

const rawJSONInstruction = "Respond with ONLY a raw JSON object. No markdown, no code fences, no commentary, no text before or after the JSON."

// BuildBreakdownPrompt renders the task-breakdown instruction. It is a
// pure function: the same inputs always produce the same string.
func BuildBreakdownPrompt(sanitized string, bctx BreakdownContext) string {
	var b strings.Builder
	b.WriteString("You are a task planning assistant for a focus-timer app. Break the user's goal into small, concrete, actionable tasks.\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", sanitized)
	if !bctx.Deadline.IsZero() {
		fmt.Fprintf(&b, "Deadline: %s\n", bctx.Deadline.UTC().Format(time.RFC3339))
	}
	if p := strings.TrimSpace(bctx.Priority); p != "" {
		fmt.Fprintf(&b, "Priority: %s\n", p)
	}
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- Produce between %d and %d tasks.\n", minTaskCount, maxTaskCount)
	fmt.Fprintf(&b, "- Each task's estimatedMinutes must be an integer between %d and %d.\n", minTaskMinutes, maxTaskMinutes)
	fmt.Fprintf(&b, "- Each title must be at most %d characters; each description at most %d characters.\n", maxTitleLength, maxDescriptionLength)
	if bctx.TimeLimitMinutes > 0 {
		fmt.Fprintf(&b, "- HARD CONSTRAINT: the user has %d minutes in total. The sum of all estimatedMinutes must not exceed %d. This overrides any deadline-based distribution.\n", bctx.TimeLimitMinutes, bctx.TimeLimitMinutes)
	}
	b.WriteString("- Order tasks in the sequence they should be done.\n")
	b.WriteString("\nOutput schema: a JSON object with a single key \"tasks\" holding an array of objects, each with \"title\" (string, required), \"estimatedMinutes\" (integer, required) and \"description\" (string, optional).\n\n")
	b.WriteString(rawJSONInstruction)
	return b.String()
}

// BuildInsightsPrompt renders the weekly-insights instruction from the
// user's activity statistics.
func BuildInsightsPrompt(sanitized string, stats WeeklyStats) string {
	var b strings.Builder
	b.WriteString("You are a productivity analyst for a focus-timer app. Write a weekly report from the user's activity data.\n\n")
	if sanitized != "" {
		fmt.Fprintf(&b, "User note: %s\n", sanitized)
	}
	b.WriteString("This week's activity:\n")
	fmt.Fprintf(&b, "- Completed tasks: %d\n", stats.CompletedTasks)
	fmt.Fprintf(&b, "- Focus minutes: %d\n", stats.FocusMinutes)
	fmt.Fprintf(&b, "- Focus sessions: %d\n", stats.Sessions)
	fmt.Fprintf(&b, "- Completion rate: %.0f%%\n", stats.CompletionRate*100)
	if stats.BestDay != "" {
		fmt.Fprintf(&b, "- Most productive day: %s\n", stats.BestDay)
	}
	if len(stats.TopCategories) > 0 {
		fmt.Fprintf(&b, "- Top categories: %s\n", strings.Join(stats.TopCategories, ", "))
	}
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- Produce at most %d insights and at most %d recommendations.\n", maxInsightCount, maxRecommendationCount)
	fmt.Fprintf(&b, "- Each insight category must be one of: %s.\n", strings.Join(insightCategories, ", "))
	fmt.Fprintf(&b, "- The narrative must be at most %d characters; the headline at most %d characters.\n", maxNarrativeLength, maxHeadlineLength)
	b.WriteString("- Ground every statement in the activity data above; do not invent numbers.\n")
	b.WriteString("\nOutput schema: a JSON object with keys \"narrative\" (string), \"insights\" (array of objects with \"title\", \"detail\", \"category\"), \"recommendations\" (array of strings), \"nextWeekPlan\" (string) and \"headline\" (string, the single most important recommendation).\n\n")
	b.WriteString(rawJSONInstruction)
	return b.String()
}
