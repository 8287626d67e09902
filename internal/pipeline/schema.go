package pipeline

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Bounds of the structured-output contract. The prompt builder states
// them to the model and the normalizer enforces them regardless.
const (
	minTaskCount   = 1
	maxTaskCount   = 10
	minTaskMinutes = 5
	maxTaskMinutes = 480

	defaultTaskMinutes = 30

	maxTitleLength       = 200
	maxDescriptionLength = 500

	maxInsightCount        = 5
	maxRecommendationCount = 5
	maxNarrativeLength     = 2000
	maxInsightTitleLength  = 120
	maxInsightDetailLength = 500
	maxRecommendationLen   = 300
	maxNextWeekPlanLength  = 1000
	maxHeadlineLength      = 200
)

var insightCategories = []string{"focus", "habits", "workload", "wellbeing"}

const defaultInsightCategory = "focus"

// TaskItem is a single task of a generated breakdown.
type TaskItem struct {
	Title            string `json:"title"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	Description      string `json:"description,omitempty"`
}

// TaskBreakdown is the validated result of the breakdown variant.
type TaskBreakdown struct {
	Tasks []TaskItem `json:"tasks"`
}

// TotalMinutes sums the estimated minutes over all tasks.
func (b *TaskBreakdown) TotalMinutes() int {
	total := 0
	for _, t := range b.Tasks {
		total += t.EstimatedMinutes
	}
	return total
}

// Insight is one observation in a weekly report.
type Insight struct {
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Category string `json:"category"`
}

// WeeklyInsights is the validated result of the insights variant.
type WeeklyInsights struct {
	Narrative       string    `json:"narrative"`
	Insights        []Insight `json:"insights"`
	Recommendations []string  `json:"recommendations"`
	NextWeekPlan    string    `json:"nextWeekPlan"`
	Headline        string    `json:"headline"`
}

// candidateCheck reports whether a parsed candidate plausibly matches a
// variant's schema. The recovery parser uses it to decide whether a
// strategy's output is worth handing to the normalizer.
type candidateCheck func(gjson.Result) bool

func breakdownCandidateCheck(candidate gjson.Result) bool {
	if !candidate.IsObject() {
		return false
	}
	for _, alias := range tasksAliases {
		if field := candidate.Get(alias); field.Exists() && field.IsArray() {
			return true
		}
	}
	return false
}

func insightsCandidateCheck(candidate gjson.Result) bool {
	if !candidate.IsObject() {
		return false
	}
	// One recognized field is enough to hand the candidate over; the
	// normalizer's required-field check is the backstop. Demanding more
	// would exhaust the parser on sparse but usable completions.
	for _, aliases := range [][]string{narrativeAliases, insightsAliases, recommendationAlias, nextWeekPlanAliases, headlineAliases} {
		if firstField(candidate, aliases).Exists() {
			return true
		}
	}
	return false
}

// validateBreakdown re-checks the contract after normalization. A
// failure here is a normalizer bug, not a model or user fault.
func validateBreakdown(result *TaskBreakdown) error {
	if result == nil || len(result.Tasks) < minTaskCount || len(result.Tasks) > maxTaskCount {
		return fmt.Errorf("task count out of bounds")
	}
	for i, task := range result.Tasks {
		if task.Title == "" || len([]rune(task.Title)) > maxTitleLength {
			return fmt.Errorf("task %d: title out of bounds", i)
		}
		if task.EstimatedMinutes < minTaskMinutes || task.EstimatedMinutes > maxTaskMinutes {
			return fmt.Errorf("task %d: estimatedMinutes %d out of range", i, task.EstimatedMinutes)
		}
		if len([]rune(task.Description)) > maxDescriptionLength {
			return fmt.Errorf("task %d: description out of bounds", i)
		}
	}
	return nil
}

func validateInsights(result *WeeklyInsights) error {
	if result == nil {
		return fmt.Errorf("nil insights")
	}
	if result.Headline == "" || len([]rune(result.Headline)) > maxHeadlineLength {
		return fmt.Errorf("headline out of bounds")
	}
	if len([]rune(result.Narrative)) > maxNarrativeLength {
		return fmt.Errorf("narrative out of bounds")
	}
	if len(result.Insights) > maxInsightCount {
		return fmt.Errorf("too many insights")
	}
	for i, ins := range result.Insights {
		if ins.Title == "" || len([]rune(ins.Title)) > maxInsightTitleLength {
			return fmt.Errorf("insight %d: title out of bounds", i)
		}
		if len([]rune(ins.Detail)) > maxInsightDetailLength {
			return fmt.Errorf("insight %d: detail out of bounds", i)
		}
		if !validInsightCategory(ins.Category) {
			return fmt.Errorf("insight %d: category %q not allowed", i, ins.Category)
		}
	}
	if len(result.Recommendations) > maxRecommendationCount {
		return fmt.Errorf("too many recommendations")
	}
	for i, rec := range result.Recommendations {
		if len([]rune(rec)) > maxRecommendationLen {
			return fmt.Errorf("recommendation %d out of bounds", i)
		}
	}
	if len([]rune(result.NextWeekPlan)) > maxNextWeekPlanLength {
		return fmt.Errorf("nextWeekPlan out of bounds")
	}
	return nil
}

func validInsightCategory(category string) bool {
	for _, c := range insightCategories {
		if category == c {
			return true
		}
	}
	return false
}
