package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Accepted field-name aliases per canonical field, in resolution order.
// Kept as explicit tables rather than reflection so the accepted drift
// stays auditable.
var (
	tasksAliases = []string{"tasks", "items", "subtasks", "steps", "breakdown"}
	titleAliases = []string{"title", "name", "task", "taskName", "task_name", "label"}
	minutesAliases = []string{
		"estimatedMinutes", "estimated_minutes", "estimatedTime", "estimated_time",
		"durationMinutes", "duration_minutes", "duration", "minutes", "time",
	}
	descriptionAliases = []string{"description", "details", "notes", "summary"}

	narrativeAliases    = []string{"narrative", "summary", "overview", "report"}
	insightsAliases     = []string{"insights", "observations", "findings"}
	insightDetailAlias  = []string{"detail", "details", "description", "text", "body"}
	recommendationAlias = []string{"recommendations", "suggestions", "tips", "advice"}
	nextWeekPlanAliases = []string{"nextWeekPlan", "next_week_plan", "nextPeriodPlan", "plan", "nextWeek"}
	headlineAliases     = []string{"headline", "headlineRecommendation", "topRecommendation", "keyTakeaway", "key_takeaway"}
)

var leadingNumberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// firstField resolves the first alias present on an object.
func firstField(obj gjson.Result, aliases []string) gjson.Result {
	for _, alias := range aliases {
		if field := obj.Get(alias); field.Exists() {
			return field
		}
	}
	return gjson.Result{}
}

// normalizeBreakdown repairs a parsed candidate into the strict task
// breakdown contract: aliases resolved, numerics coerced and clamped,
// strings truncated, the array capped. A task that cannot produce a
// non-empty title fails the whole response rather than being invented.
func normalizeBreakdown(candidate gjson.Result) (*TaskBreakdown, error) {
	tasksField := firstField(candidate, tasksAliases)
	if !tasksField.IsArray() {
		return nil, newError(CodeInvalidResponse, "The AI response could not be understood. Please try again.").
			withCause(fmt.Errorf("no task array in candidate"))
	}
	items := tasksField.Array()
	if len(items) == 0 {
		return nil, newError(CodeInvalidResponse, "The AI response could not be understood. Please try again.").
			withCause(fmt.Errorf("empty task array"))
	}
	if len(items) > maxTaskCount {
		log.WithFields(log.Fields{"received": len(items), "kept": maxTaskCount}).
			Warn("task list truncated to maximum cardinality")
		items = items[:maxTaskCount]
	}

	doc := []byte(`{"tasks":[]}`)
	for i, item := range items {
		if !item.IsObject() {
			return nil, newError(CodeInvalidResponse, "The AI response could not be understood. Please try again.").
				withCause(fmt.Errorf("task %d is not an object", i))
		}
		title := truncateRunes(strings.TrimSpace(firstField(item, titleAliases).String()), maxTitleLength)
		if title == "" {
			return nil, newError(CodeInvalidResponse, "The AI response could not be understood. Please try again.").
				withCause(fmt.Errorf("task %d has no usable title", i))
		}
		minutes := coerceMinutes(firstField(item, minutesAliases))

		entry := map[string]any{
			"title":            title,
			"estimatedMinutes": minutes,
		}
		if desc := strings.TrimSpace(firstField(item, descriptionAliases).String()); desc != "" {
			entry["description"] = truncateRunes(desc, maxDescriptionLength)
		}
		var err error
		doc, err = sjson.SetBytes(doc, fmt.Sprintf("tasks.%d", i), entry)
		if err != nil {
			return nil, newError(CodeInvalidResponse, "The AI response could not be understood. Please try again.").withCause(err)
		}
	}

	var result TaskBreakdown
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, newError(CodeInvalidResponse, "The AI response could not be understood. Please try again.").withCause(err)
	}
	if err := validateBreakdown(&result); err != nil {
		return nil, newError(CodeInvalidResponse, "The AI response could not be understood. Please try again.").withCause(err)
	}
	return &result, nil
}

// applyTimeCeiling scales estimates down proportionally when their sum
// exceeds an explicit user-stated ceiling. Estimates are never inflated
// and never scaled below the per-task minimum.
func applyTimeCeiling(result *TaskBreakdown, ceilingMinutes int) {
	if result == nil || ceilingMinutes <= 0 {
		return
	}
	total := result.TotalMinutes()
	if total <= ceilingMinutes {
		return
	}
	log.WithFields(log.Fields{"total": total, "ceiling": ceilingMinutes}).
		Warn("model exceeded stated time ceiling, rescaling estimates")
	scale := float64(ceilingMinutes) / float64(total)
	for i := range result.Tasks {
		scaled := int(float64(result.Tasks[i].EstimatedMinutes) * scale)
		if scaled < minTaskMinutes {
			scaled = minTaskMinutes
		}
		result.Tasks[i].EstimatedMinutes = scaled
	}

	// Flooring at the per-task minimum can leave a small overshoot;
	// shave it from the largest estimates until the ceiling holds or
	// every task is at the minimum.
	total = result.TotalMinutes()
	for total > ceilingMinutes {
		idx := -1
		for i, task := range result.Tasks {
			if task.EstimatedMinutes > minTaskMinutes && (idx < 0 || task.EstimatedMinutes > result.Tasks[idx].EstimatedMinutes) {
				idx = i
			}
		}
		if idx < 0 {
			break
		}
		shave := total - ceilingMinutes
		if slack := result.Tasks[idx].EstimatedMinutes - minTaskMinutes; shave > slack {
			shave = slack
		}
		result.Tasks[idx].EstimatedMinutes -= shave
		total -= shave
	}
}

// normalizeInsights repairs a parsed candidate into the weekly-insights
// contract. The headline is the only hard-required field; everything
// else is clamped, truncated, capped, or defaulted.
func normalizeInsights(candidate gjson.Result) (*WeeklyInsights, error) {
	headline := truncateRunes(strings.TrimSpace(firstField(candidate, headlineAliases).String()), maxHeadlineLength)
	if headline == "" {
		// Fall back to the first recommendation before giving up.
		if recs := firstField(candidate, recommendationAlias); recs.IsArray() && len(recs.Array()) > 0 {
			headline = truncateRunes(strings.TrimSpace(recommendationText(recs.Array()[0])), maxHeadlineLength)
		}
	}
	if headline == "" {
		return nil, newError(CodeInvalidResponse, "The AI response could not be understood. Please try again.").
			withCause(fmt.Errorf("no usable headline"))
	}

	result := &WeeklyInsights{
		Narrative:    truncateRunes(strings.TrimSpace(firstField(candidate, narrativeAliases).String()), maxNarrativeLength),
		NextWeekPlan: truncateRunes(strings.TrimSpace(firstField(candidate, nextWeekPlanAliases).String()), maxNextWeekPlanLength),
		Headline:     headline,
	}

	if insightsField := firstField(candidate, insightsAliases); insightsField.IsArray() {
		items := insightsField.Array()
		if len(items) > maxInsightCount {
			log.WithFields(log.Fields{"received": len(items), "kept": maxInsightCount}).
				Warn("insight list truncated to maximum cardinality")
			items = items[:maxInsightCount]
		}
		for _, item := range items {
			ins := Insight{
				Title:    truncateRunes(strings.TrimSpace(firstField(item, titleAliases).String()), maxInsightTitleLength),
				Detail:   truncateRunes(strings.TrimSpace(firstField(item, insightDetailAlias).String()), maxInsightDetailLength),
				Category: normalizeCategory(item.Get("category").String()),
			}
			if ins.Title == "" && ins.Detail == "" && item.Type == gjson.String {
				// Some models emit insights as bare strings.
				ins.Title = truncateRunes(strings.TrimSpace(item.String()), maxInsightTitleLength)
				ins.Category = defaultInsightCategory
			}
			if ins.Title == "" {
				continue
			}
			result.Insights = append(result.Insights, ins)
		}
	}

	if recsField := firstField(candidate, recommendationAlias); recsField.IsArray() {
		items := recsField.Array()
		if len(items) > maxRecommendationCount {
			log.WithFields(log.Fields{"received": len(items), "kept": maxRecommendationCount}).
				Warn("recommendation list truncated to maximum cardinality")
			items = items[:maxRecommendationCount]
		}
		for _, item := range items {
			rec := truncateRunes(strings.TrimSpace(recommendationText(item)), maxRecommendationLen)
			if rec == "" {
				continue
			}
			result.Recommendations = append(result.Recommendations, rec)
		}
	}

	if err := validateInsights(result); err != nil {
		return nil, newError(CodeInvalidResponse, "The AI response could not be understood. Please try again.").withCause(err)
	}
	return result, nil
}

// recommendationText accepts either a bare string or an object carrying
// a text-like field.
func recommendationText(item gjson.Result) string {
	if item.Type == gjson.String {
		return item.String()
	}
	if item.IsObject() {
		if field := firstField(item, []string{"text", "recommendation", "title", "detail"}); field.Exists() {
			return field.String()
		}
	}
	return ""
}

// coerceMinutes turns a numeric or numeric-looking value into minutes,
// clamped into the valid range. Uncoercible values get the default.
func coerceMinutes(field gjson.Result) int {
	switch field.Type {
	case gjson.Number:
		return clampMinutes(int(field.Float()))
	case gjson.String:
		// Tolerate values such as "45", "45.5" or "45 minutes".
		if match := leadingNumberPattern.FindString(field.String()); match != "" {
			parsed := gjson.Parse(match)
			return clampMinutes(int(parsed.Float()))
		}
	}
	return defaultTaskMinutes
}

func clampMinutes(minutes int) int {
	if minutes < minTaskMinutes {
		return minTaskMinutes
	}
	if minutes > maxTaskMinutes {
		return maxTaskMinutes
	}
	return minutes
}

// normalizeCategory maps drifted category labels onto the closed set,
// falling back to the default rather than rejecting the insight.
func normalizeCategory(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	for _, c := range insightCategories {
		if cleaned == c {
			return c
		}
	}
	switch cleaned {
	case "productivity", "concentration", "deep work":
		return "focus"
	case "habit", "routine", "routines", "consistency":
		return "habits"
	case "load", "balance", "capacity", "time management":
		return "workload"
	case "health", "rest", "breaks", "wellness", "well-being":
		return "wellbeing"
	}
	return defaultInsightCategory
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
