package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const validBreakdownJSON = `{"tasks":[{"title":"Write outline","estimatedMinutes":30}]}`

func TestParseCandidate_Direct(t *testing.T) {
	got, err := parseCandidate(validBreakdownJSON, "tasks", breakdownCandidateCheck)
	require.NoError(t, err)
	assert.Equal(t, "Write outline", got.Get("tasks.0.title").String())
}

func TestParseCandidate_StripsMarkdownFences(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n" + validBreakdownJSON + "\n```"},
		{"bare fence", "```\n" + validBreakdownJSON + "\n```"},
		{"fence with prose", "Here is your breakdown:\n```json\n" + validBreakdownJSON + "\n```\nLet me know if you need more."},
	}
	want := gjson.Parse(validBreakdownJSON)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseCandidate(tc.raw, "tasks", breakdownCandidateCheck)
			require.NoError(t, err)
			assert.Equal(t, want.Get("tasks.0.title").String(), got.Get("tasks.0.title").String())
			assert.Equal(t, want.Get("tasks.0.estimatedMinutes").Int(), got.Get("tasks.0.estimatedMinutes").Int())
		})
	}
}

func TestParseCandidate_ExtractsObjectFromProse(t *testing.T) {
	raw := "Sure! Based on your goal I suggest: " + validBreakdownJSON + " Good luck with it!"
	got, err := parseCandidate(raw, "tasks", breakdownCandidateCheck)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.Get("tasks.0.estimatedMinutes").Int())
}

func TestParseCandidate_WrapsBareArray(t *testing.T) {
	raw := `[{"title":"Draft intro","estimatedMinutes":25},{"title":"Edit intro","estimatedMinutes":15}]`
	got, err := parseCandidate(raw, "tasks", breakdownCandidateCheck)
	require.NoError(t, err)
	tasks := got.Get("tasks").Array()
	require.Len(t, tasks, 2)
	assert.Equal(t, "Draft intro", tasks[0].Get("title").String())
}

func TestParseCandidate_ArrayWrapDisabledWithoutPrimaryField(t *testing.T) {
	raw := `[{"title":"Draft intro","estimatedMinutes":25}]`
	_, err := parseCandidate(raw, "", insightsCandidateCheck)
	assert.ErrorIs(t, err, errParseExhausted)
}

func TestParseCandidate_RepairsTrailingCommas(t *testing.T) {
	raw := `Model output follows {"tasks":[{"title":"Pack slides","estimatedMinutes":20},]} end of output`
	got, err := parseCandidate(raw, "tasks", breakdownCandidateCheck)
	require.NoError(t, err)
	assert.Equal(t, "Pack slides", got.Get("tasks.0.title").String())
}

func TestParseCandidate_Exhaustion(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unbalanced braces", "I tried but {{{ nothing came out"},
		{"plain prose", "Sorry, I cannot help with that request."},
		{"empty", ""},
		{"truncated json", `{"tasks":[{"title":"Draft`},
		{"wrong shape", `{"answer":42}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseCandidate(tc.raw, "tasks", breakdownCandidateCheck)
			assert.ErrorIs(t, err, errParseExhausted)
		})
	}
}

func TestParseCandidate_InsightsCandidate(t *testing.T) {
	raw := "```json\n{\"narrative\":\"Solid week.\",\"headline\":\"Protect your mornings\",\"insights\":[]}\n```"
	got, err := parseCandidate(raw, "", insightsCandidateCheck)
	require.NoError(t, err)
	assert.Equal(t, "Protect your mornings", got.Get("headline").String())
}
