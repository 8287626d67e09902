package pipeline

import (
	"errors"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// errParseExhausted signals that every recovery strategy failed. The
// pipeline entry maps it onto the variant-specific terminal code so the
// parser itself stays kind-agnostic.
var errParseExhausted = errors.New("all parse strategies exhausted")

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// parseStrategy transforms raw model output into a candidate JSON
// document. A transform returns "" when it does not apply to the input.
type parseStrategy struct {
	name      string
	transform func(raw string) string
}

// Strategies run strictly in order, cheapest and most likely first.
// Models reliably produce near-valid JSON; each step removes one common
// class of framing damage.
var parseStrategies = []parseStrategy{
	{name: "direct", transform: strings.TrimSpace},
	{name: "strip-fences", transform: stripCodeFences},
	{name: "extract-object", transform: extractObject},
	{name: "wrap-array", transform: extractArray},
	{name: "repair", transform: repairJSON},
}

// parseCandidate walks the strategy chain until one output both parses
// as JSON and passes the variant's candidate check. The raw text never
// leaves this function except as a bounded preview in logs.
//
// primaryField is the top-level array key used by the wrap-array
// strategy for single-array schemas; empty disables that strategy.
func parseCandidate(raw string, primaryField string, check candidateCheck) (gjson.Result, error) {
	for _, strategy := range parseStrategies {
		if strategy.name == "wrap-array" && primaryField == "" {
			continue
		}
		candidate := strategy.transform(raw)
		if candidate == "" {
			continue
		}
		if strategy.name == "wrap-array" {
			candidate = `{"` + primaryField + `":` + candidate + `}`
		}
		if !gjson.Valid(candidate) {
			log.WithField("strategy", strategy.name).Debug("candidate is not valid JSON")
			continue
		}
		parsed := gjson.Parse(candidate)
		if !check(parsed) {
			log.WithField("strategy", strategy.name).Debug("candidate parsed but failed schema check")
			continue
		}
		if strategy.name != "direct" {
			log.WithField("strategy", strategy.name).Debug("recovered structured output")
		}
		return parsed, nil
	}
	log.WithField("preview", boundedPreview(raw)).Warn("model output unrecoverable")
	return gjson.Result{}, errParseExhausted
}

// stripCodeFences removes a leading ``` or ```json marker and a
// trailing ``` marker, tolerating prose around the fenced block.
func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	text = text[start+3:]
	// Drop a language tag such as "json" on the fence line.
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(text[:newline])
		if firstLine == "" || isFenceLanguageTag(firstLine) {
			text = text[newline+1:]
		}
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

func isFenceLanguageTag(line string) bool {
	if len(line) > 10 {
		return false
	}
	for _, r := range line {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// extractObject takes the substring from the first '{' to the last '}'.
func extractObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// extractArray takes the substring from the first '[' to the last ']'.
// The caller wraps it under the schema's primary array key.
func extractArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// repairJSON applies last-resort textual fixes: strip everything outside
// the outermost braces, then remove trailing commas before '}' or ']'.
func repairJSON(raw string) string {
	candidate := extractObject(raw)
	if candidate == "" {
		candidate = strings.TrimSpace(raw)
	}
	if candidate == "" {
		return ""
	}
	return trailingCommaPattern.ReplaceAllString(candidate, "$1")
}
