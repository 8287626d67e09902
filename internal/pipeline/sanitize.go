package pipeline

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const (
	maxPromptLength  = 2000
	minPromptWords   = 3
	maxTokenShare    = 0.30
	logPreviewLength = 80
)

var (
	// Prompt-injection phrases and chat-template delimiters. Matched
	// case-insensitively against the normalized prompt.
	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+instructions`),
		regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|rules)`),
		regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|prior|your)\s+(instructions|rules|training)`),
		regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|in)\b`),
		regexp.MustCompile(`(?i)(?:^|\n)\s*(system|assistant|developer)\s*:`),
		regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+are\s+)?(a\s+)?(different|new)\s+(ai|model|assistant)`),
		regexp.MustCompile(`(?i)reveal\s+(your\s+)?(system\s+)?prompt`),
		regexp.MustCompile(`<\|im_start\|>|<\|im_end\|>|<\|endoftext\|>`),
		regexp.MustCompile(`\[INST\]|\[/INST\]|<<SYS>>|<</SYS>>`),
	}

	markupPattern = regexp.MustCompile(`<\s*/?\s*(script|style|iframe|object|embed)[^>]*>`)
	// Tag-shaped tokens only: a bare or closing tag name, or a name
	// followed by attribute assignments. Inequalities in plain prose,
	// "a<b and c>d" say, pass through untouched.
	htmlTagPattern          = regexp.MustCompile(`<\s*/?\s*[a-zA-Z][a-zA-Z0-9-]{0,30}\s*/?>|<[a-zA-Z][a-zA-Z0-9-]{0,30}\s[^<>\n]{0,200}=[^<>\n]{0,200}>`)
	collapseSpacesPattern   = regexp.MustCompile(`[ \t\f\v]+`)
	collapseNewlinesPattern = regexp.MustCompile(`\n{3,}`)
)

// SanitizePrompt normalizes a free-text user prompt and screens it for
// abuse before it is allowed anywhere near a model. The returned string
// is non-empty, at most maxPromptLength characters, whitespace-normalized,
// and free of control characters, markup, and known injection phrases.
// Sanitization is idempotent: a sanitized prompt passes through unchanged.
func SanitizePrompt(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", newError(CodeInvalidInput, "Please provide a description of what you want to accomplish.")
	}
	if utf8.RuneCountInString(trimmed) > maxPromptLength {
		return "", newError(CodeInputTooLong, "Your description is too long. Please keep it under 2000 characters.").
			WithContext("length", utf8.RuneCountInString(trimmed))
	}

	cleaned := stripControlRunes(trimmed)
	cleaned = markupPattern.ReplaceAllString(cleaned, " ")
	cleaned = htmlTagPattern.ReplaceAllString(cleaned, " ")
	cleaned = collapseSpacesPattern.ReplaceAllString(cleaned, " ")
	cleaned = collapseNewlinesPattern.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", newError(CodeInvalidInput, "Please provide a description of what you want to accomplish.")
	}

	for _, pattern := range injectionPatterns {
		if pattern.MatchString(cleaned) {
			log.WithFields(log.Fields{
				"pattern": pattern.String(),
				"preview": boundedPreview(cleaned),
			}).Warn("prompt injection attempt blocked")
			return "", newError(CodeSecurityViolation, "Your input contains content that cannot be processed.").
				WithContext("pattern", pattern.String())
		}
	}
	return cleaned, nil
}

// ValidateQuality rejects prompts too thin or too repetitive to produce
// a useful breakdown. Runs after SanitizePrompt on the sanitized text.
func ValidateQuality(prompt string) error {
	words := strings.Fields(prompt)
	if len(words) < minPromptWords {
		return newError(CodeInvalidInput, "Please describe your goal in a few more words.")
	}

	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[strings.ToLower(w)]++
	}
	for token, count := range counts {
		// A repeated token dominating the prompt is the flooding
		// signature; a single occurrence can never trip this.
		if count > 1 && float64(count)/float64(len(words)) > maxTokenShare {
			return newError(CodeInvalidInput, "Your description looks repetitive. Please describe your goal in plain words.").
				WithContext("token", boundedPreview(token))
		}
	}
	return nil
}

// stripControlRunes drops control characters, keeping newlines and
// converting tabs and vertical whitespace to plain spaces.
func stripControlRunes(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			builder.WriteByte('\n')
		case r == '\t' || r == '\v' || r == '\f':
			builder.WriteByte(' ')
		case r == '\r':
			continue
		case r < 32 || unicode.IsControl(r):
			continue
		default:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

func boundedPreview(text string) string {
	if utf8.RuneCountInString(text) <= logPreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:logPreviewLength]) + "..."
}
