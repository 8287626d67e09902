// Package pipeline turns unreliable large-language-model completions
// into validated, bounded structures for the task-breakdown and
// weekly-insights features. Every stage either returns a valid value or
// a typed *Error; nothing is retried and no raw model text reaches the
// caller's users.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Options are the pipeline tunables, resolved once at startup.
type Options struct {
	Timeout            time.Duration
	Temperature        float64
	BreakdownMaxTokens int
	InsightsMaxTokens  int
}

const (
	defaultTimeout            = 120 * time.Second
	defaultTemperature        = 0.7
	defaultBreakdownMaxTokens = 2000
	defaultInsightsMaxTokens  = 8192
)

func (o *Options) normalize() {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Temperature <= 0 {
		o.Temperature = defaultTemperature
	}
	if o.BreakdownMaxTokens <= 0 {
		o.BreakdownMaxTokens = defaultBreakdownMaxTokens
	}
	if o.InsightsMaxTokens <= 0 {
		o.InsightsMaxTokens = defaultInsightsMaxTokens
	}
}

// Service is the pipeline entry point. It is stateless per call and
// safe for concurrent use. Tunables live behind an atomic pointer so
// they can be swapped at runtime without a lock on the request path.
type Service struct {
	opts atomic.Pointer[Options]
	gen  Generator
}

// NewService wires the pipeline to a generator. Generator absence is a
// construction-time configuration fault, not a per-request error.
func NewService(opts Options, gen Generator) (*Service, error) {
	if gen == nil {
		return nil, newError(CodeConfigError, "AI features are not available right now.").
			withCause(errors.New("nil generator"))
	}
	opts.normalize()
	svc := &Service{gen: gen}
	svc.opts.Store(&opts)
	return svc, nil
}

// UpdateOptions replaces the pipeline tunables, typically from a
// configuration reload. In-flight calls finish with the options they
// started with; subsequent calls observe the new values.
func (s *Service) UpdateOptions(opts Options) {
	opts.normalize()
	s.opts.Store(&opts)
	log.WithFields(log.Fields{
		"timeout":            opts.Timeout,
		"temperature":        opts.Temperature,
		"breakdownMaxTokens": opts.BreakdownMaxTokens,
		"insightsMaxTokens":  opts.InsightsMaxTokens,
	}).Info("pipeline tunables updated")
}

// GenerateTaskBreakdown runs the full pipeline for the breakdown
// variant: sanitize, build prompt, bounded generation, recovery parse,
// normalize, validate.
func (s *Service) GenerateTaskBreakdown(ctx context.Context, rawPrompt string, bctx BreakdownContext) (*TaskBreakdown, error) {
	callID := uuid.NewString()
	logger := log.WithFields(log.Fields{"call": callID, "kind": KindTaskBreakdown})

	if !bctx.Deadline.IsZero() && !bctx.Deadline.After(time.Now()) {
		return nil, newError(CodeInvalidDeadline, "The deadline must be in the future.")
	}

	sanitized, err := SanitizePrompt(rawPrompt)
	if err != nil {
		return nil, Classify(err)
	}
	if err := ValidateQuality(sanitized); err != nil {
		return nil, Classify(err)
	}

	opts := s.opts.Load()
	raw, err := invokeBounded(ctx, s.gen, GenerationRequest{
		Prompt:          BuildBreakdownPrompt(sanitized, bctx),
		Timeout:         opts.Timeout,
		Temperature:     opts.Temperature,
		MaxOutputTokens: opts.BreakdownMaxTokens,
	})
	if err != nil {
		return nil, Classify(err)
	}

	candidate, err := parseCandidate(raw, "tasks", breakdownCandidateCheck)
	if err != nil {
		logger.WithError(err).Error("breakdown parsing exhausted")
		return nil, newError(CodeBreakdownFailed,
			"Could not generate a task breakdown. Please try again or create tasks manually.").withCause(err)
	}

	result, err := normalizeBreakdown(candidate)
	if err != nil {
		logger.WithError(err).Error("breakdown normalization failed")
		return nil, Classify(err)
	}
	applyTimeCeiling(result, bctx.TimeLimitMinutes)

	logger.WithFields(log.Fields{"tasks": len(result.Tasks), "totalMinutes": result.TotalMinutes()}).
		Info("task breakdown generated")
	return result, nil
}

// GenerateWeeklyInsights runs the full pipeline for the insights variant.
func (s *Service) GenerateWeeklyInsights(ctx context.Context, rawPrompt string, stats WeeklyStats) (*WeeklyInsights, error) {
	callID := uuid.NewString()
	logger := log.WithFields(log.Fields{"call": callID, "kind": KindWeeklyInsights})

	if !stats.HasActivity() {
		return nil, newError(CodeInsufficientData,
			"Not enough activity this week to generate insights. Complete a few focus sessions first.")
	}

	sanitized := ""
	if rawPrompt != "" {
		var err error
		sanitized, err = SanitizePrompt(rawPrompt)
		if err != nil {
			return nil, Classify(err)
		}
	}

	opts := s.opts.Load()
	raw, err := invokeBounded(ctx, s.gen, GenerationRequest{
		Prompt:          BuildInsightsPrompt(sanitized, stats),
		Timeout:         opts.Timeout,
		Temperature:     opts.Temperature,
		MaxOutputTokens: opts.InsightsMaxTokens,
	})
	if err != nil {
		return nil, Classify(err)
	}

	candidate, err := parseCandidate(raw, "", insightsCandidateCheck)
	if err != nil {
		logger.WithError(err).Error("insights parsing exhausted")
		return nil, newError(CodeInsightsFailed,
			"Could not generate your weekly insights. Please try again later.").withCause(err)
	}

	result, err := normalizeInsights(candidate)
	if err != nil {
		logger.WithError(err).Error("insights normalization failed")
		return nil, Classify(err)
	}

	logger.WithFields(log.Fields{"insights": len(result.Insights), "recommendations": len(result.Recommendations)}).
		Info("weekly insights generated")
	return result, nil
}

// GenerateStructuredOutput is the kind-dispatched entry used by callers
// that carry the variant as data. The context argument must be a
// BreakdownContext for KindTaskBreakdown or WeeklyStats for
// KindWeeklyInsights.
func (s *Service) GenerateStructuredOutput(ctx context.Context, kind Kind, rawPrompt string, callCtx any) (any, error) {
	switch kind {
	case KindTaskBreakdown:
		bctx, ok := callCtx.(BreakdownContext)
		if !ok {
			return nil, newError(CodeInvalidInput, "Invalid request context.").
				withCause(fmt.Errorf("expected BreakdownContext, got %T", callCtx))
		}
		return s.GenerateTaskBreakdown(ctx, rawPrompt, bctx)
	case KindWeeklyInsights:
		stats, ok := callCtx.(WeeklyStats)
		if !ok {
			return nil, newError(CodeInvalidInput, "Invalid request context.").
				withCause(fmt.Errorf("expected WeeklyStats, got %T", callCtx))
		}
		return s.GenerateWeeklyInsights(ctx, rawPrompt, stats)
	default:
		return nil, newError(CodeInvalidInput, "Unknown generation kind.").
			withCause(fmt.Errorf("kind %q", kind))
	}
}
