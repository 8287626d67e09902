package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// GenerationRequest is the immutable description of one generator call.
type GenerationRequest struct {
	Prompt          string
	Timeout         time.Duration
	Temperature     float64
	MaxOutputTokens int
}

// Generator is the outbound text-generation capability. Implementations
// may be slow, may truncate output, and may fail outright; the pipeline
// assumes nothing beyond "prompt in, text or error out".
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerationRequest) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	return f(ctx, req)
}

// invokeBounded races the generator against a wall-clock timer. The
// first side to settle wins; a late generator result is discarded into
// the buffered channel, so the losing goroutine never blocks or
// double-resolves the call. The generator is not told to stop on
// timeout; callers must not assume upstream cancellation.
func invokeBounded(ctx context.Context, gen Generator, req GenerationRequest) (string, error) {
	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	started := time.Now()
	go func() {
		text, err := gen.Generate(ctx, req)
		done <- outcome{text: text, err: err}
	}()

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return "", out.err
		}
		log.WithFields(log.Fields{
			"elapsed": time.Since(started).Round(time.Millisecond),
			"chars":   len(out.text),
		}).Debug("generation completed")
		return strings.TrimSpace(out.text), nil
	case <-timer.C:
		log.WithField("timeout", req.Timeout).Warn("generation timed out")
		return "", newError(CodeTimeout, "The AI service took too long to respond. Please try again.").
			WithContext("timeoutMs", req.Timeout.Milliseconds())
	case <-ctx.Done():
		// A caller deadline is a timeout; a caller abort is not.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", newError(CodeTimeout, "The AI service took too long to respond. Please try again.").withCause(ctx.Err())
		}
		return "", newError(CodeServiceError, "The request was cancelled before the AI service responded.").withCause(ctx.Err())
	}
}
