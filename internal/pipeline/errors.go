package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code identifies a failure class in the pipeline's closed error taxonomy.
type Code string

const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeInputTooLong      Code = "INPUT_TOO_LONG"
	CodeSecurityViolation Code = "SECURITY_VIOLATION"
	CodeInvalidDeadline   Code = "INVALID_DEADLINE"
	CodeInsufficientData  Code = "INSUFFICIENT_DATA"
	CodeTimeout           Code = "AI_TIMEOUT"
	CodeRateLimited       Code = "AI_RATE_LIMITED"
	CodeBreakdownFailed   Code = "AI_BREAKDOWN_FAILED"
	CodeInsightsFailed    Code = "AI_INSIGHTS_GENERATION_FAILED"
	CodeInvalidResponse   Code = "INVALID_AI_RESPONSE"
	CodeConfigError       Code = "AI_CONFIG_ERROR"
	CodeServiceError      Code = "AI_SERVICE_ERROR"
)

// Error is the single error type crossing the pipeline boundary. It is
// constructed once at the failure site and propagated unchanged; the
// user-facing Message never contains raw model output.
type Error struct {
	Code       Code
	HTTPStatus int
	Message    string
	Context    map[string]any
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithContext attaches opaque diagnostic metadata to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, 1)
	}
	e.Context[key] = value
	return e
}

func (e *Error) withCause(cause error) *Error {
	e.cause = cause
	return e
}

var errorStatus = map[Code]int{
	CodeInvalidInput:      http.StatusBadRequest,
	CodeInputTooLong:      http.StatusBadRequest,
	CodeSecurityViolation: http.StatusBadRequest,
	CodeInvalidDeadline:   http.StatusBadRequest,
	CodeInsufficientData:  http.StatusBadRequest,
	CodeTimeout:           http.StatusGatewayTimeout,
	CodeRateLimited:       http.StatusServiceUnavailable,
	CodeBreakdownFailed:   http.StatusInternalServerError,
	CodeInsightsFailed:    http.StatusInternalServerError,
	CodeInvalidResponse:   http.StatusInternalServerError,
	CodeConfigError:       http.StatusInternalServerError,
	CodeServiceError:      http.StatusInternalServerError,
}

func newError(code Code, message string) *Error {
	status, ok := errorStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Code: code, HTTPStatus: status, Message: message}
}

// Substrings that identify provider quota or rate-limit rejections.
// Providers disagree on wording, so the match set is intentionally broad.
var rateLimitMarkers = []string{
	"rate limit",
	"rate_limit",
	"ratelimited",
	"too many requests",
	"status 429",
	"quota",
	"resource_exhausted",
	"resource has been exhausted",
	"overloaded",
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Classify maps any error escaping a stage onto the closed taxonomy.
// Typed pipeline errors pass through unchanged; everything else becomes
// a generic service error whose original message stays in logs only.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeTimeout, "The AI service took too long to respond. Please try again.").withCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(CodeServiceError, "The request was cancelled before the AI service responded.").withCause(err)
	}
	if isRateLimitError(err) {
		return newError(CodeRateLimited, "The AI service is temporarily busy. Please try again in a moment.").withCause(err)
	}
	return newError(CodeServiceError, "The AI service encountered an unexpected problem. Please try again.").withCause(err)
}
