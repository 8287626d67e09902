package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delayedGenerator(delay time.Duration, text string, err error) Generator {
	return GeneratorFunc(func(ctx context.Context, req GenerationRequest) (string, error) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return text, err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
}

func TestInvokeBounded_TimeoutLoses(t *testing.T) {
	gen := delayedGenerator(200*time.Millisecond, "too late", nil)
	_, err := invokeBounded(context.Background(), gen, GenerationRequest{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	perr := Classify(err)
	assert.Equal(t, CodeTimeout, perr.Code)
	assert.Equal(t, 504, perr.HTTPStatus)
}

func TestInvokeBounded_FastGeneratorWins(t *testing.T) {
	gen := delayedGenerator(10*time.Millisecond, "  quick result  ", nil)
	got, err := invokeBounded(context.Background(), gen, GenerationRequest{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "quick result", got, "completion is whitespace-trimmed")
}

func TestInvokeBounded_GeneratorErrorPropagates(t *testing.T) {
	sentinel := errors.New("upstream exploded")
	gen := delayedGenerator(5*time.Millisecond, "", sentinel)
	_, err := invokeBounded(context.Background(), gen, GenerationRequest{Timeout: time.Second})
	assert.ErrorIs(t, err, sentinel)
}

func TestInvokeBounded_LateLoserIsDiscarded(t *testing.T) {
	released := make(chan struct{})
	gen := GeneratorFunc(func(ctx context.Context, req GenerationRequest) (string, error) {
		<-released
		return "late", nil
	})
	_, err := invokeBounded(context.Background(), gen, GenerationRequest{Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, CodeTimeout, Classify(err).Code)

	// Releasing the loser afterwards must not panic or block; the
	// buffered channel absorbs its result.
	close(released)
	time.Sleep(10 * time.Millisecond)
}

func TestInvokeBounded_CancelledContextIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := delayedGenerator(time.Second, "never", nil)
	_, err := invokeBounded(ctx, gen, GenerationRequest{Timeout: time.Second})
	require.Error(t, err)
	perr := Classify(err)
	assert.Equal(t, CodeServiceError, perr.Code, "a caller abort is not a generation timeout")
	assert.NotEqual(t, 504, perr.HTTPStatus)
}

func TestInvokeBounded_ContextDeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	gen := delayedGenerator(time.Second, "never", nil)
	_, err := invokeBounded(ctx, gen, GenerationRequest{Timeout: time.Second})
	require.Error(t, err)
	assert.Equal(t, CodeTimeout, Classify(err).Code)
}

func TestInvokeBounded_ConcurrentCalls(t *testing.T) {
	gen := delayedGenerator(5*time.Millisecond, "ok", nil)
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := invokeBounded(context.Background(), gen, GenerationRequest{Timeout: time.Second})
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-done)
	}
}
