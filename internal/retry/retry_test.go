package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/edsync/internal/edapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassOther},
		{"status 429", &edapi.APIError{Op: "x", StatusCode: 429, Body: "slow down"}, ClassRateLimit},
		{"status 504", &edapi.APIError{Op: "x", StatusCode: 504, Body: "gateway timeout"}, ClassTimeout},
		{"rate limit text", errors.New("upstream rate limit exceeded"), ClassRateLimit},
		{"too many requests text", errors.New("too many requests"), ClassRateLimit},
		{"timeout text", errors.New("request timeout"), ClassTimeout},
		{"deadline text", errors.New("context deadline exceeded"), ClassTimeout},
		{"plain failure", &edapi.APIError{Op: "x", StatusCode: 500, Body: "boom"}, ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestDelaySchedule(t *testing.T) {
	// Plain exponential: 100, 200, 400, 800ms.
	assert.Equal(t, 100*time.Millisecond, Delay(ClassOther, 1))
	assert.Equal(t, 200*time.Millisecond, Delay(ClassOther, 2))
	assert.Equal(t, 400*time.Millisecond, Delay(ClassOther, 3))
	assert.Equal(t, 800*time.Millisecond, Delay(ClassOther, 4))

	// Rate limit gets a 2s floor regardless of attempt.
	assert.Equal(t, 2*time.Second, Delay(ClassRateLimit, 1))
	assert.Equal(t, 2*time.Second, Delay(ClassRateLimit, 4))

	// Timeout retries immediately on the first attempt only.
	assert.Equal(t, time.Duration(0), Delay(ClassTimeout, 1))
	assert.Equal(t, 200*time.Millisecond, Delay(ClassTimeout, 2))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	start := time.Now()

	result, err := Do(context.Background(), 5, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &edapi.APIError{Op: "fetch", StatusCode: 500, Body: "flaky"}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)

	// Two failed attempts wait 100ms + 200ms before the third succeeds.
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	lastErr := &edapi.APIError{Op: "fetch", StatusCode: 500, Body: "always down"}

	_, err := Do(context.Background(), 3, func(context.Context) (int, error) {
		attempts++
		return 0, lastErr
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, error(lastErr))
}

func TestDoPermanentErrorFailsImmediately(t *testing.T) {
	attempts := 0

	_, err := Do(context.Background(), 5, func(context.Context) (int, error) {
		attempts++
		return 0, &edapi.AuthError{Reason: "bad token"}
	})

	var authErr *edapi.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, attempts)
}

func TestDoTimeoutFirstAttemptImmediate(t *testing.T) {
	attempts := 0
	start := time.Now()

	result, err := Do(context.Background(), 5, func(context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, &edapi.APIError{Op: "fetch", StatusCode: 504, Body: "gateway timeout"}
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, 5, func(context.Context) (int, error) {
		return 0, &edapi.APIError{Op: "fetch", StatusCode: 500, Body: "boom"}
	})

	assert.ErrorIs(t, err, context.Canceled)
}
