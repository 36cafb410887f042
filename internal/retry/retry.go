// Package retry wraps fallible upstream calls with classified exponential
// backoff. Classification inspects the error's embedded status and text so
// the policy stays stateless and reusable across fetch paths.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/studyloop/edsync/internal/edapi"
)

// Class is the retry classification of an error.
type Class int

const (
	// ClassOther gets the plain exponential schedule.
	ClassOther Class = iota
	// ClassRateLimit gets a 2s minimum backoff regardless of attempt.
	ClassRateLimit
	// ClassTimeout retries immediately on the first attempt, then falls
	// back to the normal schedule.
	ClassTimeout
)

const (
	// DefaultMaxAttempts bounds retries for thread-list and detail fetches.
	DefaultMaxAttempts = 5

	baseDelay      = 100 * time.Millisecond
	rateLimitFloor = 2 * time.Second
)

// Classify maps an error onto its retry class by inspecting the embedded
// HTTP status and message text.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}

	var apiErr *edapi.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return ClassRateLimit
		}
		if apiErr.StatusCode == 408 || apiErr.StatusCode == 504 {
			return ClassTimeout
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return ClassRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ClassTimeout
	}
	return ClassOther
}

// Permanent reports whether an error should never be retried. Auth and
// malformed-response errors will not improve on a second attempt.
func Permanent(err error) bool {
	var authErr *edapi.AuthError
	var malformed *edapi.MalformedResponseError
	return errors.As(err, &authErr) || errors.As(err, &malformed)
}

// Delay returns the wait before the given retry. attempt is 1-based and
// names the attempt that just failed.
func Delay(class Class, attempt int) time.Duration {
	d := baseDelay << (attempt - 1)

	switch class {
	case ClassRateLimit:
		if d < rateLimitFloor {
			return rateLimitFloor
		}
	case ClassTimeout:
		if attempt == 1 {
			return 0
		}
	}
	return d
}

// Do runs op up to maxAttempts times, sleeping per the classified schedule
// between attempts. It returns the first success, or the last error once
// attempts are exhausted. Permanent errors fail immediately.
func Do[T any](ctx context.Context, maxAttempts int, op func(context.Context) (T, error)) (T, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if Permanent(err) || attempt == maxAttempts {
			break
		}

		delay := Delay(Classify(err), attempt)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		} else if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
