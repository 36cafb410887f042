package edapi

import "fmt"

// APIError is returned for any non-success response or transport failure.
// The status code and response body are embedded so the retry policy can
// classify it without this package knowing about retry semantics.
type APIError struct {
	Op         string
	StatusCode int // zero for transport errors
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// AuthError indicates the supplied token is invalid or expired. It is never
// retried and is surfaced verbatim to the caller.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Reason
}

// MalformedResponseError indicates the upstream returned JSON that does not
// satisfy the expected shape (e.g. a comment without an id).
type MalformedResponseError struct {
	Op     string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
}
