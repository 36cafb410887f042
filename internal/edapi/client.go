package edapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Default client-side rate limit. The upstream enforces its own limits; this
// keeps bursts of detail fetches from tripping them in the first place.
const (
	defaultRequestsPerSecond = 10.0
	defaultBurstSize         = 20
)

// TokenProvider supplies the bearer token for each request. Injecting it
// here keeps token state out of the client; callers own refresh and storage.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider for a fixed token string.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Client talks to the upstream discussion service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit overrides the client-side request rate limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewClient creates a client for the discussion API rooted at baseURL.
func NewClient(baseURL string, tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurstSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs an authenticated GET and decodes the JSON response into out.
// Non-2xx responses and transport errors are returned as *APIError with the
// status and body embedded for later classification.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%s: resolve token: %w", op, err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &APIError{Op: op, Body: "read body: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedResponseError{Op: op, Reason: err.Error()}
	}
	return nil
}
