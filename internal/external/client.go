// Package external is the boundary between LeanPulse domain logic and
// third-party HTTP APIs (SendGrid, Slack and Teams webhooks). All outbound
// calls go through BaseClient, which applies circuit breaking, trace
// propagation and error mapping. Every call is a single attempt.
package external

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"leanpulse/internal/types"
)

// maxErrorBody bounds how much of an upstream error body is read into an
// error message.
const maxErrorBody = 4096

// BreakerSettings tunes the circuit breaker.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultBreakerSettings trips after five consecutive failures and probes
// again after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// BaseClient wraps an *http.Client and a circuit breaker. Provider clients
// embed it or hold it.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient with its own named breaker.
func NewBaseClient(httpClient *http.Client, breakerName string, bs BreakerSettings, userAgent string) *BaseClient {
	threshold := bs.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return NewBaseClientWithBreaker(httpClient, cb, userAgent)
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided breaker.
func NewBaseClientWithBreaker(httpClient *http.Client, breaker *gobreaker.CircuitBreaker[*http.Response], userAgent string) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &BaseClient{
		client:    httpClient,
		breaker:   breaker,
		userAgent: userAgent,
	}
}

// Name returns the breaker name, which identifies the upstream.
func (c *BaseClient) Name() string {
	return c.breaker.Name()
}

// BreakerState returns "closed", "half-open" or "open".
func (c *BaseClient) BreakerState() string {
	return c.breaker.State().String()
}

// Do executes req once with trace ID and User-Agent injection and circuit
// breaking.
//
// 2xx, 3xx and 4xx (other than 429) responses are returned as-is and the
// caller closes the body. 429/5xx, transport errors and an open breaker
// return a *types.AppError carrying the upstream status and a snippet of the
// response body.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err == nil {
		return resp, nil
	}

	appErr := c.mapError(resp, err)
	if resp != nil {
		resp.Body.Close()
	}
	return nil, appErr
}

func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; upstream service unavailable", err)
	}

	if resp != nil {
		snippet := ReadBodySnippet(resp.Body)
		details := map[string]any{"status": resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests {
			return types.NewAppErrorWithDetails(types.ErrCodeUpstreamRateLimited,
				withSnippet("upstream rate limit exceeded (429)", snippet), err, details)
		}
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable,
			withSnippet(fmt.Sprintf("upstream returned %d", resp.StatusCode), snippet), err, details)
	}

	return types.NewAppError(types.ErrCodeUpstreamUnavailable,
		fmt.Sprintf("upstream request failed: %v", err), err)
}

// ReadBodySnippet reads at most maxErrorBody bytes and truncates the text to
// 200 characters for use in log rows.
func ReadBodySnippet(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return TruncateBody(strings.TrimSpace(string(b)))
}

// TruncateBody caps s at 200 characters.
func TruncateBody(s string) string {
	const maxLen = 200
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func withSnippet(msg, snippet string) string {
	if snippet == "" {
		return msg
	}
	return msg + ": " + snippet
}
