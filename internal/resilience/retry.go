// Package resilience wraps single upstream calls in bounded retry with
// exponential backoff. Callers place the wrapper before any irreversible
// side effect; it never retries past one.
//
// Transient classification is status-code-first: 429 and the 5xx overload
// family retry, everything else is permanent. The message-pattern check is
// a fallback used only when the error carries no status, for upstreams that
// report overload in prose.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// UpstreamError is a failed upstream call with its HTTP status, if any.
type UpstreamError struct {
	Status int
	Msg    string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Msg)
	}
	return "upstream: " + e.Msg
}

var transientStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

var transientPatterns = []string{
	"rate limit",
	"rate_limit",
	"overloaded",
	"quota",
	"exceeded",
	"unavailable",
	"timeout",
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Status != 0 {
		return transientStatuses[ue.Status]
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

type options struct {
	maxRetries int
	baseDelay  time.Duration
	onRetry    func(attempt int, err error)
}

// Option tunes Do.
type Option func(*options)

// WithMaxRetries sets the total attempt budget (default 3).
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithBaseDelay sets the first backoff delay; attempt n waits base<<n.
func WithBaseDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.baseDelay = d
		}
	}
}

// WithRetryNotify registers a hook invoked before each retry sleep.
func WithRetryNotify(fn func(attempt int, err error)) Option {
	return func(o *options) { o.onRetry = fn }
}

// Do invokes op, retrying transient failures with exponential backoff until
// the attempt budget runs out. Permanent errors propagate immediately; the
// last transient error propagates after exhaustion.
func Do[T any](ctx context.Context, logger *log.Logger, op func(context.Context) (T, error), opts ...Option) (T, error) {
	o := options{maxRetries: DefaultMaxRetries, baseDelay: DefaultBaseDelay}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return zero, err
		}
		if attempt == o.maxRetries-1 {
			break
		}
		delay := o.baseDelay << attempt
		if logger != nil {
			logger.Printf("transient upstream failure (attempt %d/%d), retrying in %s: %v",
				attempt+1, o.maxRetries, delay, err)
		}
		if o.onRetry != nil {
			o.onRetry(attempt+1, err)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}
