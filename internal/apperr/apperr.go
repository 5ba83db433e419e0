// Package apperr defines the error kinds the request boundary maps to HTTP
// statuses. Upstream transport errors live in internal/resilience.
package apperr

import (
	"errors"
	"fmt"
)

// ErrValidation marks caller mistakes (missing message, bad payload).
// Never retried.
var ErrValidation = errors.New("validation error")

// ErrStoreUnavailable marks a configured session backend that cannot be
// reached. It is surfaced, not silently worked around: backend selection is
// a startup decision, not a per-request fallback.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Validationf wraps ErrValidation with detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
