package platform

import (
	"errors"
	"fmt"
	"time"
)

// Structural conditions the relay branches on. Adapters wrap the platform's
// own error in one of these so errors.Is works on the result.
var (
	ErrThreadNotFound  = errors.New("thread not found")
	ErrForbidden       = errors.New("insufficient rights")
	ErrMessageTooOld   = errors.New("message too old to mutate")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotModified     = errors.New("message not modified")
)

// RateLimitError is returned when the platform asks the caller to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryAfter extracts the server-indicated delay from a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// IsStructural reports whether err describes a state problem that a blind
// retry cannot fix.
func IsStructural(err error) bool {
	return errors.Is(err, ErrThreadNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrMessageTooOld) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrNotModified)
}

// Wrap tags err with a structural sentinel while keeping the original text.
func Wrap(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}
