package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// NavigationError means the target could not be reached or did not settle in
// time. Retryable with the full attempt budget.
type NavigationError struct {
	URL   string
	Cause error
}

func (e *NavigationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("navigation failed: %s", e.URL)
	}
	return fmt.Sprintf("navigation failed: %s: %v", e.URL, e.Cause)
}

func (e *NavigationError) Unwrap() error {
	return e.Cause
}

// BlockedError means an anti-bot interstitial was detected and could not be
// dismissed. Retried at most once; further attempts waste the rate budget.
type BlockedError struct {
	URL    string
	Marker string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked at %s (marker %q)", e.URL, e.Marker)
}

// IsNavigation reports whether err is (or wraps) a NavigationError.
func IsNavigation(err error) bool {
	var ne *NavigationError
	return errors.As(err, &ne)
}

// IsBlocked reports whether err is (or wraps) a BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// IsTransientNetwork reports whether err looks like a transient network
// failure (timeout, connection reset/refused, DNS). Used to decide whether a
// raw error should be wrapped as a NavigationError.
func IsTransientNetwork(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}
