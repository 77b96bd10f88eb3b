package devtools

import (
	"errors"
	"fmt"
)

// ErrPageNotReady means the target has no debuggable page yet. It is the
// only discovery error worth retrying.
var ErrPageNotReady = errors.New("target is not ready: no debuggable page found")

// TransportError reports an introspection resource that could not be
// fetched or decoded.
type TransportError struct {
	Resource string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Resource, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError means the version string has no build hash. The target is
// incompatible, so retrying is pointless.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no build hash found in version string %q", e.Input)
}

// RewriteError means a debugger URL could not be built from a discovered target.
type RewriteError struct {
	Reason string
}

func (e *RewriteError) Error() string {
	return "cannot build debugger url: " + e.Reason
}

// IsRetryable reports whether err only means the target is still starting.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPageNotReady)
}
