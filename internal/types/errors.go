package types

import (
	"errors"
	"fmt"
)

// Domain specific errors for the search fallback chain.
var (
	ErrNotFound = errors.New("requested item not found")

	// ErrServiceUnavailable is returned only when the fallback chain is fully
	// exhausted: every adapter failed and the store held no matching records.
	ErrServiceUnavailable = errors.New("no provider produced results and no stored results are available")
)

// ConfigurationError is fatal at component construction time, never per-request.
type ConfigurationError struct {
	Component string
	Field     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing or invalid configuration %q", e.Component, e.Field)
}

// ValidationError rejects a malformed request before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError wraps a provider network or decode failure. It is always
// recoverable: the orchestrator moves to the next link of the fallback chain
// instead of failing the search.
type UpstreamError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider %s timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Recoverable marks the error as a fallback-chain trigger rather than a fatal
// condition.
func (e *UpstreamError) Recoverable() bool { return true }

// IsRecoverable reports whether err should downgrade the search to the next
// fallback link instead of failing it.
func IsRecoverable(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
