// Package policy provides the protective wrapping backends apply around
// their own resolution I/O: per-call timeout, token bucket rate limiting,
// and a rolling-window circuit breaker.
package policy

import "errors"

var (
	// ErrCircuitOpen indicates the circuit breaker is currently open.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrRateLimited indicates the source requests are rate limited.
	ErrRateLimited = errors.New("rate limited")
)
