package policy

import (
	"context"
	"errors"
	"time"

	"github.com/soundmesh/resolver_pipeline/obs"
)

// RateLimitConfig configures the token bucket limiter.
type RateLimitConfig struct {
	Capacity     int
	RefillTokens int
	RefillEvery  time.Duration
}

// GuardConfig configures the per-backend guard.
type GuardConfig struct {
	Name    string
	Timeout time.Duration
	Rate    RateLimitConfig
	Circuit CircuitBreakerConfig
}

// Guard applies timeout, rate limiting, and circuit breaking to a backend's
// resolution calls.
type Guard struct {
	name    string
	timeout time.Duration
	rate    *TokenBucket
	circuit *CircuitBreaker
}

// NewGuard constructs a Guard with the provided configuration.
func NewGuard(cfg GuardConfig) (*Guard, error) {
	if cfg.Name == "" {
		return nil, errors.New("guard name required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("guard timeout must be positive")
	}

	var bucket *TokenBucket
	if cfg.Rate.Capacity > 0 && cfg.Rate.RefillTokens > 0 && cfg.Rate.RefillEvery > 0 {
		bucket = NewTokenBucket(cfg.Rate.Capacity, cfg.Rate.RefillTokens, cfg.Rate.RefillEvery)
	}

	return &Guard{
		name:    cfg.Name,
		timeout: cfg.Timeout,
		rate:    bucket,
		circuit: NewCircuitBreaker(cfg.Name, cfg.Circuit),
	}, nil
}

// Execute wraps a resolution call applying timeout, rate limiting, and
// circuit breaker checks.
func (g *Guard) Execute(parent context.Context, fn func(context.Context) error) error {
	if parent == nil {
		parent = context.Background()
	}

	now := time.Now()

	if !g.circuit.Allow(now) {
		obs.RecordSourceError(g.name, "circuit_open")
		return ErrCircuitOpen
	}

	if g.rate != nil && !g.rate.Allow(now) {
		obs.RecordSourceError(g.name, "rate_limited")
		return ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(parent, g.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	obs.RecordSourceDuration(g.name, time.Since(start))
	if err != nil {
		obs.RecordSourceError(g.name, "call_failed")
	}

	g.circuit.Record(time.Now(), err == nil)
	return err
}

// Healthy reports whether the guard's circuit currently permits calls.
func (g *Guard) Healthy() bool {
	return g.circuit.State() != CircuitOpen
}
