package policy

import (
	"sync"
	"time"

	"github.com/soundmesh/resolver_pipeline/obs"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed allows all traffic.
	CircuitClosed CircuitState = iota
	// CircuitHalfOpen allows limited traffic to probe recovery.
	CircuitHalfOpen
	// CircuitOpen blocks all traffic.
	CircuitOpen
)

// String returns the metric label for the state.
func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type circuitEvent struct {
	timestamp time.Time
	success   bool
}

// CircuitBreakerConfig configures the circuit breaker behaviour.
type CircuitBreakerConfig struct {
	Window               time.Duration
	FailureRateThreshold float64
	MinSamples           int
	Cooldown             time.Duration
	HalfOpenMaxCalls     int
}

// CircuitBreaker implements a rolling window circuit breaker with half-open
// support.
type CircuitBreaker struct {
	cfg    CircuitBreakerConfig
	source string

	mu                sync.Mutex
	state             CircuitState
	lastStateChange   time.Time
	events            []circuitEvent
	halfOpenAttempts  int
	halfOpenSuccesses int
}

// NewCircuitBreaker constructs a new CircuitBreaker.
func NewCircuitBreaker(source string, cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		cfg:    normalizeCircuitConfig(cfg),
		source: source,
		state:  CircuitClosed,
	}
	obs.SetCircuitState(source, CircuitClosed.String())
	return cb
}

func normalizeCircuitConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Second
	}
	if cfg.FailureRateThreshold <= 0 {
		cfg.FailureRateThreshold = 0.5
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return cfg
}

// Allow returns whether the circuit permits executing a call at the given
// time.
func (c *CircuitBreaker) Allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshState(now)

	if c.state == CircuitOpen {
		return false
	}

	if c.state == CircuitHalfOpen {
		if c.halfOpenAttempts >= c.cfg.HalfOpenMaxCalls {
			return false
		}
		c.halfOpenAttempts++
	}

	return true
}

// Record records the outcome of a call.
func (c *CircuitBreaker) Record(now time.Time, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, circuitEvent{timestamp: now, success: success})
	c.prune(now)
	c.refreshState(now)

	if c.state == CircuitHalfOpen {
		if success {
			c.halfOpenSuccesses++
			if c.halfOpenSuccesses >= c.cfg.HalfOpenMaxCalls {
				c.transition(CircuitClosed, now)
				c.resetHalfOpenCounters()
			}
		} else {
			c.transition(CircuitOpen, now)
			c.resetHalfOpenCounters()
		}
	}
}

func (c *CircuitBreaker) prune(now time.Time) {
	windowStart := now.Add(-c.cfg.Window)
	idx := 0
	for _, evt := range c.events {
		if !evt.timestamp.Before(windowStart) {
			break
		}
		idx++
	}
	if idx > 0 {
		c.events = c.events[idx:]
	}
}

func (c *CircuitBreaker) refreshState(now time.Time) {
	switch c.state {
	case CircuitOpen:
		if now.Sub(c.lastStateChange) >= c.cfg.Cooldown {
			c.transition(CircuitHalfOpen, now)
			c.resetHalfOpenCounters()
		}
		return
	case CircuitHalfOpen:
		// Transitions out of half-open happen in Record.
		return
	}

	c.prune(now)
	total := len(c.events)
	if total < c.cfg.MinSamples {
		return
	}

	failures := 0
	for _, evt := range c.events {
		if !evt.success {
			failures++
		}
	}

	if float64(failures)/float64(total) >= c.cfg.FailureRateThreshold {
		c.transition(CircuitOpen, now)
	}
}

func (c *CircuitBreaker) transition(state CircuitState, now time.Time) {
	if c.state == state {
		return
	}
	c.state = state
	c.lastStateChange = now
	obs.SetCircuitState(c.source, state.String())
}

func (c *CircuitBreaker) resetHalfOpenCounters() {
	c.halfOpenAttempts = 0
	c.halfOpenSuccesses = 0
}

// State returns the current state of the circuit breaker.
func (c *CircuitBreaker) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshState(time.Now())
	return c.state
}
