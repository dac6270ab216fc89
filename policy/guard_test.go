package policy

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewGuardValidation(t *testing.T) {
	if _, err := NewGuard(GuardConfig{Timeout: time.Second}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, err := NewGuard(GuardConfig{Name: "test"}); err == nil {
		t.Fatal("expected error for missing timeout")
	}
}

func TestGuardAppliesTimeout(t *testing.T) {
	g, err := NewGuard(GuardConfig{Name: "test", Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = g.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestGuardOpensCircuitAfterFailures(t *testing.T) {
	g, err := NewGuard(GuardConfig{
		Name:    "test",
		Timeout: time.Second,
		Circuit: CircuitBreakerConfig{
			Window:               10 * time.Second,
			FailureRateThreshold: 0.5,
			MinSamples:           2,
			Cooldown:             time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("backend down")
	fail := func(context.Context) error { return boom }

	for i := 0; i < 2; i++ {
		if err := g.Execute(context.Background(), fail); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want backend error", i, err)
		}
	}

	if err := g.Execute(context.Background(), fail); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if g.Healthy() {
		t.Fatal("guard with an open circuit must report unhealthy")
	}
}

func TestGuardRateLimits(t *testing.T) {
	g, err := NewGuard(GuardConfig{
		Name:    "test",
		Timeout: time.Second,
		Rate:    RateLimitConfig{Capacity: 1, RefillTokens: 1, RefillEvery: time.Hour},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok := func(context.Context) error { return nil }
	if err := g.Execute(context.Background(), ok); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := g.Execute(context.Background(), ok); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if !g.Healthy() {
		t.Fatal("rate limiting must not trip the circuit")
	}
}
