// Package testutil provides controllable fakes for pipeline and backend
// tests.
package testutil

import (
	"sync"

	"github.com/soundmesh/resolver_pipeline/resolver"
)

// FakeBackend is a scriptable backend for pipeline tests. It records every
// admission offer and never reports on its own; tests drive completions
// through the pipeline's ReportResults.
type FakeBackend struct {
	id         string
	weight     int
	capability resolver.Capability

	mu       sync.Mutex
	ready    bool
	accept   bool
	admitted []*resolver.Request
}

// NewFakeBackend constructs a ready, accepting fake backend.
func NewFakeBackend(id string, weight int, capability resolver.Capability) *FakeBackend {
	return &FakeBackend{
		id:         id,
		weight:     weight,
		capability: capability,
		ready:      true,
		accept:     true,
	}
}

// ID returns the backend identifier.
func (f *FakeBackend) ID() string { return f.id }

// Weight returns the backend's scheduling priority.
func (f *FakeBackend) Weight() int { return f.weight }

// Capability returns the configured capability.
func (f *FakeBackend) Capability() resolver.Capability { return f.capability }

// Ready returns the configured readiness.
func (f *FakeBackend) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// SetReady configures the readiness flag.
func (f *FakeBackend) SetReady(ready bool) {
	f.mu.Lock()
	f.ready = ready
	f.mu.Unlock()
}

// SetAccept configures whether admission offers are accepted.
func (f *FakeBackend) SetAccept(accept bool) {
	f.mu.Lock()
	f.accept = accept
	f.mu.Unlock()
}

// Resolve records the offer and returns the configured admission outcome.
func (f *FakeBackend) Resolve(q *resolver.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accept {
		return false
	}
	f.admitted = append(f.admitted, q)
	return true
}

// Admitted returns a copy of the requests this backend accepted, in
// admission order.
func (f *FakeBackend) Admitted() []*resolver.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*resolver.Request, len(f.admitted))
	copy(out, f.admitted)
	return out
}

// AdmittedCount returns the number of accepted offers.
func (f *FakeBackend) AdmittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.admitted)
}
