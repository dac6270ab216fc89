package resolver

import "sync"

// Registry holds the ordered set of registered backends.
type Registry struct {
	mu       sync.RWMutex
	backends []Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a backend. Duplicate IDs are not rejected here; callers
// own id uniqueness.
func (r *Registry) Register(b Backend) {
	if b == nil {
		return
	}
	r.mu.Lock()
	r.backends = append(r.backends, b)
	r.mu.Unlock()
}

// Lookup returns the backend with the given id.
func (r *Registry) Lookup(id string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.backends {
		if b.ID() == id {
			return b, true
		}
	}
	return nil, false
}

// Eligible selects the backends a request may be offered to. Local-only
// requests go to local-capability backends. Unrestricted requests go to
// every registered backend: readiness and capability are deliberately not
// consulted in that case.
func (r *Registry) Eligible(onlyLocal bool) []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !onlyLocal {
		out := make([]Backend, len(r.backends))
		copy(out, r.backends)
		return out
	}

	var out []Backend
	for _, b := range r.backends {
		if b.Capability() == CapabilityLocal {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}
