// Package health exposes readiness reporting for the resolver pipeline.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/soundmesh/resolver_pipeline/resolver"
)

const pingTimeout = 200 * time.Millisecond

// Pinger is implemented by backends that can verify their data source.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readyz returns an http.Handler reporting pipeline readiness: at least one
// backend is registered and every pingable backend answers within the ping
// timeout.
func Readyz(registry *resolver.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"backends": registry.Len(),
		}
		ok := registry.Len() > 0

		for _, b := range registry.Eligible(false) {
			pinger, pingable := b.(Pinger)
			if !pingable {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			start := time.Now()
			err := pinger.Ping(ctx)
			cancel()

			payload[b.ID()+"_ok"] = err == nil
			payload[b.ID()+"_ping_ms"] = time.Since(start).Milliseconds()
			if err != nil {
				ok = false
			}
		}

		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}
}
