package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soundmesh/resolver_pipeline/resolver"
	"github.com/soundmesh/resolver_pipeline/testutil"
)

type pingableBackend struct {
	*testutil.FakeBackend
	err error
}

func (p *pingableBackend) Ping(ctx context.Context) error { return p.err }

func hitReadyz(t *testing.T, registry *resolver.Registry) (*http.Response, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	Readyz(registry)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	resp := rec.Result()
	defer resp.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, payload
}

func TestReadyzNoBackends(t *testing.T) {
	resp, _ := hitReadyz(t, resolver.NewRegistry())
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 with an empty registry", resp.StatusCode)
	}
}

func TestReadyzHealthyBackends(t *testing.T) {
	registry := resolver.NewRegistry()
	registry.Register(&pingableBackend{
		FakeBackend: testutil.NewFakeBackend("library", 100, resolver.CapabilityLocal),
	})

	resp, payload := hitReadyz(t, registry)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ok, _ := payload["library_ok"].(bool); !ok {
		t.Fatalf("payload = %v, want library_ok=true", payload)
	}
}

func TestReadyzFailingPing(t *testing.T) {
	registry := resolver.NewRegistry()
	registry.Register(&pingableBackend{
		FakeBackend: testutil.NewFakeBackend("library", 100, resolver.CapabilityLocal),
		err:         errors.New("db locked"),
	})

	resp, payload := hitReadyz(t, registry)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if ok, _ := payload["library_ok"].(bool); ok {
		t.Fatal("failing ping must be reported")
	}
}
