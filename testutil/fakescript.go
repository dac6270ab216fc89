package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/soundmesh/resolver_pipeline/resolver"
)

// FakeScriptResponse describes the behaviour of a single fake resolver call.
type FakeScriptResponse struct {
	Delay   time.Duration
	Status  int
	Results []resolver.Candidate
}

// FakeScriptServer provides a controllable httptest server used to simulate
// an external script resolver with configurable latency, status codes, and
// canned candidate results.
type FakeScriptServer struct {
	server    *httptest.Server
	mu        sync.Mutex
	responses []FakeScriptResponse
	index     int
	calls     int
}

// NewFakeScriptServer constructs a FakeScriptServer with the provided
// response plan. When the number of executed calls exceeds the length of the
// plan, the last response is reused.
func NewFakeScriptServer(responses ...FakeScriptResponse) *FakeScriptServer {
	if len(responses) == 0 {
		responses = []FakeScriptResponse{{Status: http.StatusOK}}
	}

	fs := &FakeScriptServer{
		responses: responses,
	}

	fs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := fs.nextResponse()
		if resp.Delay > 0 {
			timer := time.NewTimer(resp.Delay)
			select {
			case <-timer.C:
			case <-r.Context().Done():
				timer.Stop()
				return
			}
		}

		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"results": resp.Results})
	}))

	return fs
}

func (f *FakeScriptServer) nextResponse() FakeScriptResponse {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.index >= len(f.responses) {
		return f.responses[len(f.responses)-1]
	}

	resp := f.responses[f.index]
	f.index++
	return resp
}

// URL returns the base URL for the fake resolver.
func (f *FakeScriptServer) URL() string {
	if f == nil || f.server == nil {
		return ""
	}
	return f.server.URL
}

// Calls returns the number of requests handled so far.
func (f *FakeScriptServer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// SetResponses overrides the remaining response plan, resetting the cursor.
func (f *FakeScriptServer) SetResponses(responses ...FakeScriptResponse) {
	if f == nil {
		return
	}
	if len(responses) == 0 {
		responses = []FakeScriptResponse{{Status: http.StatusOK}}
	}
	f.mu.Lock()
	f.responses = responses
	f.index = 0
	f.calls = 0
	f.mu.Unlock()
}

// Close terminates the hosted httptest server.
func (f *FakeScriptServer) Close() {
	if f == nil || f.server == nil {
		return
	}
	f.server.Close()
}
