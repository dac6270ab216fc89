package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/soundmesh/resolver_pipeline/policy"
	"github.com/soundmesh/resolver_pipeline/resolver"
)

const (
	defaultScriptTimeout  = 2 * time.Second
	defaultScriptRetryMax = 2
	minBackoff            = 100 * time.Millisecond
	maxBackoff            = 2 * time.Second
	scriptResolvePath     = "/v1/resolve"
	contentTypeJSON       = "application/json"
)

// HTTPClient represents a minimal http client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ScriptConfig configures the script resolver backend.
type ScriptConfig struct {
	ID       string
	Weight   int
	BaseURL  string
	RetryMax int
	Timeout  time.Duration
	Rate     policy.RateLimitConfig
	Circuit  policy.CircuitBreakerConfig
}

// Script is a remote-capability backend speaking JSON over HTTP to an
// external script resolver. Calls run behind a policy guard; readiness
// reflects the guard's circuit state.
type Script struct {
	id       string
	weight   int
	baseURL  string
	client   HTTPClient
	retryMax int
	guard    *policy.Guard
	reporter resolver.Reporter
}

// scriptQuery is the request body sent to the script resolver.
type scriptQuery struct {
	RequestID string `json:"request_id"`
	FullText  string `json:"fulltext,omitempty"`
	Track     string `json:"track,omitempty"`
	Album     string `json:"album,omitempty"`
	Artist    string `json:"artist,omitempty"`
}

// scriptResponse is the response body returned by the script resolver.
type scriptResponse struct {
	Results []resolver.Candidate `json:"results"`
}

// NewScript constructs a script resolver backend.
func NewScript(cfg ScriptConfig, client HTTPClient, reporter resolver.Reporter) (*Script, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("script baseURL required")
	}
	if reporter == nil {
		return nil, errors.New("reporter required")
	}
	if cfg.ID == "" {
		cfg.ID = "script"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultScriptTimeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = defaultScriptRetryMax
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	guard, err := policy.NewGuard(policy.GuardConfig{
		Name:    cfg.ID,
		Timeout: cfg.Timeout,
		Rate:    cfg.Rate,
		Circuit: cfg.Circuit,
	})
	if err != nil {
		return nil, fmt.Errorf("guard: %w", err)
	}

	return &Script{
		id:       cfg.ID,
		weight:   cfg.Weight,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   client,
		retryMax: cfg.RetryMax,
		guard:    guard,
		reporter: reporter,
	}, nil
}

// ID returns the backend identifier.
func (s *Script) ID() string { return s.id }

// Weight returns the backend's scheduling priority.
func (s *Script) Weight() int { return s.weight }

// Capability reports remote capability.
func (s *Script) Capability() resolver.Capability { return resolver.CapabilityRemote }

// Ready reports whether the resolver endpoint is currently usable.
func (s *Script) Ready() bool { return s.guard.Healthy() }

// Resolve declines while the circuit is open, otherwise accepts and
// resolves asynchronously.
func (s *Script) Resolve(q *resolver.Request) bool {
	if q == nil || !s.guard.Healthy() {
		return false
	}
	go s.resolve(q)
	return true
}

func (s *Script) resolve(q *resolver.Request) {
	var candidates []resolver.Candidate
	err := s.guard.Execute(context.Background(), func(ctx context.Context) error {
		var callErr error
		candidates, callErr = s.search(ctx, q)
		return callErr
	})
	if err != nil {
		log.Printf("script %s: resolve failed for request %s: %v", s.id, q.ID(), err)
		// Report anyway so the pipeline frees the slot.
		candidates = nil
	}

	for i := range candidates {
		if candidates[i].Source == "" {
			candidates[i].Source = s.id
		}
	}
	s.reporter.ReportResults(q.ID(), candidates, s)
}

func (s *Script) search(ctx context.Context, q *resolver.Request) ([]resolver.Candidate, error) {
	payload, err := json.Marshal(scriptQuery{
		RequestID: q.ID(),
		FullText:  q.FullText(),
		Track:     q.Track(),
		Album:     q.Album(),
		Artist:    q.Artist(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	fullURL := s.baseURL + scriptResolvePath

	var (
		attempt   int
		lastError error
		backoff   = minBackoff
	)

	for {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", contentTypeJSON)
		req.Header.Set("Accept", contentTypeJSON)

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastError = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()

			switch {
			case readErr != nil:
				lastError = fmt.Errorf("read response: %w", readErr)
			case resp.StatusCode >= 500 && attempt <= s.retryMax:
				lastError = fmt.Errorf("server error: %s", strings.TrimSpace(string(body)))
			case resp.StatusCode >= 400:
				return nil, fmt.Errorf("script resolver error: %s", strings.TrimSpace(string(body)))
			default:
				var parsed scriptResponse
				if err := json.Unmarshal(body, &parsed); err != nil {
					return nil, fmt.Errorf("decode response: %w", err)
				}
				return parsed.Results, nil
			}
		}

		if attempt > s.retryMax {
			if lastError == nil {
				lastError = fmt.Errorf("request failed after %d attempts", attempt-1)
			}
			return nil, lastError
		}

		if !sleepWithContext(ctx, backoff) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.New("retry interrupted")
		}
		backoff = nextBackoff(backoff)
	}
}

// Ping probes the resolver endpoint's health route.
func (s *Script) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("script resolver unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (s *Script) String() string {
	return fmt.Sprintf("script_backend{id=%s,base=%s,retry_max=%d}", s.id, s.baseURL, s.retryMax)
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
