// Package pipeline fans a search request out to registered backends under a
// fixed concurrency bound and merges asynchronously reported results into
// the request's categorized result lists.
package pipeline

import (
	"container/heap"
	"errors"
	"log"
	"runtime"
	"sync"

	"github.com/soundmesh/resolver_pipeline/obs"
	"github.com/soundmesh/resolver_pipeline/resolver"
)

// Config groups pipeline dependencies.
type Config struct {
	// Registry supplies the eligible backends per request. Required.
	Registry *resolver.Registry
	// Sink receives results-reported events. Optional.
	Sink resolver.EventSink
	// MaxConcurrent bounds the number of in-flight resolutions. Defaults
	// to twice the number of logical CPUs.
	MaxConcurrent int
}

// Pipeline is the admission controller. It holds every submitted request,
// a weight-ordered pending queue of resolutions, and the in-flight set.
// All scheduling state is guarded by a single mutex; backend admission
// calls and merges run outside of it.
type Pipeline struct {
	registry      *resolver.Registry
	sink          resolver.EventSink
	maxConcurrent int

	mu          sync.Mutex
	requests    map[string]*resolver.Request
	pending     resolutionHeap
	pendingKeys map[string]struct{}
	inFlight    map[string]resolution
}

// New constructs a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry required")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.NumCPU() * 2
	}
	return &Pipeline{
		registry:      cfg.Registry,
		sink:          cfg.Sink,
		maxConcurrent: cfg.MaxConcurrent,
		requests:      make(map[string]*resolver.Request),
		pendingKeys:   make(map[string]struct{}),
		inFlight:      make(map[string]resolution),
	}, nil
}

// MaxConcurrent returns the configured concurrency bound.
func (p *Pipeline) MaxConcurrent() int { return p.maxConcurrent }

// Resolve submits a free-text query. Blank input yields no request and
// returns an empty id.
func (p *Pipeline) Resolve(fullText string, onlyLocal bool) string {
	q, err := resolver.NewFullTextRequest(fullText, onlyLocal)
	if err != nil {
		return ""
	}
	return p.ResolveRequest(q)
}

// ResolveStructured submits a track/album/artist query. A blank track name
// yields no request and returns an empty id.
func (p *Pipeline) ResolveStructured(track, album, artist string, onlyLocal bool) string {
	q, err := resolver.NewRequest(track, album, artist, onlyLocal)
	if err != nil {
		return ""
	}
	return p.ResolveRequest(q)
}

// ResolveRequest submits a pre-built request. Already-solved requests skip
// scheduling and publish immediately. A duplicate submission of a known
// request enqueues nothing; the existing request's lifecycle governs the
// outcome.
func (p *Pipeline) ResolveRequest(q *resolver.Request) string {
	if q == nil {
		return ""
	}
	if q.Solved() {
		p.publish(q.ID())
		return q.ID()
	}

	p.mu.Lock()
	if existing, known := p.requests[q.ID()]; known {
		p.mu.Unlock()
		// The prior submission's lifecycle governs the outcome; only an
		// already-solved request publishes right away.
		if existing.Solved() {
			p.publish(existing.ID())
		}
		return existing.ID()
	}
	p.requests[q.ID()] = q

	enqueued := 0
	for _, b := range p.registry.Eligible(q.OnlyLocal()) {
		res := resolution{qid: q.ID(), backend: b, req: q, weight: b.Weight()}
		k := res.key()
		if _, dup := p.pendingKeys[k]; dup {
			continue
		}
		if _, dup := p.inFlight[k]; dup {
			continue
		}
		heap.Push(&p.pending, res)
		p.pendingKeys[k] = struct{}{}
		enqueued++
	}
	p.updateGauges()
	p.mu.Unlock()

	obs.IncRequestSubmitted(q.OnlyLocal())
	if enqueued > 0 {
		p.dispatch()
	}
	return q.ID()
}

// ResolveAll submits a batch of requests, skipping already-solved ones, and
// returns the set of submitted request ids.
func (p *Pipeline) ResolveAll(requests []*resolver.Request) map[string]struct{} {
	qids := make(map[string]struct{}, len(requests))
	for _, q := range requests {
		if q == nil || q.Solved() {
			continue
		}
		qids[p.ResolveRequest(q)] = struct{}{}
	}
	return qids
}

// dispatch runs one admission pass: while capacity remains and work is
// pending, pop the highest-weight resolution and offer it to its backend.
// The in-flight slot is reserved under the lock before the offer, so
// concurrent passes never double-admit a unit or exceed the bound. A
// declined offer releases the slot and is not re-queued.
func (p *Pipeline) dispatch() {
	for {
		p.mu.Lock()
		if len(p.inFlight) >= p.maxConcurrent || p.pending.Len() == 0 {
			p.mu.Unlock()
			return
		}
		res := heap.Pop(&p.pending).(resolution)
		k := res.key()
		delete(p.pendingKeys, k)
		if _, dup := p.inFlight[k]; dup {
			p.updateGauges()
			p.mu.Unlock()
			continue
		}
		p.inFlight[k] = res
		p.updateGauges()
		p.mu.Unlock()

		if p.offer(res) {
			obs.IncAdmitted(res.backend.ID())
			continue
		}

		p.mu.Lock()
		delete(p.inFlight, k)
		p.updateGauges()
		p.mu.Unlock()
		obs.IncDeclined(res.backend.ID())
	}
}

// offer calls the backend's admission method. A panicking backend is
// treated as a decline so the scheduler keeps running.
func (p *Pipeline) offer(res resolution) (accepted bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: backend %s panicked during admission: %v", res.backend.ID(), r)
			accepted = false
		}
	}()
	return res.backend.Resolve(res.req)
}

// ReportResults is the completion callback backends invoke with their raw
// results. It frees the resolution's slot, merges the batch, and runs
// another admission pass.
func (p *Pipeline) ReportResults(qid string, results []resolver.Candidate, backend resolver.Backend) {
	if backend != nil {
		k := resolutionKey(qid, backend.ID())
		p.mu.Lock()
		delete(p.inFlight, k)
		p.updateGauges()
		p.mu.Unlock()
		obs.IncReported(backend.ID())
	}
	p.merge(qid, results)
	p.dispatch()
}

// IsResolving reports whether any resolution is in flight.
func (p *Pipeline) IsResolving() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight) > 0
}

// Request returns the request with the given id.
func (p *Pipeline) Request(qid string) (*resolver.Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.requests[qid]
	return q, ok
}

// HasRequest reports whether the pipeline holds a request with the given id.
func (p *Pipeline) HasRequest(qid string) bool {
	_, ok := p.Request(qid)
	return ok
}

func (p *Pipeline) publish(qid string) {
	if p.sink == nil {
		return
	}
	p.sink.Publish(resolver.Event{RequestID: qid})
}

// updateGauges refreshes the queue depth gauges. Callers hold p.mu.
func (p *Pipeline) updateGauges() {
	obs.SetPendingResolutions(p.pending.Len())
	obs.SetInFlightResolutions(len(p.inFlight))
}
