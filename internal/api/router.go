// Package api wires the HTTP endpoints for the resolver pipeline.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/soundmesh/resolver_pipeline/internal/contract"
	"github.com/soundmesh/resolver_pipeline/pipeline"
	"github.com/soundmesh/resolver_pipeline/resolver"
)

// Router wires the HTTP endpoints for the resolver pipeline.
type Router struct {
	pipeline *pipeline.Pipeline
	registry *resolver.Registry
}

// NewRouter constructs the HTTP router.
func NewRouter(p *pipeline.Pipeline, registry *resolver.Registry) (*chi.Mux, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	r := &Router{pipeline: p, registry: registry}

	mux := chi.NewRouter()
	mux.Get("/healthz", r.handleHealthz)
	mux.Post("/v1/resolve", r.handleSubmit)
	mux.Post("/v1/resolve/batch", r.handleBatch)
	mux.Get("/v1/requests/{qid}", r.handleGetRequest)
	mux.Post("/v1/reports/{qid}", r.handleReport)
	mux.Get("/v1/status", r.handleStatus)

	return mux, nil
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) {
	stampTraceID(w, req)

	var body contract.SubmitRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := body.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	qid := r.submit(body)
	if qid == "" {
		http.Error(w, "empty query", http.StatusBadRequest)
		return
	}
	writeJSON(w, contract.SubmitResponse{RequestID: qid})
}

func (r *Router) submit(body contract.SubmitRequest) string {
	if body.Query != "" {
		return r.pipeline.Resolve(body.Query, body.OnlyLocal)
	}
	return r.pipeline.ResolveStructured(body.Track, body.Album, body.Artist, body.OnlyLocal)
}

func (r *Router) handleBatch(w http.ResponseWriter, req *http.Request) {
	stampTraceID(w, req)

	var body contract.BatchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	seen := make(map[string]struct{}, len(body.Requests))
	resp := contract.BatchResponse{RequestIDs: []string{}}
	for _, sub := range body.Requests {
		if sub.Validate() != nil {
			continue
		}
		qid := r.submit(sub)
		if qid == "" {
			continue
		}
		if _, dup := seen[qid]; dup {
			continue
		}
		seen[qid] = struct{}{}
		resp.RequestIDs = append(resp.RequestIDs, qid)
	}
	writeJSON(w, resp)
}

func (r *Router) handleGetRequest(w http.ResponseWriter, req *http.Request) {
	qid := chi.URLParam(req, "qid")
	q, ok := r.pipeline.Request(qid)
	if !ok {
		http.Error(w, "unknown request", http.StatusNotFound)
		return
	}
	writeJSON(w, contract.ViewOf(q))
}

// handleReport ingests a completion callback from an out-of-process backend.
// Unknown requests are absorbed by the pipeline as no-ops; an unknown
// backend id is a client error.
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) {
	qid := chi.URLParam(req, "qid")

	var body contract.ReportRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	backend, ok := r.registry.Lookup(body.Backend)
	if !ok {
		http.Error(w, "unknown backend", http.StatusBadRequest)
		return
	}

	r.pipeline.ReportResults(qid, body.Results, backend)
	w.WriteHeader(http.StatusAccepted)
}

func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, contract.StatusResponse{Resolving: r.pipeline.IsResolving()})
}

func stampTraceID(w http.ResponseWriter, req *http.Request) {
	traceID := req.Header.Get(contract.TraceIDHeader)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	w.Header().Set(contract.TraceIDHeader, traceID)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
