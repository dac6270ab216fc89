// Package contract defines the public wire schema of the resolver pipeline
// HTTP surface.
package contract

import (
	"fmt"
	"strings"

	"github.com/soundmesh/resolver_pipeline/resolver"
)

// TraceIDHeader carries the request trace identifier.
const TraceIDHeader = "X-Trace-Id"

// SubmitRequest captures a resolution submission. Either free text or a
// structured triple with at least a track name must be present.
type SubmitRequest struct {
	Query     string `json:"query,omitempty"`
	Track     string `json:"track,omitempty"`
	Album     string `json:"album,omitempty"`
	Artist    string `json:"artist,omitempty"`
	OnlyLocal bool   `json:"only_local"`
}

// Validate ensures the submission carries usable search input.
func (r SubmitRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" && strings.TrimSpace(r.Track) == "" {
		return fmt.Errorf("query or track required")
	}
	return nil
}

// SubmitResponse returns the identity of the submitted request.
type SubmitResponse struct {
	RequestID string `json:"request_id"`
}

// BatchRequest submits several resolutions at once.
type BatchRequest struct {
	Requests []SubmitRequest `json:"requests"`
}

// BatchResponse returns the set of submitted request ids.
type BatchResponse struct {
	RequestIDs []string `json:"request_ids"`
}

// ReportRequest carries an external backend's raw results for one request.
type ReportRequest struct {
	Backend string               `json:"backend"`
	Results []resolver.Candidate `json:"results"`
}

// StatusResponse reports whether any resolution is in flight.
type StatusResponse struct {
	Resolving bool `json:"resolving"`
}

// RequestView is the public projection of a request and its categorized
// results.
type RequestView struct {
	RequestID     string                     `json:"request_id"`
	OnlyLocal     bool                       `json:"only_local"`
	Solved        bool                       `json:"solved"`
	TrackResults  []resolver.ScoredCandidate `json:"track_results"`
	AlbumResults  []resolver.ScoredCandidate `json:"album_results"`
	ArtistResults []resolver.ScoredCandidate `json:"artist_results"`
}

// ViewOf builds the public projection of a request.
func ViewOf(q *resolver.Request) RequestView {
	return RequestView{
		RequestID:     q.ID(),
		OnlyLocal:     q.OnlyLocal(),
		Solved:        q.Solved(),
		TrackResults:  q.Results(resolver.CategoryTrack),
		AlbumResults:  q.Results(resolver.CategoryAlbum),
		ArtistResults: q.Results(resolver.CategoryArtist),
	}
}
