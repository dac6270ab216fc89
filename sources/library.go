// Package sources ships reference backend implementations for the
// resolution pipeline: a sqlite-backed local library and an HTTP script
// resolver client.
package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/soundmesh/resolver_pipeline/obs"
	"github.com/soundmesh/resolver_pipeline/resolver"
)

const (
	defaultLibraryMaxResults = 50
	defaultLibraryTimeout    = 2 * time.Second
)

// LibraryConfig configures the local library backend.
type LibraryConfig struct {
	ID           string
	Weight       int
	Path         string
	MaxResults   int
	QueryTimeout time.Duration
}

// Library resolves requests against a local sqlite media library. It has
// local capability and is always ready.
type Library struct {
	id         string
	weight     int
	db         *sql.DB
	reporter   resolver.Reporter
	maxResults int
	timeout    time.Duration
}

// NewLibrary opens the library database and constructs the backend.
func NewLibrary(cfg LibraryConfig, reporter resolver.Reporter) (*Library, error) {
	if cfg.Path == "" {
		return nil, errors.New("library path required")
	}
	if reporter == nil {
		return nil, errors.New("reporter required")
	}
	if cfg.ID == "" {
		cfg.ID = "library"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultLibraryMaxResults
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultLibraryTimeout
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}

	return &Library{
		id:         cfg.ID,
		weight:     cfg.Weight,
		db:         db,
		reporter:   reporter,
		maxResults: cfg.MaxResults,
		timeout:    cfg.QueryTimeout,
	}, nil
}

// ID returns the backend identifier.
func (l *Library) ID() string { return l.id }

// Weight returns the backend's scheduling priority.
func (l *Library) Weight() int { return l.weight }

// Capability reports local capability.
func (l *Library) Capability() resolver.Capability { return resolver.CapabilityLocal }

// Ready always returns true; the library has no remote dependency.
func (l *Library) Ready() bool { return true }

// Resolve accepts the request and searches the library asynchronously.
func (l *Library) Resolve(q *resolver.Request) bool {
	if q == nil {
		return false
	}
	go l.resolve(q)
	return true
}

func (l *Library) resolve(q *resolver.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	start := time.Now()
	candidates, err := l.search(ctx, q)
	obs.RecordSourceDuration(l.id, time.Since(start))
	if err != nil {
		obs.RecordSourceError(l.id, "query_failed")
		log.Printf("library %s: search failed for request %s: %v", l.id, q.ID(), err)
		// Report anyway so the pipeline frees the slot.
		candidates = nil
	}

	l.reporter.ReportResults(q.ID(), candidates, l)
}

func (l *Library) search(ctx context.Context, q *resolver.Request) ([]resolver.Candidate, error) {
	query, args := l.buildQuery(q)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resolver.Candidate
	for rows.Next() {
		var c resolver.Candidate
		var album, artist, url sql.NullString
		var durationMs sql.NullInt64
		var bitrate sql.NullInt64
		if err := rows.Scan(&c.Track, &album, &artist, &url, &durationMs, &bitrate); err != nil {
			return nil, err
		}
		c.Album = album.String
		c.Artist = artist.String
		c.URL = url.String
		c.DurationMs = durationMs.Int64
		c.Bitrate = int(bitrate.Int64)
		c.Source = l.id
		out = append(out, c)
	}
	return out, rows.Err()
}

// buildQuery translates a request into a LIKE search over the tracks table.
// Full-text requests match any field; structured requests constrain the
// fields the request specifies.
func (l *Library) buildQuery(q *resolver.Request) (string, []any) {
	const selectCols = "SELECT track, album, artist, url, duration_ms, bitrate FROM tracks WHERE "

	if q.FullText() != "" {
		pattern := likePattern(q.FullText())
		return selectCols +
				"(lower(track) LIKE ? OR lower(album) LIKE ? OR lower(artist) LIKE ?) LIMIT ?",
			[]any{pattern, pattern, pattern, l.maxResults}
	}

	clauses := []string{"lower(track) LIKE ?"}
	args := []any{likePattern(q.Track())}
	if q.Album() != "" {
		clauses = append(clauses, "lower(album) LIKE ?")
		args = append(args, likePattern(q.Album()))
	}
	if q.Artist() != "" {
		clauses = append(clauses, "lower(artist) LIKE ?")
		args = append(args, likePattern(q.Artist()))
	}
	args = append(args, l.maxResults)
	return selectCols + strings.Join(clauses, " AND ") + " LIMIT ?", args
}

func likePattern(term string) string {
	return "%" + strings.ToLower(term) + "%"
}

// Ping verifies the library database is reachable.
func (l *Library) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close releases the database handle.
func (l *Library) Close() error {
	return l.db.Close()
}
