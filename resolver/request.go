// Package resolver defines the request, candidate, and backend contracts
// shared by the resolution pipeline and its backends.
package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyQuery indicates a submission with no usable search text.
var ErrEmptyQuery = errors.New("empty query")

// SimilarityFunc scores a candidate against a request for one category,
// returning a value in [0,1].
type SimilarityFunc func(c Candidate, category Category) float64

// Request is a unit of search work. Its identity derives deterministically
// from the normalized search key and the local-only flag, so two submissions
// of the same semantic query map to the same request.
//
// Result lists are only ever appended to by the pipeline's merger; the
// internal mutex serializes merges for this request while merges for other
// requests proceed in parallel.
type Request struct {
	id        string
	fullText  string
	track     string
	album     string
	artist    string
	onlyLocal bool

	similarity SimilarityFunc

	mu            sync.Mutex
	solved        bool
	seen          map[Category]map[Candidate]struct{}
	trackResults  []ScoredCandidate
	albumResults  []ScoredCandidate
	artistResults []ScoredCandidate
}

// NewFullTextRequest builds a request from free search text.
func NewFullTextRequest(fullText string, onlyLocal bool) (*Request, error) {
	fullText = Normalize(fullText)
	if fullText == "" {
		return nil, ErrEmptyQuery
	}
	q := &Request{
		fullText:  fullText,
		onlyLocal: onlyLocal,
	}
	q.finish()
	return q, nil
}

// NewRequest builds a request from a structured track/album/artist triple.
// The track name is required.
func NewRequest(track, album, artist string, onlyLocal bool) (*Request, error) {
	track = Normalize(track)
	if track == "" {
		return nil, ErrEmptyQuery
	}
	q := &Request{
		track:     track,
		album:     Normalize(album),
		artist:    Normalize(artist),
		onlyLocal: onlyLocal,
	}
	q.finish()
	return q, nil
}

func (q *Request) finish() {
	q.id = deriveID(q.fullText, q.track, q.album, q.artist, q.onlyLocal)
	q.similarity = defaultSimilarity(q)
	q.seen = make(map[Category]map[Candidate]struct{}, len(Categories))
	for _, cat := range Categories {
		q.seen[cat] = make(map[Candidate]struct{})
	}
}

// deriveID hashes the fields that determine request identity.
func deriveID(fullText, track, album, artist string, onlyLocal bool) string {
	payload := map[string]any{
		"fulltext":   fullText,
		"track":      track,
		"album":      album,
		"artist":     artist,
		"only_local": onlyLocal,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Normalize canonicalizes search text: NFKC, lowercase, collapsed
// whitespace. Equivalent queries normalize to the same key.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// ID returns the request's stable identity.
func (q *Request) ID() string { return q.id }

// FullText returns the normalized free-text query, empty for structured
// requests.
func (q *Request) FullText() string { return q.fullText }

// Track returns the normalized track name of a structured request.
func (q *Request) Track() string { return q.track }

// Album returns the normalized album name of a structured request.
func (q *Request) Album() string { return q.album }

// Artist returns the normalized artist name of a structured request.
func (q *Request) Artist() string { return q.artist }

// OnlyLocal reports whether the request is restricted to local backends.
func (q *Request) OnlyLocal() bool { return q.onlyLocal }

// SetSimilarity overrides the request's similarity scorer. Intended to be
// called before submission; the function must be pure.
func (q *Request) SetSimilarity(fn SimilarityFunc) {
	if fn != nil {
		q.similarity = fn
	}
}

// Similarity scores a candidate against this request for one category.
func (q *Request) Similarity(c Candidate, category Category) float64 {
	return q.similarity(c, category)
}

// Solved reports whether results have been merged into this request.
func (q *Request) Solved() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.solved
}

// MarkSolved pre-sets the solved flag on a request constructed with known
// results. Once set, the flag is never cleared.
func (q *Request) MarkSolved() {
	q.mu.Lock()
	q.solved = true
	q.mu.Unlock()
}

// ApplyBatch appends one merge batch of per-category clean lists, dropping
// entries already present in the corresponding result list. It returns the
// number of entries appended. A batch that appends at least one entry marks
// the request solved.
func (q *Request) ApplyBatch(clean map[Category][]ScoredCandidate) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	added := 0
	for _, cat := range Categories {
		for _, sc := range clean[cat] {
			if _, dup := q.seen[cat][sc.Candidate]; dup {
				continue
			}
			q.seen[cat][sc.Candidate] = struct{}{}
			switch cat {
			case CategoryTrack:
				q.trackResults = append(q.trackResults, sc)
			case CategoryAlbum:
				q.albumResults = append(q.albumResults, sc)
			case CategoryArtist:
				q.artistResults = append(q.artistResults, sc)
			}
			added++
		}
	}
	if added > 0 {
		q.solved = true
	}
	return added
}

// Results returns a copy of the result list for the given category.
func (q *Request) Results(category Category) []ScoredCandidate {
	q.mu.Lock()
	defer q.mu.Unlock()

	var src []ScoredCandidate
	switch category {
	case CategoryTrack:
		src = q.trackResults
	case CategoryAlbum:
		src = q.albumResults
	case CategoryArtist:
		src = q.artistResults
	}
	out := make([]ScoredCandidate, len(src))
	copy(out, src)
	return out
}
