package resolver

// Category identifies which facet of a request a candidate was scored
// against.
type Category int

const (
	// CategoryTrack scores a candidate as a track match.
	CategoryTrack Category = iota
	// CategoryAlbum scores a candidate as an album match.
	CategoryAlbum
	// CategoryArtist scores a candidate as an artist match.
	CategoryArtist
)

// Categories lists every category in scoring order.
var Categories = []Category{CategoryTrack, CategoryAlbum, CategoryArtist}

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case CategoryTrack:
		return "track"
	case CategoryAlbum:
		return "album"
	case CategoryArtist:
		return "artist"
	default:
		return "unknown"
	}
}

// Candidate is a raw resolution result reported by a backend. It is a plain
// value type; two candidates are duplicates when they compare equal.
type Candidate struct {
	Track      string `json:"track"`
	Album      string `json:"album,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Source     string `json:"source,omitempty"`
	URL        string `json:"url,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
}

// IsZero reports whether the candidate carries no data. Zero entries in a
// reported batch are skipped.
func (c Candidate) IsZero() bool {
	return c == Candidate{}
}

// ScoredCandidate is a candidate admitted into one of a request's category
// result lists. The category tag lives on the list entry, not on the
// candidate, so a candidate qualifying for several categories keeps a
// correct tag in each list.
type ScoredCandidate struct {
	Candidate
	Score    float64  `json:"score"`
	Category Category `json:"-"`
}
