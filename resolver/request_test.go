package resolver

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Song X", "song x"},
		{"  Song   X  ", "song x"},
		{"SONG\tX", "song x"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRequestIDDeterministic(t *testing.T) {
	a, err := NewFullTextRequest("Song X", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewFullTextRequest("  song   x ", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID() != b.ID() {
		t.Fatalf("equivalent queries got different ids: %s vs %s", a.ID(), b.ID())
	}

	local, err := NewFullTextRequest("Song X", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if local.ID() == a.ID() {
		t.Fatal("local and unrestricted submissions must not share an id")
	}

	structured, err := NewRequest("Song X", "", "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if structured.ID() == a.ID() {
		t.Fatal("structured and full-text submissions must not share an id")
	}
}

func TestBlankQueryRejected(t *testing.T) {
	if _, err := NewFullTextRequest("   ", false); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := NewRequest("", "Album", "Artist", false); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestApplyBatchDedupsAndSolves(t *testing.T) {
	q, err := NewFullTextRequest("song x", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Solved() {
		t.Fatal("fresh request must not be solved")
	}

	c := Candidate{Track: "Song X", Artist: "Band"}
	batch := map[Category][]ScoredCandidate{
		CategoryTrack: {{Candidate: c, Score: 0.9, Category: CategoryTrack}},
	}

	if added := q.ApplyBatch(batch); added != 1 {
		t.Fatalf("first batch added = %d, want 1", added)
	}
	if !q.Solved() {
		t.Fatal("request must be solved after first successful merge")
	}

	// The same candidate from a later batch is a duplicate.
	if added := q.ApplyBatch(batch); added != 0 {
		t.Fatalf("duplicate batch added = %d, want 0", added)
	}
	if got := len(q.Results(CategoryTrack)); got != 1 {
		t.Fatalf("track results = %d, want 1", got)
	}
}

func TestApplyBatchEmptyDoesNotSolve(t *testing.T) {
	q, err := NewFullTextRequest("song x", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added := q.ApplyBatch(map[Category][]ScoredCandidate{}); added != 0 {
		t.Fatalf("added = %d, want 0", added)
	}
	if q.Solved() {
		t.Fatal("empty batch must not solve the request")
	}
}

func TestMarkSolved(t *testing.T) {
	q, err := NewRequest("song x", "", "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.MarkSolved()
	if !q.Solved() {
		t.Fatal("expected solved after MarkSolved")
	}
}

func TestResultsReturnsCopy(t *testing.T) {
	q, err := NewFullTextRequest("song x", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.ApplyBatch(map[Category][]ScoredCandidate{
		CategoryTrack: {{Candidate: Candidate{Track: "Song X"}, Score: 1, Category: CategoryTrack}},
	})

	got := q.Results(CategoryTrack)
	got[0].Score = 0
	if q.Results(CategoryTrack)[0].Score != 1 {
		t.Fatal("Results must return a copy")
	}
}
