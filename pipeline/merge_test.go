package pipeline

import (
	"testing"

	"github.com/soundmesh/resolver_pipeline/resolver"
	"github.com/soundmesh/resolver_pipeline/testutil"
)

func submitRequest(t *testing.T, p *Pipeline, fullText string, sim resolver.SimilarityFunc) *resolver.Request {
	t.Helper()
	q, err := resolver.NewFullTextRequest(fullText, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim != nil {
		q.SetSimilarity(sim)
	}
	if qid := p.ResolveRequest(q); qid != q.ID() {
		t.Fatalf("qid = %q, want %q", qid, q.ID())
	}
	return q
}

func TestMergeThreshold(t *testing.T) {
	backend := testutil.NewFakeBackend("a", 10, resolver.CapabilityLocal)
	p, _ := newTestPipeline(t, 8, backend)

	// Score by track name so the batch straddles the cutoff.
	scores := map[string]float64{
		"below": 0.49,
		"edge":  MinScore,
		"above": 0.8,
	}
	q := submitRequest(t, p, "song x", func(c resolver.Candidate, category resolver.Category) float64 {
		if category != resolver.CategoryTrack {
			return 0
		}
		return scores[c.Track]
	})

	batch := []resolver.Candidate{
		{Track: "below", Source: "a"},
		{Track: "edge", Source: "a"},
		{Track: "above", Source: "a"},
	}
	p.ReportResults(q.ID(), batch, backend)

	tracks := q.Results(resolver.CategoryTrack)
	if len(tracks) != 2 {
		t.Fatalf("track results = %d, want 2", len(tracks))
	}
	for _, sc := range tracks {
		if sc.Score < MinScore {
			t.Errorf("candidate %q kept with score %.2f below cutoff", sc.Track, sc.Score)
		}
		if sc.Track == "below" {
			t.Error("sub-threshold candidate must be dropped")
		}
	}
}

func TestMergeCategoryIndependence(t *testing.T) {
	backend := testutil.NewFakeBackend("a", 10, resolver.CapabilityLocal)
	p, _ := newTestPipeline(t, 8, backend)

	q := submitRequest(t, p, "song x", func(c resolver.Candidate, category resolver.Category) float64 {
		switch category {
		case resolver.CategoryTrack:
			return 0.7
		case resolver.CategoryAlbum:
			return 0.6
		default:
			return 0.1
		}
	})

	cand := resolver.Candidate{Track: "Song X", Album: "Album X", Artist: "Band", Source: "a"}
	p.ReportResults(q.ID(), []resolver.Candidate{cand}, backend)

	tracks := q.Results(resolver.CategoryTrack)
	albums := q.Results(resolver.CategoryAlbum)
	artists := q.Results(resolver.CategoryArtist)

	if len(tracks) != 1 || len(albums) != 1 || len(artists) != 0 {
		t.Fatalf("results = (track=%d, album=%d, artist=%d), want (1, 1, 0)",
			len(tracks), len(albums), len(artists))
	}
	if tracks[0].Category != resolver.CategoryTrack || tracks[0].Score != 0.7 {
		t.Errorf("track entry = (%s, %.2f), want (track, 0.70)", tracks[0].Category, tracks[0].Score)
	}
	if albums[0].Category != resolver.CategoryAlbum || albums[0].Score != 0.6 {
		t.Errorf("album entry = (%s, %.2f), want (album, 0.60)", albums[0].Category, albums[0].Score)
	}
	if tracks[0].Candidate != albums[0].Candidate {
		t.Error("both lists must carry the same candidate value")
	}
}

func TestMergeSkipsZeroCandidates(t *testing.T) {
	backend := testutil.NewFakeBackend("a", 10, resolver.CapabilityLocal)
	p, _ := newTestPipeline(t, 8, backend)

	q := submitRequest(t, p, "song x", nil)
	p.ReportResults(q.ID(), []resolver.Candidate{{}, {Track: "Song X", Source: "a"}}, backend)

	tracks := q.Results(resolver.CategoryTrack)
	if len(tracks) != 1 {
		t.Fatalf("track results = %d, want 1", len(tracks))
	}
}

func TestMergeDedupsWithinBatch(t *testing.T) {
	backend := testutil.NewFakeBackend("a", 10, resolver.CapabilityLocal)
	p, _ := newTestPipeline(t, 8, backend)

	q := submitRequest(t, p, "song x", nil)
	dup := resolver.Candidate{Track: "Song X", Source: "a"}
	p.ReportResults(q.ID(), []resolver.Candidate{dup, dup, dup}, backend)

	if got := len(q.Results(resolver.CategoryTrack)); got != 1 {
		t.Fatalf("track results = %d, want 1", got)
	}
}

func TestMergeAccumulatesAcrossBatches(t *testing.T) {
	a := testutil.NewFakeBackend("a", 10, resolver.CapabilityLocal)
	b := testutil.NewFakeBackend("b", 5, resolver.CapabilityRemote)
	p, sink := newTestPipeline(t, 8, a, b)

	q := submitRequest(t, p, "song x", nil)
	p.ReportResults(q.ID(), []resolver.Candidate{{Track: "Song X", Source: "a"}}, a)
	p.ReportResults(q.ID(), []resolver.Candidate{
		{Track: "Song X", Source: "a"}, // already merged from a's batch
		{Track: "Song X", Source: "b"},
	}, b)

	if got := len(q.Results(resolver.CategoryTrack)); got != 2 {
		t.Fatalf("track results = %d, want 2", got)
	}
	if got := sink.count(q.ID()); got != 2 {
		t.Fatalf("publish events = %d, want one per merge", got)
	}
}

func TestMergeEmptyBatchDoesNotSolveOrPublish(t *testing.T) {
	backend := testutil.NewFakeBackend("a", 10, resolver.CapabilityLocal)
	p, sink := newTestPipeline(t, 8, backend)

	q := submitRequest(t, p, "song x", nil)
	p.ReportResults(q.ID(), nil, backend)

	if q.Solved() {
		t.Fatal("empty batch must not solve the request")
	}
	if got := sink.count(q.ID()); got != 0 {
		t.Fatalf("publish events = %d, want 0", got)
	}
	if p.IsResolving() {
		t.Fatal("the reported slot must be released")
	}
}

func TestMergeAllBelowThresholdDoesNotSolve(t *testing.T) {
	backend := testutil.NewFakeBackend("a", 10, resolver.CapabilityLocal)
	p, sink := newTestPipeline(t, 8, backend)

	q := submitRequest(t, p, "song x", func(resolver.Candidate, resolver.Category) float64 {
		return 0.2
	})
	p.ReportResults(q.ID(), []resolver.Candidate{{Track: "noise", Source: "a"}}, backend)

	if q.Solved() {
		t.Fatal("filtered-out batch must not solve the request")
	}
	if got := len(q.Results(resolver.CategoryTrack)); got != 0 {
		t.Fatalf("track results = %d, want 0", got)
	}
	// The merge still ran, so consumers are still notified.
	if got := sink.count(q.ID()); got != 1 {
		t.Fatalf("publish events = %d, want 1", got)
	}
}
