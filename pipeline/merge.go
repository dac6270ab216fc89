package pipeline

import (
	"log"
	"time"

	"github.com/soundmesh/resolver_pipeline/obs"
	"github.com/soundmesh/resolver_pipeline/resolver"
)

// MinScore is the similarity threshold a candidate must meet to enter a
// category result list.
const MinScore = 0.5

// merge scores a reported batch against the originating request, filters
// each category at MinScore, dedupes within the batch, and appends the
// survivors to the request's result lists. Per-request serialization
// happens inside Request.ApplyBatch. A batch for an unknown request or an
// empty batch is a logged no-op.
func (p *Pipeline) merge(qid string, results []resolver.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: merge for request %s panicked: %v", qid, r)
		}
	}()

	p.mu.Lock()
	q, ok := p.requests[qid]
	p.mu.Unlock()
	if !ok {
		log.Printf("pipeline: results reported for unknown request %s", qid)
		return
	}
	if len(results) == 0 {
		log.Printf("pipeline: empty result batch for request %s", qid)
		return
	}

	start := time.Now()
	clean := make(map[resolver.Category][]resolver.ScoredCandidate, len(resolver.Categories))
	batchSeen := make(map[resolver.Category]map[resolver.Candidate]struct{}, len(resolver.Categories))
	for _, cat := range resolver.Categories {
		batchSeen[cat] = make(map[resolver.Candidate]struct{})
	}

	for _, c := range results {
		if c.IsZero() {
			continue
		}
		for _, cat := range resolver.Categories {
			score := q.Similarity(c, cat)
			if score < MinScore {
				continue
			}
			if _, dup := batchSeen[cat][c]; dup {
				continue
			}
			batchSeen[cat][c] = struct{}{}
			clean[cat] = append(clean[cat], resolver.ScoredCandidate{
				Candidate: c,
				Score:     score,
				Category:  cat,
			})
		}
	}

	added := q.ApplyBatch(clean)
	obs.ObserveMerge(time.Since(start), added)
	p.publish(qid)
}
