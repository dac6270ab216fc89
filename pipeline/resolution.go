package pipeline

import "github.com/soundmesh/resolver_pipeline/resolver"

// resolution pairs one request with one backend. It is the atomic unit of
// scheduling; its key identifies the pair for dedup across the pending queue
// and the in-flight set.
type resolution struct {
	qid     string
	backend resolver.Backend
	req     *resolver.Request
	weight  int
}

func resolutionKey(qid, backendID string) string {
	return qid + "/" + backendID
}

func (r resolution) key() string {
	return resolutionKey(r.qid, r.backend.ID())
}

// resolutionHeap orders pending resolutions by descending backend weight.
// Ties break arbitrarily.
type resolutionHeap []resolution

func (h resolutionHeap) Len() int            { return len(h) }
func (h resolutionHeap) Less(i, j int) bool  { return h[i].weight > h[j].weight }
func (h resolutionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resolutionHeap) Push(x interface{}) { *h = append(*h, x.(resolution)) }

func (h *resolutionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	res := old[n-1]
	*h = old[:n-1]
	return res
}
