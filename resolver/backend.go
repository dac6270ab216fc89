package resolver

// Capability classifies where a backend resolves from.
type Capability int

const (
	// CapabilityLocal marks a backend that resolves against local data.
	CapabilityLocal Capability = iota
	// CapabilityRemote marks a backend that resolves over the network.
	CapabilityRemote
)

// String returns the wire name of the capability.
func (c Capability) String() string {
	if c == CapabilityLocal {
		return "local"
	}
	return "remote"
}

// Backend is a pluggable resolver. Resolve is the admission call: a true
// return means the backend accepted the work and will eventually report
// results through its Reporter; false means it declined and no completion
// will follow. Resolve must return quickly; the actual resolution work runs
// out of band.
type Backend interface {
	ID() string
	Weight() int
	Capability() Capability
	Ready() bool
	Resolve(q *Request) bool
}

// Reporter receives asynchronous completion callbacks from backends. The
// pipeline implements it.
type Reporter interface {
	ReportResults(qid string, results []Candidate, backend Backend)
}

// Event announces that a request has new or complete results.
type Event struct {
	RequestID string `json:"request_id"`
}

// EventSink receives results-reported events. Implementations must not
// block the caller for long; delivery is in-process and best effort.
type EventSink interface {
	Publish(e Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(e Event)

// Publish calls f.
func (f EventSinkFunc) Publish(e Event) { f(e) }
