package filter

import (
	"time"

	"github.com/google/uuid"

	"github.com/edgefilter/bodyroute/api"
)

// State is the lifecycle state of a request stream.
type State int

const (
	// StateAwaitingHeaders is the initial state, before the header event.
	StateAwaitingHeaders State = iota

	// StateBufferingBody means the stream is paused while body chunks
	// are accumulated.
	StateBufferingBody

	// StateCompleted is terminal; the routing decision has been made.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateAwaitingHeaders:
		return "awaiting_headers"
	case StateBufferingBody:
		return "buffering_body"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// StreamContext carries the per-request state through the filter chain.
// One instance exists per in-flight request and is never shared across
// requests or goroutines.
type StreamContext struct {
	// ID identifies the request for log correlation. Generated at stream
	// start; never derived from process-wide state.
	ID string

	// Stream is the host surface for this request.
	Stream Stream

	// StartTime records when the stream entered the pipeline.
	StartTime time.Time

	state State

	// body accumulates chunks in delivery order. Grows only.
	body []byte

	decision      *api.RouteDecision
	signal        string
	signalPresent bool
}

// NewStreamContext creates the per-request context for a host stream.
func NewStreamContext(stream Stream) *StreamContext {
	return &StreamContext{
		ID:        uuid.New().String(),
		Stream:    stream,
		StartTime: time.Now(),
		state:     StateAwaitingHeaders,
	}
}

// State returns the current lifecycle state.
func (sc *StreamContext) State() State { return sc.state }

// BufferedBody returns the body bytes accumulated so far.
func (sc *StreamContext) BufferedBody() []byte { return sc.body }

// Decision returns the routing decision, or nil if none has been made yet.
func (sc *StreamContext) Decision() *api.RouteDecision { return sc.decision }

func (sc *StreamContext) appendBody(chunk []byte) {
	if len(chunk) > 0 {
		sc.body = append(sc.body, chunk...)
	}
}

// ToDecisionRecord converts the stream context into a decision record.
func (sc *StreamContext) ToDecisionRecord() *api.DecisionRecord {
	record := &api.DecisionRecord{
		Timestamp:     sc.StartTime,
		RequestID:     sc.ID,
		Signal:        sc.signal,
		SignalPresent: sc.signalPresent,
		BodySize:      len(sc.body),
		Duration:      time.Since(sc.StartTime),
	}
	if sc.decision != nil {
		record.Route = sc.decision.Route
		record.Rule = sc.decision.Rule
	}
	return record
}
