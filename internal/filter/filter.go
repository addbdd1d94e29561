package filter

import "context"

// HeaderStatus is the control signal a filter returns from the header callback.
type HeaderStatus int

const (
	// HeaderContinue lets request processing proceed past the header phase.
	HeaderContinue HeaderStatus = iota

	// HeaderStopIteration holds the request in the header phase. No upstream
	// connection is established until a later callback continues the stream.
	HeaderStopIteration
)

func (s HeaderStatus) String() string {
	switch s {
	case HeaderContinue:
		return "continue"
	case HeaderStopIteration:
		return "stop_iteration"
	default:
		return "unknown"
	}
}

// BodyStatus is the control signal a filter returns from the body callback.
type BodyStatus int

const (
	// BodyContinue resumes normal processing of the stream.
	BodyContinue BodyStatus = iota

	// BodyStopIterationAndBuffer keeps the stream paused and asks the host
	// to deliver further body chunks as they arrive.
	BodyStopIterationAndBuffer
)

func (s BodyStatus) String() string {
	switch s {
	case BodyContinue:
		return "continue"
	case BodyStopIterationAndBuffer:
		return "stop_and_buffer"
	default:
		return "unknown"
	}
}

// StreamFilter is a single step in the request stream pipeline. The host
// invokes the callbacks for one stream strictly sequentially, so filters
// need no internal synchronization for per-stream state.
type StreamFilter interface {
	// Name returns the filter name for logging.
	Name() string

	// OnRequestHeaders is called once header processing begins.
	// endOfStream is true when no body will follow.
	OnRequestHeaders(ctx context.Context, sc *StreamContext, endOfStream bool) (HeaderStatus, error)

	// OnRequestBody is called for each body chunk the host delivers.
	// endOfStream is true on the final chunk.
	OnRequestBody(ctx context.Context, sc *StreamContext, chunk []byte, endOfStream bool) (BodyStatus, error)

	// OnRequestTrailers is called when request trailers arrive, after the
	// body phase. Filters take no routing action here.
	OnRequestTrailers(ctx context.Context, sc *StreamContext) error

	// OnStreamComplete is called exactly once when the host tears the
	// stream down, on every exit path including early termination.
	OnStreamComplete(ctx context.Context, sc *StreamContext)
}
