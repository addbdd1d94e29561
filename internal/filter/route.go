package filter

import (
	"context"
	"errors"

	"github.com/edgefilter/bodyroute/api"
	"github.com/edgefilter/bodyroute/internal/extract"
	"github.com/edgefilter/bodyroute/internal/rules"
)

// ErrBodyBeforeHeaders reports a body event delivered before any header
// event, which violates the host callback ordering contract.
var ErrBodyBeforeHeaders = errors.New("body event before header event")

// RouteConfig configures the routing filter.
type RouteConfig struct {
	// Engine evaluates the extracted signal against the rule set.
	Engine rules.Engine

	// SignalField is the body field carrying the routing signal.
	SignalField string

	// DecisionHeader is the request header the route id is written to.
	DecisionHeader string

	// DefaultRoute applies when no signal is found, no rule matches, or
	// evaluation fails.
	DefaultRoute string

	// MaxBodyBytes bounds the accumulated body. Zero means unbounded.
	// On overflow the filter gives up on inspection, applies the default
	// route and releases the stream rather than rejecting the request.
	MaxBodyBytes int
}

// RouteFilter inspects buffered request bodies and stamps a routing header
// for the host's route table to match against.
//
// For requests with a body it holds the stream in the header phase: if
// headers were allowed to proceed, the host would select an upstream before
// the decision header exists. The stream is released only after the header
// is written and the host's cached route selection has been invalidated.
type RouteFilter struct {
	cfg RouteConfig
}

// NewRouteFilter creates the routing filter.
func NewRouteFilter(cfg RouteConfig) *RouteFilter {
	return &RouteFilter{cfg: cfg}
}

func (f *RouteFilter) Name() string { return "route" }

// OnRequestHeaders pauses streams that expect a body. Bodyless requests are
// completed immediately with the default route and no pause.
func (f *RouteFilter) OnRequestHeaders(ctx context.Context, sc *StreamContext, endOfStream bool) (HeaderStatus, error) {
	if sc.state != StateAwaitingHeaders {
		// Late header events on a completed stream carry no routing work.
		return HeaderContinue, nil
	}

	if endOfStream {
		// No body will follow. Nothing has been cached by the host yet,
		// so the header write alone is enough; no invalidation needed.
		f.decide(ctx, sc, nil)
		sc.state = StateCompleted
		return HeaderContinue, nil
	}

	sc.state = StateBufferingBody
	return HeaderStopIteration, nil
}

// OnRequestBody accumulates chunks and, on the final one, runs extraction
// and rule matching, writes the decision header, and invalidates the
// host's cached route selection before releasing the stream.
func (f *RouteFilter) OnRequestBody(ctx context.Context, sc *StreamContext, chunk []byte, endOfStream bool) (BodyStatus, error) {
	switch sc.state {
	case StateAwaitingHeaders:
		return BodyContinue, ErrBodyBeforeHeaders
	case StateCompleted:
		// Decision already made; nothing advances.
		return BodyContinue, nil
	}

	sc.appendBody(chunk)

	if f.cfg.MaxBodyBytes > 0 && len(sc.body) > f.cfg.MaxBodyBytes {
		// Body too large to inspect. Fall back to the default route and
		// release the stream; the request itself is never rejected.
		f.decide(ctx, sc, nil)
		sc.Stream.ClearRouteCache()
		sc.state = StateCompleted
		return BodyContinue, nil
	}

	if !endOfStream {
		return BodyStopIterationAndBuffer, nil
	}

	f.decide(ctx, sc, sc.body)
	sc.Stream.ClearRouteCache()
	sc.state = StateCompleted
	return BodyContinue, nil
}

func (f *RouteFilter) OnRequestTrailers(_ context.Context, _ *StreamContext) error {
	return nil
}

func (f *RouteFilter) OnStreamComplete(_ context.Context, _ *StreamContext) {}

// decide computes the routing decision over the assembled body, at most once
// per stream, and writes the decision header. Extraction and matching
// failures degrade to the default route.
func (f *RouteFilter) decide(ctx context.Context, sc *StreamContext, body []byte) {
	if sc.decision != nil {
		return
	}

	signal, present := "", false
	if len(body) > 0 {
		signal, present = extract.Field(body, f.cfg.SignalField)
	}
	sc.signal = signal
	sc.signalPresent = present

	decision := &api.RouteDecision{Route: f.cfg.DefaultRoute, Rule: rules.DefaultRuleName}
	result, err := f.cfg.Engine.Evaluate(ctx, &rules.EvalInput{Signal: signal, Present: present})
	if err == nil && result.Route != "" {
		decision = &api.RouteDecision{Route: result.Route, Rule: result.Rule}
	}

	sc.decision = decision
	sc.Stream.SetRequestHeader(f.cfg.DecisionHeader, decision.Route)
}
