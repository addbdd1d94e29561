package filter

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain runs a sequence of stream filters in order for each callback.
// The most restrictive status across filters wins, so a passive filter
// can never release a stream another filter is holding.
type Chain struct {
	filters []StreamFilter
	logger  *slog.Logger
}

// NewChain creates a new filter chain.
func NewChain(logger *slog.Logger, filters ...StreamFilter) *Chain {
	return &Chain{
		filters: filters,
		logger:  logger,
	}
}

// OnRequestHeaders dispatches the header event to all filters.
func (c *Chain) OnRequestHeaders(ctx context.Context, sc *StreamContext, endOfStream bool) (HeaderStatus, error) {
	status := HeaderContinue
	for _, f := range c.filters {
		s, err := f.OnRequestHeaders(ctx, sc, endOfStream)
		if err != nil {
			return status, fmt.Errorf("filter %q: %w", f.Name(), err)
		}
		if s == HeaderStopIteration {
			status = HeaderStopIteration
		}
		c.logger.Debug("header event",
			"request_id", sc.ID,
			"filter", f.Name(),
			"status", s.String(),
			"end_of_stream", endOfStream,
		)
	}
	return status, nil
}

// OnRequestBody dispatches a body chunk to all filters.
func (c *Chain) OnRequestBody(ctx context.Context, sc *StreamContext, chunk []byte, endOfStream bool) (BodyStatus, error) {
	status := BodyContinue
	for _, f := range c.filters {
		s, err := f.OnRequestBody(ctx, sc, chunk, endOfStream)
		if err != nil {
			return status, fmt.Errorf("filter %q: %w", f.Name(), err)
		}
		if s == BodyStopIterationAndBuffer {
			status = BodyStopIterationAndBuffer
		}
		c.logger.Debug("body event",
			"request_id", sc.ID,
			"filter", f.Name(),
			"status", s.String(),
			"chunk_bytes", len(chunk),
			"end_of_stream", endOfStream,
		)
	}
	return status, nil
}

// OnRequestTrailers dispatches the trailer event to all filters.
func (c *Chain) OnRequestTrailers(ctx context.Context, sc *StreamContext) error {
	for _, f := range c.filters {
		if err := f.OnRequestTrailers(ctx, sc); err != nil {
			return fmt.Errorf("filter %q: %w", f.Name(), err)
		}
	}
	return nil
}

// OnStreamComplete notifies every filter that the stream is torn down.
// All filters are notified even if one misbehaves; this is the release
// half of the per-stream acquire in NewStreamContext.
func (c *Chain) OnStreamComplete(ctx context.Context, sc *StreamContext) {
	for _, f := range c.filters {
		f.OnStreamComplete(ctx, sc)
	}
}

// AddFilter appends a filter to the chain.
func (c *Chain) AddFilter(f StreamFilter) {
	c.filters = append(c.filters, f)
}
