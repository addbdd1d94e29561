package filter

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"
)

const bodyPreviewLimit = 200

// LogFilter is a passthrough filter that records header, body, and trailer
// events without altering control flow. It always continues.
type LogFilter struct {
	logger *slog.Logger
}

// NewLogFilter creates the passthrough logging filter.
func NewLogFilter(logger *slog.Logger) *LogFilter {
	return &LogFilter{logger: logger}
}

func (f *LogFilter) Name() string { return "log" }

func (f *LogFilter) OnRequestHeaders(_ context.Context, sc *StreamContext, endOfStream bool) (HeaderStatus, error) {
	attrs := []any{
		"request_id", sc.ID,
		"end_of_stream", endOfStream,
	}
	for _, h := range sc.Stream.RequestHeaders() {
		attrs = append(attrs, "header."+h[0], h[1])
	}
	f.logger.Debug("request headers", attrs...)
	return HeaderContinue, nil
}

func (f *LogFilter) OnRequestBody(_ context.Context, sc *StreamContext, chunk []byte, endOfStream bool) (BodyStatus, error) {
	f.logger.Debug("request body chunk",
		"request_id", sc.ID,
		"chunk_bytes", len(chunk),
		"end_of_stream", endOfStream,
		"preview", bodyPreview(chunk),
	)
	return BodyContinue, nil
}

func (f *LogFilter) OnRequestTrailers(_ context.Context, sc *StreamContext) error {
	f.logger.Debug("request trailers", "request_id", sc.ID)
	return nil
}

func (f *LogFilter) OnStreamComplete(_ context.Context, sc *StreamContext) {
	attrs := []any{
		"request_id", sc.ID,
		"state", sc.State().String(),
		"body_bytes", len(sc.BufferedBody()),
		"duration", time.Since(sc.StartTime),
	}
	if d := sc.Decision(); d != nil {
		attrs = append(attrs, "route", d.Route, "rule", d.Rule)
	}
	f.logger.Debug("stream complete", attrs...)
}

func bodyPreview(chunk []byte) string {
	if !utf8.Valid(chunk) {
		return "<non-utf8>"
	}
	if len(chunk) > bodyPreviewLimit {
		return string(chunk[:bodyPreviewLimit]) + "..."
	}
	return string(chunk)
}
