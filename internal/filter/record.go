package filter

import (
	"context"
	"log/slog"

	"github.com/edgefilter/bodyroute/internal/record"
)

// RecordFilter persists a decision record when the stream is torn down.
type RecordFilter struct {
	store  record.Store
	logger *slog.Logger
}

// NewRecordFilter creates the decision recording filter.
func NewRecordFilter(store record.Store, logger *slog.Logger) *RecordFilter {
	return &RecordFilter{store: store, logger: logger}
}

func (f *RecordFilter) Name() string { return "record" }

func (f *RecordFilter) OnRequestHeaders(_ context.Context, _ *StreamContext, _ bool) (HeaderStatus, error) {
	return HeaderContinue, nil
}

func (f *RecordFilter) OnRequestBody(_ context.Context, _ *StreamContext, _ []byte, _ bool) (BodyStatus, error) {
	return BodyContinue, nil
}

func (f *RecordFilter) OnRequestTrailers(_ context.Context, _ *StreamContext) error {
	return nil
}

func (f *RecordFilter) OnStreamComplete(ctx context.Context, sc *StreamContext) {
	if err := f.store.Write(ctx, sc.ToDecisionRecord()); err != nil {
		f.logger.Error("writing decision record", "request_id", sc.ID, "error", err)
	}
}
