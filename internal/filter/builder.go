package filter

import (
	"log/slog"

	"github.com/edgefilter/bodyroute/internal/record"
	"github.com/edgefilter/bodyroute/internal/rules"
)

// ChainConfig holds the configuration for building the request filter chain.
type ChainConfig struct {
	Engine         rules.Engine
	RecordStore    record.Store
	Logger         *slog.Logger
	SignalField    string
	DecisionHeader string
	DefaultRoute   string
	MaxBodyBytes   int

	// Debug enables the passthrough event logger.
	Debug bool
}

// BuildChain constructs the request filter chain: optional passthrough
// logging, then routing, with decision recording always last.
func BuildChain(cfg ChainConfig) *Chain {
	var filters []StreamFilter

	if cfg.Debug {
		filters = append(filters, NewLogFilter(cfg.Logger))
	}

	filters = append(filters, NewRouteFilter(RouteConfig{
		Engine:         cfg.Engine,
		SignalField:    cfg.SignalField,
		DecisionHeader: cfg.DecisionHeader,
		DefaultRoute:   cfg.DefaultRoute,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	}))

	if cfg.RecordStore != nil {
		filters = append(filters, NewRecordFilter(cfg.RecordStore, cfg.Logger))
	}

	return NewChain(cfg.Logger, filters...)
}
