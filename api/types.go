package api

import "time"

// RouteDecision is the outcome of evaluating a request body against the
// routing rules. Computed at most once per request.
type RouteDecision struct {
	Route string `json:"route"`
	Rule  string `json:"rule,omitempty"`
}

// DecisionRecord captures one completed routing decision for observability.
type DecisionRecord struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	RequestID     string        `json:"request_id"`
	Route         string        `json:"route"`
	Rule          string        `json:"rule,omitempty"`
	Signal        string        `json:"signal,omitempty"`
	SignalPresent bool          `json:"signal_present"`
	BodySize      int           `json:"body_size,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// QueryFilter narrows a decision record query.
type QueryFilter struct {
	Since  time.Time
	Until  time.Time
	Route  string
	Rule   string
	Limit  int
	Offset int
}

// DecisionStats holds aggregate statistics over recorded decisions.
type DecisionStats struct {
	TotalStreams int            `json:"total_streams"`
	SignalCount  int            `json:"signal_count"`
	ByRoute      map[string]int `json:"by_route"`
	ByRule       map[string]int `json:"by_rule"`
}

// CheckResult is the result of a dry-run rule check.
type CheckResult struct {
	Route string `json:"route"`
	Rule  string `json:"rule,omitempty"`
}
