package rules

import "context"

// Engine is the interface for rule evaluation backends.
type Engine interface {
	// Evaluate matches the extracted signal against loaded rules and
	// returns the winning route.
	Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error)

	// Reload reloads rules from the source (file, remote, etc.).
	Reload(ctx context.Context) error
}
