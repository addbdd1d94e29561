package rules

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/open-policy-agent/opa/topdown"
)

// OPAEngine implements the Engine interface using embedded OPA/Rego.
type OPAEngine struct {
	mu           sync.RWMutex
	path         string
	defaultRoute string

	// Compiled query for evaluation
	query rego.PreparedEvalQuery
}

// NewOPAEngine creates a new OPA engine from a .rego policy file.
func NewOPAEngine(path, defaultRoute string) (*OPAEngine, error) {
	e := &OPAEngine{path: path, defaultRoute: defaultRoute}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewOPAEngineFromSource creates a new OPA engine from raw Rego source.
func NewOPAEngineFromSource(source, defaultRoute string) (*OPAEngine, error) {
	e := &OPAEngine{defaultRoute: defaultRoute}
	if err := e.loadSource(source); err != nil {
		return nil, err
	}
	return e, nil
}

// Evaluate runs the Rego policy against the extracted signal.
//
// The policy must define the following in package bodyroute:
//
//	route_id: string
//	rule_name: string (optional)
//
// Input available to the policy:
//
//	input.signal: string
//	input.present: bool
//
// A policy that produces no route_id falls through to the default route,
// matching the never-reject posture of the YAML engine.
func (e *OPAEngine) Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	inputMap := map[string]any{
		"signal":  input.Signal,
		"present": input.Present,
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		if topdown.IsError(err) {
			return e.fallback("_rego_error"), nil
		}
		return nil, fmt.Errorf("rego evaluation failed: %w", err)
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return e.fallback(DefaultRuleName), nil
	}

	resultMap, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return e.fallback("_rego_result_shape"), nil
	}

	return e.parseResult(resultMap), nil
}

// Reload re-reads the Rego policy file from disk and recompiles.
func (e *OPAEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("reading rego policy file: %w", err)
	}
	return e.loadSource(string(data))
}

func (e *OPAEngine) loadSource(source string) error {
	// Parse to validate
	_, err := ast.ParseModuleWithOpts("policy.rego", source, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return fmt.Errorf("parsing rego policy: %w", err)
	}

	store := inmem.New()

	r := rego.New(
		rego.Query("data.bodyroute"),
		rego.Module("policy.rego", source),
		rego.Store(store),
	)

	query, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("preparing rego query: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = query

	return nil
}

func (e *OPAEngine) parseResult(m map[string]any) *EvalResult {
	route, ok := m["route_id"].(string)
	if !ok || route == "" {
		return e.fallback(DefaultRuleName)
	}

	result := &EvalResult{Route: route}
	if r, ok := m["rule_name"].(string); ok {
		result.Rule = r
	}
	return result
}

func (e *OPAEngine) fallback(rule string) *EvalResult {
	return &EvalResult{Route: e.defaultRoute, Rule: rule}
}
