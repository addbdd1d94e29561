package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultRuleName is reported when no rule matched and the default route applied.
const DefaultRuleName = "_default"

// ExprEnv is the environment exposed to expr rule predicates.
type ExprEnv struct {
	Signal string `expr:"signal"`
}

// YAMLEngine implements first-match-wins rule evaluation using YAML rules.
type YAMLEngine struct {
	mu   sync.RWMutex
	file *RouteFile
	path string

	// compiled predicate caches
	regexCache map[string]*regexp.Regexp
	exprCache  map[string]*vm.Program
}

// NewYAMLEngine creates a new YAML rule engine from a file path.
func NewYAMLEngine(path string) (*YAMLEngine, error) {
	e := &YAMLEngine{path: path}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewYAMLEngineFromFile creates a new YAML rule engine from an already-loaded route file.
func NewYAMLEngineFromFile(rf *RouteFile) (*YAMLEngine, error) {
	e := &YAMLEngine{}
	if err := e.install(rf); err != nil {
		return nil, err
	}
	return e, nil
}

// Evaluate checks the signal against rules in order, returning the first match.
// An absent signal always resolves to the default route.
func (e *YAMLEngine) Evaluate(_ context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if input.Present {
		for _, rule := range e.file.Rules {
			if e.matches(&rule, input.Signal) {
				return &EvalResult{Route: rule.Route, Rule: rule.Name}, nil
			}
		}
	}

	return &EvalResult{
		Route: e.file.Settings.DefaultRoute,
		Rule:  DefaultRuleName,
	}, nil
}

// Reload re-reads the route file from disk.
func (e *YAMLEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	rf, err := LoadFile(e.path)
	if err != nil {
		return err
	}
	return e.install(rf)
}

// RouteFile returns the currently loaded configuration.
func (e *YAMLEngine) RouteFile() *RouteFile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.file
}

func (e *YAMLEngine) install(rf *RouteFile) error {
	regexCache := make(map[string]*regexp.Regexp)
	exprCache := make(map[string]*vm.Program)

	for _, rule := range rf.Rules {
		if rule.Match.Regex != "" {
			re, err := regexp.Compile(rule.Match.Regex)
			if err != nil {
				return fmt.Errorf("rule %q: compiling regex: %w", rule.Name, err)
			}
			regexCache[rule.Name] = re
		}
		if rule.Match.Expr != "" {
			program, err := expr.Compile(rule.Match.Expr, expr.Env(ExprEnv{}), expr.AsBool())
			if err != nil {
				return fmt.Errorf("rule %q: compiling expression: %w", rule.Name, err)
			}
			exprCache[rule.Name] = program
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.file = rf
	e.regexCache = regexCache
	e.exprCache = exprCache
	return nil
}

func (e *YAMLEngine) matches(rule *Rule, signal string) bool {
	switch {
	case rule.Match.Contains != "":
		return strings.Contains(signal, rule.Match.Contains)

	case rule.Match.Exact != "":
		return signal == rule.Match.Exact

	case rule.Match.Regex != "":
		re, ok := e.regexCache[rule.Name]
		if !ok {
			return false
		}
		return re.MatchString(signal)

	case rule.Match.Expr != "":
		program, ok := e.exprCache[rule.Name]
		if !ok {
			return false
		}
		out, err := expr.Run(program, ExprEnv{Signal: signal})
		if err != nil {
			return false
		}
		matched, _ := out.(bool)
		return matched
	}

	return false
}
