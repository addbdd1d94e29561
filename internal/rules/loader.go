package rules

import (
	"fmt"
	"os"
	"regexp"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"
)

// DefaultRoute is the route applied when no rule matches.
const DefaultRoute = "echo1"

// LoadFile reads and validates a YAML route file.
func LoadFile(path string) (*RouteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading route file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates YAML route data.
func LoadBytes(data []byte) (*RouteFile, error) {
	var rf RouteFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing route YAML: %w", err)
	}
	if err := validate(&rf); err != nil {
		return nil, err
	}
	return &rf, nil
}

// DefaultRouteFile returns the built-in configuration: signals mentioning
// echo2 route to echo2, everything else falls through to echo1.
func DefaultRouteFile() *RouteFile {
	return &RouteFile{
		Version: 1,
		Settings: Settings{
			DefaultRoute: DefaultRoute,
		},
		Rules: []Rule{
			{
				Name:  "echo2-signal",
				Match: RuleMatch{Contains: "echo2"},
				Route: "echo2",
			},
		},
	}
}

func validate(rf *RouteFile) error {
	if rf.Version != 1 {
		return fmt.Errorf("unsupported route file version: %d (expected 1)", rf.Version)
	}

	if rf.Settings.DefaultRoute == "" {
		rf.Settings.DefaultRoute = DefaultRoute
	}

	for i, rule := range rf.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if rule.Route == "" {
			return fmt.Errorf("rule %q: route is required", rule.Name)
		}
		if err := validateMatch(&rule); err != nil {
			return err
		}
	}

	return nil
}

func validateMatch(rule *Rule) error {
	set := 0
	if rule.Match.Contains != "" {
		set++
	}
	if rule.Match.Exact != "" {
		set++
	}
	if rule.Match.Regex != "" {
		set++
		if _, err := regexp.Compile(rule.Match.Regex); err != nil {
			return fmt.Errorf("rule %q: regex invalid: %w", rule.Name, err)
		}
	}
	if rule.Match.Expr != "" {
		set++
		if _, err := expr.Compile(rule.Match.Expr, expr.Env(ExprEnv{}), expr.AsBool()); err != nil {
			return fmt.Errorf("rule %q: expression invalid: %w", rule.Name, err)
		}
	}
	if set != 1 {
		return fmt.Errorf("rule %q: exactly one of contains, exact, regex, expr is required", rule.Name)
	}
	return nil
}
