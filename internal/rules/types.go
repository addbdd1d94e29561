package rules

// RouteFile represents the top-level YAML routing configuration.
type RouteFile struct {
	Version  int               `yaml:"version" json:"version"`
	Settings Settings          `yaml:"settings" json:"settings"`
	Routes   map[string]string `yaml:"routes" json:"routes"`
	Rules    []Rule            `yaml:"rules" json:"rules"`
}

// Settings contains global routing settings.
type Settings struct {
	Listen         string `yaml:"listen,omitempty" json:"listen,omitempty"`
	AdminAddr      string `yaml:"admin_addr,omitempty" json:"admin_addr,omitempty"`
	DefaultRoute   string `yaml:"default_route" json:"default_route"`
	SignalField    string `yaml:"signal_field,omitempty" json:"signal_field,omitempty"`
	DecisionHeader string `yaml:"decision_header,omitempty" json:"decision_header,omitempty"`
	MaxBodyBytes   int    `yaml:"max_body_bytes,omitempty" json:"max_body_bytes,omitempty"`
	LogDir         string `yaml:"log_dir,omitempty" json:"log_dir,omitempty"`
	RegoPolicy     string `yaml:"rego_policy,omitempty" json:"rego_policy,omitempty"`
	Debug          bool   `yaml:"debug,omitempty" json:"debug,omitempty"`
}

// Rule maps a signal predicate to a target route identifier.
type Rule struct {
	Name  string    `yaml:"name" json:"name"`
	Match RuleMatch `yaml:"match" json:"match"`
	Route string    `yaml:"route" json:"route"`
}

// RuleMatch specifies the predicate for a rule. Exactly one field is set.
type RuleMatch struct {
	Contains string `yaml:"contains,omitempty" json:"contains,omitempty"`
	Exact    string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Regex    string `yaml:"regex,omitempty" json:"regex,omitempty"`
	Expr     string `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// EvalInput is the input to a rule engine evaluation.
type EvalInput struct {
	// Signal is the extracted routing signal. Meaningless when Present is false.
	Signal string `json:"signal"`

	// Present reports whether a signal was extracted from the body at all.
	Present bool `json:"present"`
}

// EvalResult is the output of a rule engine evaluation.
type EvalResult struct {
	Route string `json:"route"`
	Rule  string `json:"rule,omitempty"`
}
