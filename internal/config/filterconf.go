package config

import (
	"encoding/json"
	"strings"
)

// FilterConfig is the per-filter-chain configuration supplied by the host
// as a raw JSON string at setup time.
type FilterConfig struct {
	// Debug controls verbosity of auxiliary diagnostics only; it has no
	// effect on routing behavior.
	Debug bool `json:"debug"`
}

// ParseFilterConfig parses the raw filter configuration string. Absent,
// empty, or malformed input degrades to the default configuration; parse
// failures are never surfaced to the host.
func ParseFilterConfig(raw string) FilterConfig {
	if strings.TrimSpace(raw) == "" {
		return FilterConfig{}
	}
	var fc FilterConfig
	if err := json.Unmarshal([]byte(raw), &fc); err != nil {
		return FilterConfig{}
	}
	return fc
}
