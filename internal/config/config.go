package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/edgefilter/bodyroute/internal/rules"
)

// Config is the runtime configuration for the body router.
type Config struct {
	RouteFile      *rules.RouteFile
	RoutePath      string
	Listen         string
	AdminAddr      string
	LogDir         string
	DefaultRoute   string
	SignalField    string
	DecisionHeader string
	MaxBodyBytes   int
	RegoPolicy     string
	Routes         map[string]string
	Debug          bool
}

// Load reads a route YAML file and produces a runtime Config.
func Load(path string) (*Config, error) {
	rf, err := rules.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromRouteFile(rf, path)
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte) (*Config, error) {
	rf, err := rules.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromRouteFile(rf, "")
}

func fromRouteFile(rf *rules.RouteFile, path string) (*Config, error) {
	cfg := &Config{
		RouteFile:    rf,
		RoutePath:    path,
		DefaultRoute: rf.Settings.DefaultRoute,
		MaxBodyBytes: rf.Settings.MaxBodyBytes,
		RegoPolicy:   rf.Settings.RegoPolicy,
		Routes:       rf.Routes,
		Debug:        rf.Settings.Debug,
	}

	cfg.Listen = rf.Settings.Listen
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}

	cfg.AdminAddr = rf.Settings.AdminAddr
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = DefaultAdminAddr
	}

	cfg.LogDir = rf.Settings.LogDir
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir()
	}
	cfg.LogDir = expandHome(cfg.LogDir)

	cfg.SignalField = rf.Settings.SignalField
	if cfg.SignalField == "" {
		cfg.SignalField = DefaultSignalField
	}

	cfg.DecisionHeader = rf.Settings.DecisionHeader
	if cfg.DecisionHeader == "" {
		cfg.DecisionHeader = DefaultDecisionHeader
	}

	if cfg.RegoPolicy != "" {
		cfg.RegoPolicy = expandHome(cfg.RegoPolicy)
	}

	return cfg, nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfig returns a config with defaults for when no config file is given.
func DefaultConfig() *Config {
	rf := rules.DefaultRouteFile()
	return &Config{
		RouteFile:      rf,
		Listen:         DefaultListen,
		AdminAddr:      DefaultAdminAddr,
		LogDir:         expandHome(DefaultLogDir()),
		DefaultRoute:   rf.Settings.DefaultRoute,
		SignalField:    DefaultSignalField,
		DecisionHeader: DefaultDecisionHeader,
	}
}

// MarshalYAML serializes the route file for display/export.
func (c *Config) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(c.RouteFile)
}
