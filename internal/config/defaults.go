package config

const (
	DefaultListen         = ":3000"
	DefaultAdminAddr      = "127.0.0.1:8080"
	DefaultSignalField    = "method"
	DefaultDecisionHeader = "x-route-to"
)

// DefaultLogDir returns the default decision log directory path.
func DefaultLogDir() string {
	return "~/.bodyroute/logs"
}
