package internal

import "github.com/starford/ansuz/internal/oracle"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	oracle  oracle.Oracle
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOracle replaces the configured provider, e.g. with a local stub.
func WithOracle(o oracle.Oracle) Option {
	return func(a *application) {
		a.oracle = o
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
