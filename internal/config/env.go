package config

import "os"

// Environment variable names for overrides. Secrets are expected via the
// environment in containerized deployments so the config file can be
// committed without credentials.
const (
	EnvConfig        = "SHAREGRAPH_CONFIG"
	EnvClientSecret  = "SHAREGRAPH_CLIENT_SECRET"
	EnvNeo4jPassword = "SHAREGRAPH_NEO4J_PASSWORD"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath    string // SHAREGRAPH_CONFIG: override config file path
	ClientSecret  string // SHAREGRAPH_CLIENT_SECRET: Graph app client secret
	Neo4jPassword string // SHAREGRAPH_NEO4J_PASSWORD: graph database password
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the relevant
// fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:    os.Getenv(EnvConfig),
		ClientSecret:  os.Getenv(EnvClientSecret),
		Neo4jPassword: os.Getenv(EnvNeo4jPassword),
	}
}
