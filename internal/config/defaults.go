package config

import "time"

// Default values for configuration options. These are the "layer 0" of
// the override chain; a config file only needs the credentials.
const (
	defaultCallDelayMS        = 100
	defaultNeo4jURI           = "bolt://localhost:7687"
	defaultNeo4jUser          = "neo4j"
	defaultNeo4jDatabase      = "neo4j"
	defaultWorkers            = 4
	defaultFullRescanInterval = "168h" // 7 days
	defaultRunTimeout         = "0s"   // no timeout

	defaultRescanDuration = 7 * 24 * time.Hour
)

// DefaultConfig returns a Config populated with all default values.
// This is the starting point for TOML decoding, so unset fields retain
// their defaults.
func DefaultConfig() *Config {
	return &Config{
		GraphAPI: GraphAPIConfig{
			CallDelayMS: defaultCallDelayMS,
		},
		Neo4j: Neo4jConfig{
			URI:      defaultNeo4jURI,
			User:     defaultNeo4jUser,
			Database: defaultNeo4jDatabase,
		},
		Scan: ScanConfig{
			Workers:            defaultWorkers,
			FullRescanInterval: defaultFullRescanInterval,
			RunTimeout:         defaultRunTimeout,
		},
	}
}
