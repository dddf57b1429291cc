// Package config implements TOML configuration loading and validation for
// sharegraph-go. It supports a three-layer override chain
// (defaults -> config file -> environment) with strict unknown-key
// detection.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	GraphAPI GraphAPIConfig `toml:"graph_api"`
	Neo4j    Neo4jConfig    `toml:"neo4j"`
	Scan     ScanConfig     `toml:"scan"`
}

// GraphAPIConfig holds the Microsoft Graph app registration and client
// throttling settings. The client secret may be left empty in the file
// and supplied via SHAREGRAPH_CLIENT_SECRET instead.
type GraphAPIConfig struct {
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CallDelayMS  int    `toml:"call_delay_ms"`
}

// Neo4jConfig holds the graph database connection settings. The password
// may be left empty in the file and supplied via SHAREGRAPH_NEO4J_PASSWORD.
type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// ScanConfig controls scan behavior: worker concurrency, how long delta
// tokens are trusted before a full rescan, and traversal scope.
type ScanConfig struct {
	Workers            int      `toml:"workers"`
	ForceFull          bool     `toml:"force_full"`
	FullRescanInterval string   `toml:"full_rescan_interval"`
	RunTimeout         string   `toml:"run_timeout"`
	SkipSites          bool     `toml:"skip_sites"`
	Users              []string `toml:"users"`
}

// RescanInterval parses the full_rescan_interval duration. Validate has
// already rejected unparseable values by the time callers reach this.
func (s ScanConfig) RescanInterval() time.Duration {
	d, err := time.ParseDuration(s.FullRescanInterval)
	if err != nil {
		return defaultRescanDuration
	}

	return d
}

// Timeout parses the run_timeout duration; zero means no timeout.
func (s ScanConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(s.RunTimeout)
	if err != nil {
		return 0
	}

	return d
}
