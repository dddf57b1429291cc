package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks a resolved Config for missing credentials and invalid
// values. All problems are reported together rather than one at a time.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.GraphAPI.TenantID == "" {
		errs = append(errs, errors.New("graph_api.tenant_id is required"))
	}

	if cfg.GraphAPI.ClientID == "" {
		errs = append(errs, errors.New("graph_api.client_id is required"))
	}

	if cfg.GraphAPI.ClientSecret == "" {
		errs = append(errs, fmt.Errorf("graph_api.client_secret is required (set it in the config file or via %s)", EnvClientSecret))
	}

	if cfg.GraphAPI.CallDelayMS < 0 {
		errs = append(errs, errors.New("graph_api.call_delay_ms must not be negative"))
	}

	if cfg.Neo4j.URI == "" {
		errs = append(errs, errors.New("neo4j.uri is required"))
	} else if !validNeo4jScheme(cfg.Neo4j.URI) {
		errs = append(errs, fmt.Errorf("neo4j.uri %q must use a bolt:// or neo4j:// scheme", cfg.Neo4j.URI))
	}

	if cfg.Neo4j.User == "" {
		errs = append(errs, errors.New("neo4j.user is required"))
	}

	if cfg.Neo4j.Password == "" {
		errs = append(errs, fmt.Errorf("neo4j.password is required (set it in the config file or via %s)", EnvNeo4jPassword))
	}

	if cfg.Scan.Workers < 1 {
		errs = append(errs, errors.New("scan.workers must be at least 1"))
	}

	if d, err := time.ParseDuration(cfg.Scan.FullRescanInterval); err != nil {
		errs = append(errs, fmt.Errorf("scan.full_rescan_interval %q is not a valid duration: %w", cfg.Scan.FullRescanInterval, err))
	} else if d <= 0 {
		errs = append(errs, errors.New("scan.full_rescan_interval must be positive"))
	}

	if d, err := time.ParseDuration(cfg.Scan.RunTimeout); err != nil {
		errs = append(errs, fmt.Errorf("scan.run_timeout %q is not a valid duration: %w", cfg.Scan.RunTimeout, err))
	} else if d < 0 {
		errs = append(errs, errors.New("scan.run_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// validNeo4jScheme accepts the driver's supported URI schemes, including
// the +s and +ssc TLS variants.
func validNeo4jScheme(uri string) bool {
	for _, scheme := range []string{"bolt://", "bolt+s://", "bolt+ssc://", "neo4j://", "neo4j+s://", "neo4j+ssc://"} {
		if strings.HasPrefix(uri, scheme) {
			return true
		}
	}

	return false
}
