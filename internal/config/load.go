package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file and returns the resulting
// Config. Unknown keys are treated as fatal errors with "did you mean?"
// suggestions — silently ignoring a typo in a config file leads to
// hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables. It returns a fully
// resolved and validated Config ready for use.
func Resolve(env EnvOverrides, configPath string) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if configPath != "" {
		cfgPath = configPath
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.ClientSecret != "" {
		cfg.GraphAPI.ClientSecret = env.ClientSecret
	}

	if env.Neo4jPassword != "" {
		cfg.Neo4j.Password = env.Neo4jPassword
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}
