package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigPath returns the platform-appropriate config file path,
// e.g. ~/.config/sharegraph/config.toml on Linux. Falls back to a
// relative path when the user config dir cannot be determined.
func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("sharegraph", "config.toml")
	}

	return filepath.Join(base, "sharegraph", "config.toml")
}
