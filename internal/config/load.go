package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvAddress         = "FORGE_ADDRESS"
	EnvTransport       = "FORGE_TRANSPORT"
	EnvPrimaryInstance = "FORGE_PRIMARY_INSTANCE"
)

// DefaultPath returns $XDG_CONFIG_HOME/forge/config.yaml (or the platform
// equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(dir, "forge", "config.yaml"), nil
}

// Load reads the configuration, applies environment overrides and validates
// the result. An empty path means DefaultPath, which may be absent; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := LoadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg, err = &Config{}, nil
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile parses a YAML configuration file without applying defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAddress); ok && v != "" {
		c.Daemon.Address = v
	}
	if v, ok := lookup(EnvTransport); ok && v != "" {
		c.Daemon.Transport = Transport(v)
	}
	if v, ok := lookup(EnvPrimaryInstance); ok && v != "" {
		c.PrimaryInstance = v
	}
}
