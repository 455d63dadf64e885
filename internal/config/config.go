// Package config loads the pagelink CLI configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultServer is used when neither the file nor flags name a host.
const DefaultServer = "ws://localhost:8550/ws"

// Config holds the CLI configuration.
type Config struct {
	// Server is the host websocket URL.
	Server string `yaml:"server"`

	// Token is the host auth token.
	Token string `yaml:"token"`

	// Permissions is the page permission spec.
	Permissions string `yaml:"permissions"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{Server: DefaultServer}
}

// Load reads the YAML config at path, falling back to defaults when the
// file does not exist. Explicitly named files must exist.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	return cfg, nil
}
