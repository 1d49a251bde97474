// Package config provides configuration loading and validation for oracle-priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from YAML file and environment variables. A .env file next
// to the config file is loaded first when present; variables already set win.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	envPath := filepath.Join(filepath.Dir(absPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied and nothing configured.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "pebble"
	}
	if cfg.Store.Path == "" && cfg.Store.Backend != "memory" {
		if cfg.Store.Backend == "sqlite" {
			cfg.Store.Path = "data/oracle.db"
		} else {
			cfg.Store.Path = "data/records"
		}
	}

	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.WebSocket.Enabled && cfg.Server.WebSocket.Addr == "" {
		cfg.Server.WebSocket.Addr = ":8081"
	}
	if cfg.Server.ResolveTimeout.ToDuration() == 0 {
		cfg.Server.ResolveTimeout = Duration(15 * time.Second)
	}

	if cfg.Resolver.ReadTimeout.ToDuration() == 0 {
		cfg.Resolver.ReadTimeout = Duration(10 * time.Second)
	}

	for i := range cfg.Sources {
		cfg.Sources[i].Type = strings.ToLower(cfg.Sources[i].Type)
		cfg.Sources[i].Slot = strings.ToLower(cfg.Sources[i].Slot)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// GetString retrieves a string value from the source configuration.
func (sc *SourceConfig) GetString(key, defaultValue string) string {
	if val, ok := sc.Config[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

// ReaderConfig returns a copy of the reader options with the source type as default name.
func (sc *SourceConfig) ReaderConfig() map[string]interface{} {
	out := make(map[string]interface{}, len(sc.Config)+1)
	for k, v := range sc.Config {
		out[k] = v
	}
	if _, ok := out["name"]; !ok {
		out["name"] = sc.Type
	}
	return out
}
