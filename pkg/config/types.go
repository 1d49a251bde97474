package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	Resolver ResolverConfig `yaml:"resolver"`
	Sources  []SourceConfig `yaml:"sources"`
	Assets   []AssetConfig  `yaml:"assets"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StoreConfig selects the record store backend
type StoreConfig struct {
	Backend   string `yaml:"backend"`    // memory, pebble or sqlite
	Path      string `yaml:"path"`       // directory (pebble) or file (sqlite)
	CacheSize int    `yaml:"cache_size"` // LRU records, 0 disables the cache
}

// ServerConfig configures the API server
type ServerConfig struct {
	HTTP           HTTPConfig `yaml:"http"`
	WebSocket      WSConfig   `yaml:"websocket"`
	AdminToken     string     `yaml:"admin_token"`
	ResolveTimeout Duration   `yaml:"resolve_timeout"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WSConfig configures the WebSocket server
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ResolverConfig configures resolution
type ResolverConfig struct {
	RefreshInterval Duration `yaml:"refresh_interval"` // 0 disables periodic resolution
	ReadTimeout     Duration `yaml:"read_timeout"`
}

// SourceConfig configures the reader of one slot
type SourceConfig struct {
	Type    string                 `yaml:"type"` // pyth or switchboard
	Slot    string                 `yaml:"slot"` // a or b
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config"`
}

// AssetConfig bootstraps a record at startup
type AssetConfig struct {
	Asset      string        `yaml:"asset"`
	Name       string        `yaml:"name"`
	SourceA    string        `yaml:"source_a"` // hex feed id
	SourceB    string        `yaml:"source_b"` // base58 account address
	Priorities *PriorityPair `yaml:"priorities"`
}

// PriorityPair holds raw slot priorities; negative disables a slot.
type PriorityPair struct {
	A int8 `yaml:"a"`
	B int8 `yaml:"b"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. Plain integers are seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		var secs int64
		if value.Decode(&secs) != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		td = time.Duration(secs) * time.Second
	}
	*d = Duration(td)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
