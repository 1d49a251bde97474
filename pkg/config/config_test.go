package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
store:
  backend: sqlite
  path: ${ORACLE_TEST_DIR}/oracle.db
  cache_size: 128
server:
  http:
    addr: ":9000"
  websocket:
    enabled: true
  admin_token: ${ORACLE_ADMIN_TOKEN}
  resolve_timeout: 5s
resolver:
  refresh_interval: 30
sources:
  - type: Pyth
    slot: A
    enabled: true
    config:
      endpoint: https://hermes.example
  - type: switchboard
    slot: b
    enabled: true
    config:
      rpc_url: https://rpc.example
      value_offset: 2264
assets:
  - asset: SOL
    name: Solana
    source_a: "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"
    priorities:
      a: 0
      b: 1
logging:
  level: debug
  format: text
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ORACLE_TEST_DIR", dir)
	t.Setenv("ORACLE_ADMIN_TOKEN", "from-env")

	cfg, err := Load(writeConfig(t, dir, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, dir+"/oracle.db", cfg.Store.Path)
	assert.Equal(t, 128, cfg.Store.CacheSize)
	assert.Equal(t, ":9000", cfg.Server.HTTP.Addr)
	assert.Equal(t, ":8081", cfg.Server.WebSocket.Addr)
	assert.Equal(t, "from-env", cfg.Server.AdminToken)
	assert.Equal(t, 5*time.Second, cfg.Server.ResolveTimeout.ToDuration())
	assert.Equal(t, 30*time.Second, cfg.Resolver.RefreshInterval.ToDuration())
	assert.Equal(t, 10*time.Second, cfg.Resolver.ReadTimeout.ToDuration())

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "pyth", cfg.Sources[0].Type)
	assert.Equal(t, "a", cfg.Sources[0].Slot)
	assert.Equal(t, "https://hermes.example", cfg.Sources[0].GetString("endpoint", ""))
	assert.Equal(t, 2264, cfg.Sources[1].Config["value_offset"])

	require.Len(t, cfg.Assets, 1)
	require.NotNil(t, cfg.Assets[0].Priorities)
	assert.Equal(t, int8(1), cfg.Assets[0].Priorities.B)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ORACLE_DOTENV_TOKEN=dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("ORACLE_DOTENV_TOKEN") })

	cfg, err := Load(writeConfig(t, dir, "server:\n  admin_token: ${ORACLE_DOTENV_TOKEN}\n"))
	require.NoError(t, err)
	assert.Equal(t, "dotenv", cfg.Server.AdminToken)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "pebble", cfg.Store.Backend)
	assert.Equal(t, "data/records", cfg.Store.Path)
	assert.Equal(t, ":8080", cfg.Server.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ResolveTimeout.ToDuration())
	assert.Zero(t, cfg.Resolver.RefreshInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.NoError(t, Validate(cfg))
}

func TestDuration(t *testing.T) {
	cfg, err := Parse([]byte("resolver:\n  refresh_interval: 1m30s\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Resolver.RefreshInterval.ToDuration())

	_, err = Parse([]byte("resolver:\n  refresh_interval: soon\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, ErrInvalidStoreBackend},
		{"missing path", func(c *Config) { c.Store.Path = "" }, ErrStorePathRequired},
		{"negative cache", func(c *Config) { c.Store.CacheSize = -1 }, ErrInvalidCacheSize},
		{"negative refresh", func(c *Config) { c.Resolver.RefreshInterval = Duration(-time.Second) }, ErrInvalidDuration},
		{"unknown source", func(c *Config) {
			c.Sources = []SourceConfig{{Type: "chainlink", Slot: "a"}}
		}, ErrUnknownSourceType},
		{"missing source type", func(c *Config) { c.Sources = []SourceConfig{{Slot: "a"}} }, ErrSourceTypeRequired},
		{"bad slot", func(c *Config) { c.Sources = []SourceConfig{{Type: "pyth", Slot: "c"}} }, ErrInvalidSlot},
		{"duplicate slot", func(c *Config) {
			c.Sources = []SourceConfig{
				{Type: "pyth", Slot: "a", Enabled: true},
				{Type: "switchboard", Slot: "a", Enabled: true},
			}
		}, ErrDuplicateSlot},
		{"bad asset", func(c *Config) { c.Assets = []AssetConfig{{Asset: "not valid!"}} }, ErrInvalidAsset},
		{"duplicate asset", func(c *Config) { c.Assets = []AssetConfig{{Asset: "SOL"}, {Asset: "SOL"}} }, ErrDuplicateAsset},
		{"bad priorities", func(c *Config) {
			c.Assets = []AssetConfig{{Asset: "SOL", Priorities: &PriorityPair{A: -1, B: -1}}}
		}, ErrInvalidPriorities},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.ErrorIs(t, Validate(cfg), tt.err)
		})
	}
}

func TestValidate_DisabledSourcesMayShareSlot(t *testing.T) {
	cfg := Default()
	cfg.Sources = []SourceConfig{
		{Type: "pyth", Slot: "a", Enabled: true},
		{Type: "switchboard", Slot: "a"},
	}
	require.NoError(t, Validate(cfg))
}

func TestReaderConfig(t *testing.T) {
	sc := SourceConfig{Type: "pyth", Config: map[string]interface{}{"timeout": "5s"}}
	rc := sc.ReaderConfig()
	assert.Equal(t, "pyth", rc["name"])
	assert.Equal(t, "5s", rc["timeout"])
	_, mutated := sc.Config["name"]
	assert.False(t, mutated)
}
