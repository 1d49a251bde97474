package config

import (
	"fmt"
	"strings"

	"github.com/StrathCole/oracle-priority/pkg/oracle"
	"github.com/StrathCole/oracle-priority/pkg/priority"
)

var validSourceTypes = []string{"pyth", "switchboard"}

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateStoreConfig(&cfg.Store); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if cfg.Resolver.RefreshInterval < 0 || cfg.Resolver.ReadTimeout < 0 {
		return fmt.Errorf("resolver config: %w", ErrInvalidDuration)
	}

	var bound [oracle.NumSlots]bool
	for i, source := range cfg.Sources {
		slot, err := validateSourceConfig(&source)
		if err != nil {
			return fmt.Errorf("source %d (%s): %w", i, source.Type, err)
		}
		if !source.Enabled {
			continue
		}
		if bound[slot] {
			return fmt.Errorf("source %d (%s): %w: %s", i, source.Type, ErrDuplicateSlot, slot)
		}
		bound[slot] = true
	}

	seen := make(map[string]bool, len(cfg.Assets))
	for i, asset := range cfg.Assets {
		if err := validateAssetConfig(&asset); err != nil {
			return fmt.Errorf("asset %d (%s): %w", i, asset.Asset, err)
		}
		if seen[asset.Asset] {
			return fmt.Errorf("asset %d: %w: %s", i, ErrDuplicateAsset, asset.Asset)
		}
		seen[asset.Asset] = true
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateStoreConfig(cfg *StoreConfig) error {
	switch strings.ToLower(cfg.Backend) {
	case "memory":
	case "pebble", "sqlite":
		if cfg.Path == "" {
			return ErrStorePathRequired
		}
	default:
		return fmt.Errorf("%w: %s (must be 'memory', 'pebble', or 'sqlite')", ErrInvalidStoreBackend, cfg.Backend)
	}
	if cfg.CacheSize < 0 {
		return ErrInvalidCacheSize
	}
	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.ResolveTimeout < 0 {
		return fmt.Errorf("resolve_timeout: %w", ErrInvalidDuration)
	}
	return nil
}

// validateSourceConfig returns the slot the source is bound to.
func validateSourceConfig(cfg *SourceConfig) (oracle.Slot, error) {
	if cfg.Type == "" {
		return 0, ErrSourceTypeRequired
	}
	typeValid := false
	for _, t := range validSourceTypes {
		if strings.ToLower(cfg.Type) == t {
			typeValid = true
			break
		}
	}
	if !typeValid {
		return 0, fmt.Errorf("%w: %s (must be one of: %s)", ErrUnknownSourceType, cfg.Type, strings.Join(validSourceTypes, ", "))
	}

	slot, err := oracle.ParseSlot(cfg.Slot)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, cfg.Slot)
	}
	return slot, nil
}

func validateAssetConfig(cfg *AssetConfig) error {
	if err := oracle.ValidateAsset(cfg.Asset); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	if len(cfg.Name) > oracle.MaxNameLength {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidAsset, oracle.MaxNameLength)
	}
	if _, err := oracle.SlotA.ParseSourceID(cfg.SourceA); err != nil {
		return fmt.Errorf("source_a: %w", err)
	}
	if _, err := oracle.SlotB.ParseSourceID(cfg.SourceB); err != nil {
		return fmt.Errorf("source_b: %w", err)
	}
	if p := cfg.Priorities; p != nil && !priority.ValidateRaw(p.A, p.B) {
		return fmt.Errorf("%w: a=%d b=%d", ErrInvalidPriorities, p.A, p.B)
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	formatValid := strings.ToLower(cfg.Format) == "json" || strings.ToLower(cfg.Format) == "text"
	if !formatValid {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
