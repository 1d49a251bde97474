// Package config provides configuration loading and validation for oracle-priority.
package config

import "errors"

var (
	// ErrInvalidStoreBackend indicates an unknown store backend.
	ErrInvalidStoreBackend = errors.New("invalid store backend")
	// ErrStorePathRequired indicates a persistent backend without a path.
	ErrStorePathRequired = errors.New("store path is required")
	// ErrInvalidCacheSize indicates a negative cache size.
	ErrInvalidCacheSize = errors.New("cache_size must be >= 0")
	// ErrInvalidDuration indicates a negative duration.
	ErrInvalidDuration = errors.New("duration must be >= 0")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrUnknownSourceType indicates that the source type is unknown.
	ErrUnknownSourceType = errors.New("unknown source type")
	// ErrInvalidSlot indicates a slot other than a or b.
	ErrInvalidSlot = errors.New("invalid slot")
	// ErrDuplicateSlot indicates two enabled sources bound to the same slot.
	ErrDuplicateSlot = errors.New("slot already has an enabled source")
	// ErrInvalidAsset indicates a malformed bootstrap asset.
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrDuplicateAsset indicates the same asset listed twice.
	ErrDuplicateAsset = errors.New("duplicate asset")
	// ErrInvalidPriorities indicates a bootstrap priority pair that fails validation.
	ErrInvalidPriorities = errors.New("invalid priorities")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
