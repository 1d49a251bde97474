// Package oracle holds the per-asset price record and its lifecycle operations.
package oracle

import (
	"errors"

	"github.com/StrathCole/oracle-priority/pkg/fixedpoint"
)

var (
	// ErrInvalidPriorities indicates a priority configuration that would leave no source
	// enabled, use a rank outside [0, 2], or give two sources the same rank.
	ErrInvalidPriorities = errors.New("invalid oracle priorities configuration")
	// ErrNoPriceAvailable indicates that no enabled source produced a reading.
	ErrNoPriceAvailable = errors.New("no price available from configured oracles")
	// ErrOverflow indicates that the selected price does not fit the compact encoding.
	ErrOverflow = fixedpoint.ErrOverflow
	// ErrInvalidAsset indicates a malformed asset key.
	ErrInvalidAsset = errors.New("invalid asset key")
	// ErrNameTooLong indicates a display name longer than MaxNameLength.
	ErrNameTooLong = errors.New("asset name too long")
	// ErrInvalidSlot indicates an unknown source slot.
	ErrInvalidSlot = errors.New("invalid source slot")
	// ErrInvalidSourceID indicates a source identifier that could not be decoded.
	ErrInvalidSourceID = errors.New("invalid source identifier")
	// ErrCorruptRecord indicates a stored record that failed to decode.
	ErrCorruptRecord = errors.New("corrupt price record")
)
