// Package fixedpoint converts between decimal prices and their integer encodings.
package fixedpoint

import "errors"

var (
	// ErrOverflow indicates that a scaled value does not fit the storage integer.
	ErrOverflow = errors.New("fixed-point overflow")
	// ErrNegative indicates a negative value where only non-negative prices are allowed.
	ErrNegative = errors.New("negative value")
	// ErrInvalidCompact indicates a compact value that could not be parsed.
	ErrInvalidCompact = errors.New("invalid compact value")
)
