// Package priority models source priorities and rank-ordered selection.
package priority

import "errors"

var (
	// ErrRankOutOfRange indicates an enabled rank above MaxRank.
	ErrRankOutOfRange = errors.New("priority rank out of range")
	// ErrInvalidPriority indicates a priority string that could not be parsed.
	ErrInvalidPriority = errors.New("invalid priority")
)
