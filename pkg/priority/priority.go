// Package priority models source priorities and rank-ordered selection.
//
// A priority is either disabled or enabled at a rank in [0, MaxRank]; rank 0 wins.
// The rank bound lives in the type, so a Priority can always be used as a table index
// without any prior validation call.
package priority

import (
	"fmt"
	"strconv"
)

const (
	// MaxRank is the highest (least preferred) rank.
	MaxRank Rank = 2
	// NumRanks is the size of a rank-indexed table.
	NumRanks = int(MaxRank) + 1
	// RawDisabled is the conventional raw encoding of a disabled priority.
	RawDisabled int8 = -1
)

// Rank is an enabled priority level. Lower ranks are preferred.
type Rank uint8

// Priority is either Disabled or Enabled(rank). The zero value is Disabled.
type Priority struct {
	rank    Rank
	enabled bool
}

// Disabled returns the disabled priority.
func Disabled() Priority {
	return Priority{}
}

// Enabled returns an enabled priority at rank r.
func Enabled(r Rank) (Priority, error) {
	if r > MaxRank {
		return Priority{}, fmt.Errorf("%w: %d", ErrRankOutOfRange, r)
	}
	return Priority{rank: r, enabled: true}, nil
}

// MustEnabled is like Enabled but panics on an out-of-range rank. Intended for constants.
func MustEnabled(r Rank) Priority {
	p, err := Enabled(r)
	if err != nil {
		panic(err)
	}
	return p
}

// FromRaw decodes the signed wire encoding: any negative value is disabled,
// 0..MaxRank is enabled, anything larger is rejected.
func FromRaw(raw int8) (Priority, error) {
	if raw < 0 {
		return Disabled(), nil
	}
	return Enabled(Rank(raw))
}

// Raw returns the signed wire encoding, RawDisabled for a disabled priority.
func (p Priority) Raw() int8 {
	if !p.enabled {
		return RawDisabled
	}
	return int8(p.rank)
}

// IsEnabled reports whether the priority is enabled.
func (p Priority) IsEnabled() bool {
	return p.enabled
}

// Rank returns the rank and true for an enabled priority.
func (p Priority) Rank() (Rank, bool) {
	return p.rank, p.enabled
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	if !p.enabled {
		return "disabled"
	}
	return strconv.Itoa(int(p.rank))
}

// Parse reads "disabled", "-1" or a rank number.
func Parse(s string) (Priority, error) {
	if s == "disabled" || s == "off" {
		return Disabled(), nil
	}
	n, err := strconv.ParseInt(s, 10, 8)
	if err != nil {
		return Priority{}, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return FromRaw(int8(n))
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
