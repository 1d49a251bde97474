// Package fixedpoint converts between decimal prices and their integer encodings.
//
// Two encodings are supported. The compact form is an unsigned 128-bit integer holding
// the value scaled by 10^18 (a "wad"), used for persisted prices. The subunit form is an
// integer count of the native token's smallest unit, 10^9 per whole token.
//
// All arithmetic is base-10 via shopspring/decimal. Both scale factors are powers of ten,
// so scaling in either direction is exact.
package fixedpoint

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// WadDecimals is the number of fractional digits carried by the compact form.
	WadDecimals = 18
	// SubunitDecimals is the number of fractional digits in one native token.
	SubunitDecimals = 9
	// SubunitsPerUnit is the number of smallest native token units per whole token.
	SubunitsPerUnit uint64 = 1_000_000_000
	// compactBits is the width of the storage integer.
	compactBits = 128
)

var (
	// Wad is 10^18 as a decimal.
	Wad = decimal.New(1, WadDecimals)

	maxCompact = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), compactBits), big.NewInt(1))
)

// Compact is an unsigned 128-bit integer stored big-endian. The zero value is 0.
type Compact [16]byte

// MaxCompact returns the largest representable compact value, 2^128-1.
func MaxCompact() Compact {
	var c Compact
	for i := range c {
		c[i] = 0xff
	}
	return c
}

// CompactFromUint64 builds a compact value from a uint64.
func CompactFromUint64(v uint64) Compact {
	var c Compact
	binary.BigEndian.PutUint64(c[8:], v)
	return c
}

// CompactFromBigInt builds a compact value, failing if v is negative or wider than 128 bits.
func CompactFromBigInt(v *big.Int) (Compact, error) {
	var c Compact
	if v.Sign() < 0 {
		return c, fmt.Errorf("%w: %s", ErrNegative, v.String())
	}
	if v.Cmp(maxCompact) > 0 {
		return c, fmt.Errorf("%w: %s exceeds 2^128-1", ErrOverflow, v.String())
	}
	v.FillBytes(c[:])
	return c, nil
}

// ParseCompact parses a base-10 integer string into a compact value.
func ParseCompact(s string) (Compact, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Compact{}, fmt.Errorf("%w: %q", ErrInvalidCompact, s)
	}
	return CompactFromBigInt(v)
}

// BigInt returns the value as a new big.Int.
func (c Compact) BigInt() *big.Int {
	return new(big.Int).SetBytes(c[:])
}

// IsZero reports whether the value is 0.
func (c Compact) IsZero() bool {
	return c == Compact{}
}

// String returns the base-10 integer representation.
func (c Compact) String() string {
	return c.BigInt().String()
}

// Decimal returns the human-scale value, equivalent to FromCompact(c).
func (c Compact) Decimal() decimal.Decimal {
	return FromCompact(c)
}

// MarshalText implements encoding.TextMarshaler.
func (c Compact) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compact) UnmarshalText(text []byte) error {
	parsed, err := ParseCompact(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ToCompact scales value by 10^18 and truncates toward zero.
// Digits beyond the 18th fractional place are dropped.
func ToCompact(value decimal.Decimal) (Compact, error) {
	if value.IsNegative() {
		return Compact{}, fmt.Errorf("%w: %s", ErrNegative, value.String())
	}
	return CompactFromBigInt(value.Mul(Wad).BigInt())
}

// FromCompact divides the stored integer by 10^18.
func FromCompact(stored Compact) decimal.Decimal {
	return decimal.NewFromBigInt(stored.BigInt(), -WadDecimals)
}

// FromSubunitOffset converts a quantity of native token subunits into whole tokens.
func FromSubunitOffset(subunits uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(subunits), -SubunitDecimals)
}

// ToSubunits converts whole tokens into subunits, truncating toward zero.
func ToSubunits(value decimal.Decimal) (uint64, error) {
	if value.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrNegative, value.String())
	}
	scaled := value.Shift(SubunitDecimals).BigInt()
	if !scaled.IsUint64() {
		return 0, fmt.Errorf("%w: %s subunits", ErrOverflow, scaled.String())
	}
	return scaled.Uint64(), nil
}

// FromMantissaExponent decodes a price published as mantissa * 10^exponent.
// Feeds report fractional prices with a negative exponent, e.g. (14288000000, -8) is 142.88.
func FromMantissaExponent(mantissa int64, exponent int32) decimal.Decimal {
	return decimal.New(mantissa, exponent)
}

// FromScaledInt decodes an integer carrying the given number of fractional digits.
func FromScaledInt(v *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(v, -decimals)
}
