package oracle

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Slot identifies one of the two price source positions on a record.
type Slot int

const (
	// SlotA holds a feed addressed by a raw 32-byte feed identifier.
	SlotA Slot = iota
	// SlotB holds a feed addressed by a 32-byte account address.
	SlotB
)

// NumSlots is the number of source slots per record.
const NumSlots = 2

// Slots lists every slot in declaration order.
var Slots = [NumSlots]Slot{SlotA, SlotB}

// SourceID is an opaque 32-byte source identifier.
type SourceID [32]byte

// IsZero reports whether the identifier has not been set.
func (id SourceID) IsZero() bool {
	return id == SourceID{}
}

// Hex returns the lowercase hex encoding without prefix.
func (id SourceID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Base58 returns the base58 encoding used for account addresses.
func (id SourceID) Base58() string {
	return base58.Encode(id[:])
}

// String returns the slot-independent hex form.
func (id SourceID) String() string {
	return "0x" + id.Hex()
}

func (s Slot) String() string {
	switch s {
	case SlotA:
		return "a"
	case SlotB:
		return "b"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	return s >= SlotA && s < NumSlots
}

// ParseSlot accepts "a" or "b" in either case.
func ParseSlot(s string) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return SlotA, nil
	case "b":
		return SlotB, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, s)
	}
}

// FormatSourceID renders id in the slot's native encoding: hex with 0x prefix for
// SlotA, base58 for SlotB.
func (s Slot) FormatSourceID(id SourceID) string {
	if s == SlotB {
		return id.Base58()
	}
	return id.String()
}

// ParseSourceID decodes a source identifier in the slot's native encoding.
// An empty string decodes to the zero identifier.
func (s Slot) ParseSourceID(str string) (SourceID, error) {
	var id SourceID
	str = strings.TrimSpace(str)
	if str == "" {
		return id, nil
	}

	var raw []byte
	var err error
	switch s {
	case SlotA:
		raw, err = hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X"))
	case SlotB:
		raw, err = base58.Decode(str)
	default:
		return id, fmt.Errorf("%w: %s", ErrInvalidSlot, s)
	}
	if err != nil {
		return id, fmt.Errorf("%w: slot %s: %v", ErrInvalidSourceID, s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("%w: slot %s: got %d bytes, want %d", ErrInvalidSourceID, s, len(raw), len(id))
	}
	copy(id[:], raw)
	return id, nil
}
