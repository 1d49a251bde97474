package oracle

import (
	"crypto/sha512"
	"fmt"
)

const (
	// MaxAssetLength bounds the asset key.
	MaxAssetLength = 32
	// MaxNameLength bounds the display name.
	MaxNameLength = 64
	// KeyDiscriminator tags storage keys of price records.
	KeyDiscriminator = "Oracle"
)

// StorageKey is the derived address of an asset's record.
type StorageKey [32]byte

// ValidateAsset checks that an asset key is 1..32 characters of [A-Za-z0-9_.-]
// starting with a letter or digit.
func ValidateAsset(asset string) error {
	if asset == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAsset)
	}
	if len(asset) > MaxAssetLength {
		return fmt.Errorf("%w: %q longer than %d", ErrInvalidAsset, asset, MaxAssetLength)
	}
	for i := 0; i < len(asset); i++ {
		c := asset[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case i > 0 && (c == '_' || c == '.' || c == '-'):
		default:
			return fmt.Errorf("%w: %q", ErrInvalidAsset, asset)
		}
	}
	return nil
}

// DeriveKey returns the storage key of an asset's record: the first 32 bytes of
// SHA-512 over the discriminator tag followed by the asset key.
func DeriveKey(asset string) StorageKey {
	h := sha512.New()
	h.Write([]byte(KeyDiscriminator))
	h.Write([]byte(asset))
	var key StorageKey
	copy(key[:], h.Sum(nil))
	return key
}
