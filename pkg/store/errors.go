// Package store persists asset price records.
package store

import "errors"

var (
	// ErrRecordNotFound indicates that no record exists for the asset.
	ErrRecordNotFound = errors.New("price record not found")
	// ErrRecordExists indicates that a record for the asset was already created.
	ErrRecordExists = errors.New("price record already exists")
	// ErrImmutableAsset indicates an update that tried to change the asset key.
	ErrImmutableAsset = errors.New("asset key is immutable")
	// ErrStoreClosed indicates use of a closed store.
	ErrStoreClosed = errors.New("store is closed")
	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)
