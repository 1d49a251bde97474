// Package store persists asset price records.
//
// Every backend offers atomic read-modify-write through Update: the callback works on a
// private copy and its changes are written only when it returns nil. Records are
// addressed by the key derived from the asset name.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/StrathCole/oracle-priority/pkg/logging"
	"github.com/StrathCole/oracle-priority/pkg/oracle"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
)

// MutateFunc modifies a record in place. Returning an error aborts the update.
type MutateFunc func(rec *oracle.AssetPriceRecord) error

// Store is the persistence substrate for asset price records.
type Store interface {
	// Create stores a new record. It fails with ErrRecordExists if the asset is taken.
	Create(ctx context.Context, rec *oracle.AssetPriceRecord) error

	// Get returns a copy of the record for asset.
	Get(ctx context.Context, asset string) (*oracle.AssetPriceRecord, error)

	// Update applies fn to a copy of the record and persists the result if fn succeeds.
	// The returned record is the stored state after the call.
	Update(ctx context.Context, asset string, fn MutateFunc) (*oracle.AssetPriceRecord, error)

	// List returns every record ordered by asset name.
	List(ctx context.Context) ([]*oracle.AssetPriceRecord, error)

	// Close releases the backend.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Path      string
	CacheSize int
}

// Open creates the configured backend, wrapped in a read cache when CacheSize > 0.
func Open(opts Options, logger *logging.Logger) (Store, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	var (
		s   Store
		err error
	)
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		s = NewMemory()
	case BackendPebble:
		s, err = OpenPebble(opts.Path)
	case BackendSQLite:
		s, err = OpenSQLite(opts.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Record store opened", "backend", opts.Backend, "path", opts.Path, "cache_size", opts.CacheSize)

	if opts.CacheSize > 0 {
		return NewCached(s, opts.CacheSize)
	}
	return s, nil
}

// apply runs fn on a copy of current and returns the copy when fn succeeds.
func apply(current *oracle.AssetPriceRecord, fn MutateFunc) (*oracle.AssetPriceRecord, error) {
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.Asset != current.Asset {
		return nil, fmt.Errorf("%w: asset %s renamed to %s", ErrImmutableAsset, current.Asset, next.Asset)
	}
	return next, nil
}

func sortByAsset(recs []*oracle.AssetPriceRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Asset < recs[j].Asset })
}
