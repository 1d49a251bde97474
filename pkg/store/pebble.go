package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/StrathCole/oracle-priority/pkg/oracle"
)

// recordPrefix namespaces price records inside the key space.
var recordPrefix = []byte("rec/")

// Pebble stores msgpack-encoded records in a pebble database keyed by the derived
// storage key. Writes are serialized by a mutex so Update is an atomic read-modify-write.
type Pebble struct {
	mu sync.Mutex
	db *pebble.DB
}

var _ Store = (*Pebble)(nil)

// OpenPebble opens or creates a pebble database at path.
func OpenPebble(path string) (*Pebble, error) {
	if path == "" {
		return nil, fmt.Errorf("pebble: empty path")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", path, err)
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open PebbleDB at %s: %w", path, err)
	}
	return &Pebble{db: db}, nil
}

func recordKey(asset string) []byte {
	key := oracle.DeriveKey(asset)
	out := make([]byte, 0, len(recordPrefix)+len(key))
	out = append(out, recordPrefix...)
	return append(out, key[:]...)
}

func (p *Pebble) read(key []byte) (*oracle.AssetPriceRecord, error) {
	val, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	defer closer.Close()

	return oracle.UnmarshalRecord(val)
}

func (p *Pebble) write(key []byte, rec *oracle.AssetPriceRecord) error {
	data, err := oracle.MarshalRecord(rec)
	if err != nil {
		return err
	}
	return p.db.Set(key, data, pebble.Sync)
}

func (p *Pebble) Create(_ context.Context, rec *oracle.AssetPriceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return ErrStoreClosed
	}

	key := recordKey(rec.Asset)
	if _, err := p.read(key); err == nil {
		return ErrRecordExists
	} else if !errors.Is(err, ErrRecordNotFound) {
		return err
	}
	return p.write(key, rec)
}

func (p *Pebble) Get(_ context.Context, asset string) (*oracle.AssetPriceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil, ErrStoreClosed
	}
	return p.read(recordKey(asset))
}

func (p *Pebble) Update(_ context.Context, asset string, fn MutateFunc) (*oracle.AssetPriceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil, ErrStoreClosed
	}

	key := recordKey(asset)
	current, err := p.read(key)
	if err != nil {
		return nil, err
	}
	next, err := apply(current, fn)
	if err != nil {
		return nil, err
	}
	if err := p.write(key, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (p *Pebble) List(_ context.Context) ([]*oracle.AssetPriceRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil, ErrStoreClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: recordPrefix,
		UpperBound: prefixUpperBound(recordPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*oracle.AssetPriceRecord
	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := oracle.UnmarshalRecord(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("key %x: %w", iter.Key(), err)
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sortByAsset(out)
	return out, nil
}

func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
