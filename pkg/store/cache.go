package store

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/StrathCole/oracle-priority/pkg/oracle"
)

// Cached fronts another store with an LRU of recently read records. Writes go to the
// backing store first and refresh the cache only after they succeed. Cache fills and
// writes are serialized so a fill can never install a record older than a committed write.
type Cached struct {
	mu      sync.Mutex
	backend Store
	records *lru.Cache[string, *oracle.AssetPriceRecord]
}

var _ Store = (*Cached)(nil)

// NewCached wraps backend with an LRU holding up to size records.
func NewCached(backend Store, size int) (*Cached, error) {
	records, err := lru.New[string, *oracle.AssetPriceRecord](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}
	return &Cached{backend: backend, records: records}, nil
}

func (c *Cached) Create(ctx context.Context, rec *oracle.AssetPriceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.Create(ctx, rec); err != nil {
		return err
	}
	c.records.Add(rec.Asset, rec.Clone())
	return nil
}

func (c *Cached) Get(ctx context.Context, asset string) (*oracle.AssetPriceRecord, error) {
	if rec, ok := c.records.Get(asset); ok {
		return rec.Clone(), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.records.Get(asset); ok {
		return rec.Clone(), nil
	}
	rec, err := c.backend.Get(ctx, asset)
	if err != nil {
		return nil, err
	}
	c.records.Add(asset, rec.Clone())
	return rec, nil
}

func (c *Cached) Update(ctx context.Context, asset string, fn MutateFunc) (*oracle.AssetPriceRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.backend.Update(ctx, asset, fn)
	if err != nil {
		return nil, err
	}
	c.records.Add(asset, rec.Clone())
	return rec, nil
}

// List always reads through to the backend.
func (c *Cached) List(ctx context.Context) ([]*oracle.AssetPriceRecord, error) {
	return c.backend.List(ctx)
}

func (c *Cached) Close() error {
	c.records.Purge()
	return c.backend.Close()
}

// Len returns the number of cached records.
func (c *Cached) Len() int {
	return c.records.Len()
}
