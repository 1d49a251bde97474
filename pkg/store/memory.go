package store

import (
	"context"
	"sync"

	"github.com/StrathCole/oracle-priority/pkg/oracle"
)

// Memory keeps records in a map. It is used by tests and by short-lived tools.
type Memory struct {
	mu      sync.RWMutex
	records map[oracle.StorageKey]*oracle.AssetPriceRecord
	closed  bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[oracle.StorageKey]*oracle.AssetPriceRecord)}
}

func (m *Memory) Create(_ context.Context, rec *oracle.AssetPriceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	key := oracle.DeriveKey(rec.Asset)
	if _, ok := m.records[key]; ok {
		return ErrRecordExists
	}
	m.records[key] = rec.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, asset string) (*oracle.AssetPriceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	rec, ok := m.records[oracle.DeriveKey(asset)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) Update(_ context.Context, asset string, fn MutateFunc) (*oracle.AssetPriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	key := oracle.DeriveKey(asset)
	current, ok := m.records[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	next, err := apply(current, fn)
	if err != nil {
		return nil, err
	}
	m.records[key] = next
	return next.Clone(), nil
}

func (m *Memory) List(_ context.Context) ([]*oracle.AssetPriceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]*oracle.AssetPriceRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	sortByAsset(out)
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
