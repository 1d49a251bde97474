package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/oracle-priority/pkg/oracle"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemory()
		},
		"pebble": func(t *testing.T) Store {
			s, err := OpenPebble(filepath.Join(t.TempDir(), "records"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "oracle.db"))
			require.NoError(t, err)
			return s
		},
		"cached-memory": func(t *testing.T) Store {
			s, err := NewCached(NewMemory(), 2)
			require.NoError(t, err)
			return s
		},
	}
}

func newRecord(t *testing.T, asset string) *oracle.AssetPriceRecord {
	t.Helper()
	rec, err := oracle.Initialize(asset, "")
	require.NoError(t, err)
	return rec
}

func TestStore_Contract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			require.NoError(t, s.Create(ctx, newRecord(t, "SOL")))
			require.NoError(t, s.Create(ctx, newRecord(t, "BTC")))
			require.ErrorIs(t, s.Create(ctx, newRecord(t, "SOL")), ErrRecordExists)

			_, err := s.Get(ctx, "ETH")
			require.ErrorIs(t, err, ErrRecordNotFound)
			_, err = s.Update(ctx, "ETH", func(*oracle.AssetPriceRecord) error { return nil })
			require.ErrorIs(t, err, ErrRecordNotFound)

			updated, err := s.Update(ctx, "SOL", func(r *oracle.AssetPriceRecord) error {
				if err := r.UpdateRawPriorities(1, 0); err != nil {
					return err
				}
				var rd oracle.Readings
				rd.Set(oracle.SlotB, decimal.RequireFromString("150.5"))
				_, err := r.Resolve(rd, time.Unix(1_700_000_000, 0))
				return err
			})
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString("150.5").Equal(updated.Price()))

			got, err := s.Get(ctx, "SOL")
			require.NoError(t, err)
			assert.Equal(t, updated, got)

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "BTC", list[0].Asset)
			assert.Equal(t, "SOL", list[1].Asset)
		})
	}
}

func TestStore_FailedUpdateWritesNothing(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			require.NoError(t, s.Create(ctx, newRecord(t, "SOL")))
			before, err := s.Get(ctx, "SOL")
			require.NoError(t, err)

			boom := errors.New("boom")
			_, err = s.Update(ctx, "SOL", func(r *oracle.AssetPriceRecord) error {
				r.LastUpdate = 99
				r.Name = "changed"
				return boom
			})
			require.ErrorIs(t, err, boom)

			_, err = s.Update(ctx, "SOL", func(r *oracle.AssetPriceRecord) error {
				return r.UpdateRawPriorities(-1, -1)
			})
			require.ErrorIs(t, err, oracle.ErrInvalidPriorities)

			_, err = s.Update(ctx, "SOL", func(r *oracle.AssetPriceRecord) error {
				r.Asset = "BTC"
				return nil
			})
			require.ErrorIs(t, err, ErrImmutableAsset)

			after, err := s.Get(ctx, "SOL")
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			require.NoError(t, s.Create(ctx, newRecord(t, "SOL")))
			rec, err := s.Get(ctx, "SOL")
			require.NoError(t, err)
			rec.LastUpdate = 12345

			again, err := s.Get(ctx, "SOL")
			require.NoError(t, err)
			assert.Zero(t, again.LastUpdate)
		})
	}
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			require.NoError(t, s.Create(ctx, newRecord(t, "SOL")))

			const workers = 8
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Update(ctx, "SOL", func(r *oracle.AssetPriceRecord) error {
						r.LastUpdate++
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			rec, err := s.Get(ctx, "SOL")
			require.NoError(t, err)
			assert.Equal(t, uint64(workers), rec.LastUpdate)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Close())
	_, err := s.Get(context.Background(), "SOL")
	require.ErrorIs(t, err, ErrStoreClosed)
}

func TestPebble_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "records")

	s, err := OpenPebble(dir)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, newRecord(t, "SOL")))
	require.NoError(t, s.Close())

	s, err = OpenPebble(dir)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Get(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, "SOL", rec.Asset)
}

func TestCached_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	c, err := NewCached(backend, 1)
	require.NoError(t, err)

	require.NoError(t, c.Create(ctx, newRecord(t, "SOL")))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Create(ctx, newRecord(t, "BTC")))
	assert.Equal(t, 1, c.Len())

	rec, err := c.Get(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, "SOL", rec.Asset)
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{Backend: "memory", CacheSize: 4}, nil)
	require.NoError(t, err)
	_, ok := s.(*Cached)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	s, err = Open(Options{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	_, ok = s.(*SQLite)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	_, err = Open(Options{Backend: "redis"}, nil)
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("rec0"), prefixUpperBound([]byte("rec/")))
	assert.Equal(t, []byte{0x02}, prefixUpperBound([]byte{0x01, 0xff}))
	assert.Nil(t, prefixUpperBound([]byte{0xff}))
}

// pausingStore holds the first Get after it has read the backend until released.
type pausingStore struct {
	Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingStore) Get(ctx context.Context, asset string) (*oracle.AssetPriceRecord, error) {
	rec, err := p.Store.Get(ctx, asset)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return rec, err
}

func TestCached_FillDoesNotOverwriteConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	backend := &pausingStore{Store: NewMemory(), read: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, backend.Create(ctx, newRecord(t, "SOL")))

	c, err := NewCached(backend, 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := c.Get(ctx, "SOL")
		assert.NoError(t, err)
	}()

	<-backend.read
	go func() {
		defer wg.Done()
		_, err := c.Update(ctx, "SOL", func(rec *oracle.AssetPriceRecord) error {
			return rec.UpdateRawPriorities(0, -1)
		})
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	stored, err := backend.Store.Get(ctx, "SOL")
	require.NoError(t, err)
	cached, err := c.Get(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, stored.Sources, cached.Sources)
	assert.True(t, cached.Sources[oracle.SlotA].Priority.IsEnabled())
}
