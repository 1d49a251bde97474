package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/oracle-priority/pkg/oracle"
	"github.com/StrathCole/oracle-priority/pkg/priority"
	"github.com/StrathCole/oracle-priority/pkg/server/sources"
	"github.com/StrathCole/oracle-priority/pkg/store"
)

type mockReader struct {
	mock.Mock
	name string
}

func (m *mockReader) Read(ctx context.Context, id oracle.SourceID) (sources.Reading, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(sources.Reading), args.Error(1)
}

func (m *mockReader) Name() string { return m.name }
func (m *mockReader) Type() sources.SourceType { return sources.SourceType(m.name) }
func (m *mockReader) IsHealthy() bool { return true }
func (m *mockReader) LastRead() time.Time { return time.Time{} }

var errReadFailed = errors.New("read failed")

type fixture struct {
	svc   *Service
	store store.Store
	a, b  *mockReader
	idA   oracle.SourceID
	idB   oracle.SourceID
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		a:     &mockReader{name: "pyth"},
		b:     &mockReader{name: "switchboard"},
	}
	f.idA[0] = 0xaa
	f.idB[0] = 0xbb
	now := time.Unix(1_700_000_000, 0)
	f.clock = &now

	f.svc = New(f.store,
		WithReader(oracle.SlotA, f.a),
		WithReader(oracle.SlotB, f.b),
		WithClock(func() time.Time { return *f.clock }),
		WithReadTimeout(time.Second),
	)

	ctx := context.Background()
	_, err := f.svc.Initialize(ctx, "SOL", "Solana")
	require.NoError(t, err)
	_, err = f.svc.UpdateSources(ctx, "SOL", f.idA, f.idB)
	require.NoError(t, err)
	return f
}

func (f *fixture) priorities(t *testing.T, a, b int8) {
	t.Helper()
	_, err := f.svc.UpdateRawPriorities(context.Background(), "SOL", a, b)
	require.NoError(t, err)
}

func reading(price string) sources.Reading {
	return sources.Reading{Price: decimal.RequireFromString(price)}
}

func TestResolve_LowerRankWins(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, 1, 0)
	f.a.On("Read", mock.Anything, f.idA).Return(reading("101"), nil)
	f.b.On("Read", mock.Anything, f.idB).Return(reading("99"), nil)

	res, err := f.svc.Resolve(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, oracle.SlotB, res.Slot)

	rec, err := f.svc.Get(context.Background(), "SOL")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(99).Equal(rec.Price()))
	assert.Equal(t, uint64(f.clock.Unix()), rec.LastUpdate)

	f.a.AssertExpectations(t)
	f.b.AssertExpectations(t)
}

func TestResolve_FallbackOnReadFailure(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, 0, 1)
	f.a.On("Read", mock.Anything, f.idA).Return(sources.Reading{}, errReadFailed)
	f.b.On("Read", mock.Anything, f.idB).Return(reading("42.5"), nil)

	res, err := f.svc.Resolve(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, oracle.SlotB, res.Slot)
	assert.Equal(t, priority.Rank(1), res.Rank)
	assert.True(t, decimal.RequireFromString("42.5").Equal(res.Price))
}

func TestResolve_TotalFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, 0, 1)
	f.a.On("Read", mock.Anything, f.idA).Return(reading("10"), nil).Once()
	f.b.On("Read", mock.Anything, f.idB).Return(sources.Reading{}, errReadFailed)

	_, err := f.svc.Resolve(context.Background(), "SOL")
	require.NoError(t, err)
	before, err := f.svc.Get(context.Background(), "SOL")
	require.NoError(t, err)

	f.a.On("Read", mock.Anything, f.idA).Return(sources.Reading{}, errReadFailed)
	*f.clock = f.clock.Add(time.Minute)

	_, err = f.svc.Resolve(context.Background(), "SOL")
	require.ErrorIs(t, err, oracle.ErrNoPriceAvailable)

	after, err := f.svc.Get(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, before.RecentPrice, after.RecentPrice)
	assert.Equal(t, before.LastUpdate, after.LastUpdate)
}

func TestResolve_DisabledSlotIsNotRead(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, -1, 0)
	f.b.On("Read", mock.Anything, f.idB).Return(reading("5"), nil)

	_, err := f.svc.Resolve(context.Background(), "SOL")
	require.NoError(t, err)
	f.a.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
}

func TestResolve_RefreshUpdatesTimestampOnly(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, 0, -1)
	f.a.On("Read", mock.Anything, f.idA).Return(reading("3.5"), nil)

	first, err := f.svc.Resolve(context.Background(), "SOL")
	require.NoError(t, err)

	*f.clock = f.clock.Add(30 * time.Second)
	second, err := f.svc.Resolve(context.Background(), "SOL")
	require.NoError(t, err)

	assert.Equal(t, first.Compact, second.Compact)
	assert.Equal(t, first.Timestamp+30, second.Timestamp)
}

func TestResolve_OverflowKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, 0, -1)
	f.a.On("Read", mock.Anything, f.idA).Return(reading("1e30"), nil)

	before, err := f.svc.Get(context.Background(), "SOL")
	require.NoError(t, err)

	_, err = f.svc.Resolve(context.Background(), "SOL")
	require.ErrorIs(t, err, oracle.ErrOverflow)

	after, err := f.svc.Get(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResolve_UnknownAsset(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Resolve(context.Background(), "BTC")
	require.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestResolve_MissingReaderIsNoCandidate(t *testing.T) {
	st := store.NewMemory()
	svc := New(st)
	ctx := context.Background()

	_, err := svc.Initialize(ctx, "SOL", "")
	require.NoError(t, err)
	_, err = svc.UpdateRawPriorities(ctx, "SOL", 0, -1)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "SOL")
	require.ErrorIs(t, err, oracle.ErrNoPriceAvailable)
}

func TestUpdatePriorities_Invalid(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, 0, 1)
	ctx := context.Background()

	for _, p := range [][2]int8{{-1, -1}, {2, 2}, {3, -1}} {
		_, err := f.svc.UpdateRawPriorities(ctx, "SOL", p[0], p[1])
		require.ErrorIs(t, err, oracle.ErrInvalidPriorities)
	}

	rec, err := f.svc.Get(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, [oracle.NumSlots]priority.Priority{priority.MustEnabled(0), priority.MustEnabled(1)}, rec.Priorities())
}

func TestInitialize_Twice(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Initialize(context.Background(), "SOL", "")
	require.ErrorIs(t, err, store.ErrRecordExists)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, 0, -1)
	f.a.On("Read", mock.Anything, f.idA).Return(reading("7"), nil)

	ch := make(chan oracle.Resolution, 1)
	f.svc.Subscribe(ch)

	_, err := f.svc.Resolve(context.Background(), "SOL")
	require.NoError(t, err)

	select {
	case res := <-ch:
		assert.Equal(t, "SOL", res.Asset)
		assert.True(t, decimal.NewFromInt(7).Equal(res.Price))
	default:
		t.Fatal("expected a published resolution")
	}

	f.svc.Unsubscribe(ch)
	_, err = f.svc.Resolve(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Empty(t, ch)
}

func TestResolveAll(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, 0, -1)
	f.a.On("Read", mock.Anything, f.idA).Return(reading("1"), nil)

	_, err := f.svc.Initialize(context.Background(), "BTC", "")
	require.NoError(t, err)

	failed, err := f.svc.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

// slowReader blocks until released so both reads are in flight together.
type slowReader struct {
	mockReader
	started *sync.WaitGroup
	release chan struct{}
	price   string
}

func (s *slowReader) Read(ctx context.Context, _ oracle.SourceID) (sources.Reading, error) {
	s.started.Done()
	select {
	case <-s.release:
		return reading(s.price), nil
	case <-ctx.Done():
		return sources.Reading{}, ctx.Err()
	}
}

func TestResolve_FetchesConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})

	a := &slowReader{mockReader: mockReader{name: "a"}, started: &started, release: release, price: "1"}
	b := &slowReader{mockReader: mockReader{name: "b"}, started: &started, release: release, price: "2"}

	st := store.NewMemory()
	svc := New(st, WithReader(oracle.SlotA, a), WithReader(oracle.SlotB, b))
	ctx := context.Background()

	_, err := svc.Initialize(ctx, "SOL", "")
	require.NoError(t, err)
	var idA, idB oracle.SourceID
	idA[1], idB[1] = 1, 2
	_, err = svc.UpdateSources(ctx, "SOL", idA, idB)
	require.NoError(t, err)
	_, err = svc.UpdateRawPriorities(ctx, "SOL", 1, 0)
	require.NoError(t, err)

	go func() {
		started.Wait()
		close(release)
	}()

	res, err := svc.Resolve(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, oracle.SlotB, res.Slot)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.priorities(t, 0, -1)
	f.a.On("Read", mock.Anything, f.idA).Return(reading("1"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rec, err := f.svc.Get(context.Background(), "SOL")
		return err == nil && rec.HasPrice()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
