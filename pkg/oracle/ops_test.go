package oracle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/oracle-priority/pkg/fixedpoint"
	"github.com/StrathCole/oracle-priority/pkg/priority"
)

func newRecord(t *testing.T, a, b int8) *AssetPriceRecord {
	t.Helper()
	r, err := Initialize("SOL", "")
	require.NoError(t, err)
	require.NoError(t, r.UpdateRawPriorities(a, b))
	return r
}

func readings(a, b string) Readings {
	var rd Readings
	if a != "" {
		rd.Set(SlotA, decimal.RequireFromString(a))
	}
	if b != "" {
		rd.Set(SlotB, decimal.RequireFromString(b))
	}
	return rd
}

func TestInitialize(t *testing.T) {
	r, err := Initialize("USDC", "")
	require.NoError(t, err)

	assert.Equal(t, "USDC", r.Asset)
	assert.Equal(t, "USDC", r.Name)
	for _, s := range Slots {
		assert.False(t, r.Source(s).Priority.IsEnabled())
		assert.True(t, r.Source(s).ID.IsZero())
	}
	assert.True(t, r.RecentPrice.IsZero())
	assert.Zero(t, r.LastUpdate)
	assert.False(t, r.HasPrice())
	assert.True(t, r.LastUpdateTime().IsZero())
}

func TestInitialize_Invalid(t *testing.T) {
	_, err := Initialize("", "")
	require.ErrorIs(t, err, ErrInvalidAsset)

	_, err = Initialize("bad/asset", "")
	require.ErrorIs(t, err, ErrInvalidAsset)

	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = Initialize("SOL", string(long))
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestUpdatePriorities_RejectsAndKeepsState(t *testing.T) {
	r := newRecord(t, 0, 1)
	before := *r

	tests := []struct {
		name string
		a, b int8
	}{
		{"both disabled", -1, -1},
		{"collision", 0, 0},
		{"out of range", 3, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.UpdateRawPriorities(tt.a, tt.b)
			require.ErrorIs(t, err, ErrInvalidPriorities)
			assert.Equal(t, before, *r)
		})
	}

	err := r.UpdatePriorities(priority.Disabled(), priority.Disabled())
	require.ErrorIs(t, err, ErrInvalidPriorities)
	assert.Equal(t, before, *r)
}

func TestUpdatePriorities_DoesNotTouchSources(t *testing.T) {
	r := newRecord(t, 0, 1)
	var idA, idB SourceID
	idA[0], idB[31] = 1, 2
	r.UpdateSources(idA, idB)

	require.NoError(t, r.UpdateRawPriorities(-1, 2))
	assert.Equal(t, idA, r.Source(SlotA).ID)
	assert.Equal(t, idB, r.Source(SlotB).ID)
	assert.Equal(t, [NumSlots]priority.Priority{priority.Disabled(), priority.MustEnabled(2)}, r.Priorities())
}

func TestUpdateSources_DoesNotTouchPriorities(t *testing.T) {
	r := newRecord(t, 1, 0)
	prios := r.Priorities()

	var idA SourceID
	idA[5] = 9
	r.UpdateSources(idA, SourceID{})

	assert.Equal(t, prios, r.Priorities())
	assert.Equal(t, idA, r.Source(SlotA).ID)
	assert.True(t, r.Source(SlotB).ID.IsZero())
}

func TestResolve_LowerRankWins(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := newRecord(t, 1, 0)

	res, err := r.Resolve(readings("101.5", "99.25"), now)
	require.NoError(t, err)

	assert.Equal(t, SlotB, res.Slot)
	assert.Equal(t, priority.Rank(0), res.Rank)
	assert.True(t, decimal.RequireFromString("99.25").Equal(r.Price()))
	assert.Equal(t, uint64(now.Unix()), r.LastUpdate)
}

func TestResolve_SelectionIsOrderIndependent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r1 := newRecord(t, 1, 0)
	r2 := newRecord(t, 1, 0)

	var forward, backward Readings
	forward.Set(SlotA, decimal.NewFromInt(10))
	forward.Set(SlotB, decimal.NewFromInt(20))
	backward.Set(SlotB, decimal.NewFromInt(20))
	backward.Set(SlotA, decimal.NewFromInt(10))

	res1, err := r1.Resolve(forward, now)
	require.NoError(t, err)
	res2, err := r2.Resolve(backward, now)
	require.NoError(t, err)

	assert.Equal(t, res1.Slot, res2.Slot)
	assert.Equal(t, r1.RecentPrice, r2.RecentPrice)
}

func TestResolve_Fallback(t *testing.T) {
	r := newRecord(t, 0, 1)
	res, err := r.Resolve(readings("", "42.125"), time.Unix(100, 0))
	require.NoError(t, err)

	assert.Equal(t, SlotB, res.Slot)
	assert.Equal(t, priority.Rank(1), res.Rank)
	assert.True(t, decimal.RequireFromString("42.125").Equal(r.Price()))
}

func TestResolve_DisabledSourceIgnored(t *testing.T) {
	r := newRecord(t, -1, 2)
	res, err := r.Resolve(readings("1", "2"), time.Unix(100, 0))
	require.NoError(t, err)
	assert.Equal(t, SlotB, res.Slot)

	_, err = r.Resolve(readings("1", ""), time.Unix(200, 0))
	require.ErrorIs(t, err, ErrNoPriceAvailable)
	assert.Equal(t, uint64(100), r.LastUpdate)
}

func TestResolve_TotalFailureLeavesRecordUnchanged(t *testing.T) {
	r := newRecord(t, 0, 1)
	_, err := r.Resolve(readings("7.5", ""), time.Unix(1000, 0))
	require.NoError(t, err)

	before := *r
	_, err = r.Resolve(Readings{}, time.Unix(2000, 0))
	require.ErrorIs(t, err, ErrNoPriceAvailable)
	assert.Equal(t, before.RecentPrice, r.RecentPrice)
	assert.Equal(t, before.LastUpdate, r.LastUpdate)
	assert.Equal(t, before, *r)
}

func TestResolve_IdempotentRefresh(t *testing.T) {
	r := newRecord(t, -1, 0)
	rd := readings("", "3.14159")

	_, err := r.Resolve(rd, time.Unix(1000, 0))
	require.NoError(t, err)
	first := r.RecentPrice

	_, err = r.Resolve(rd, time.Unix(1030, 0))
	require.NoError(t, err)

	assert.Equal(t, first, r.RecentPrice)
	assert.Equal(t, uint64(1030), r.LastUpdate)
}

func TestResolve_OverflowNoPartialWrite(t *testing.T) {
	r := newRecord(t, 0, 1)
	_, err := r.Resolve(readings("5", ""), time.Unix(1000, 0))
	require.NoError(t, err)
	before := *r

	huge := fixedpoint.FromCompact(fixedpoint.MaxCompact()).Add(decimal.New(1, -18))
	var rd Readings
	rd.Set(SlotA, huge)

	_, err = r.Resolve(rd, time.Unix(2000, 0))
	require.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, before, *r)
}

func TestResolve_MaxRepresentable(t *testing.T) {
	r := newRecord(t, 0, -1)
	maxValue := fixedpoint.FromCompact(fixedpoint.MaxCompact())
	var rd Readings
	rd.Set(SlotA, maxValue)

	_, err := r.Resolve(rd, time.Unix(1, 0))
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.MaxCompact(), r.RecentPrice)
	assert.True(t, maxValue.Equal(r.Price()))
}

func TestSelect_DoesNotMutate(t *testing.T) {
	r := newRecord(t, 2, 0)
	before := *r

	slot, rank, v, err := r.Select(readings("1", "2"))
	require.NoError(t, err)
	assert.Equal(t, SlotB, slot)
	assert.Equal(t, priority.Rank(0), rank)
	assert.True(t, decimal.NewFromInt(2).Equal(v))
	assert.Equal(t, before, *r)
}

func TestRecordCodec(t *testing.T) {
	r := newRecord(t, 2, -1)
	r.Name = "Wrapped SOL"
	var idA, idB SourceID
	for i := range idA {
		idA[i] = byte(i)
		idB[i] = byte(255 - i)
	}
	r.UpdateSources(idA, idB)
	_, err := r.Resolve(readings("151.123456789", ""), time.Unix(1_700_000_123, 0))
	require.NoError(t, err)

	data, err := MarshalRecord(r)
	require.NoError(t, err)

	got, err := UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestRecordCodec_Corrupt(t *testing.T) {
	_, err := UnmarshalRecord([]byte{0xc1})
	require.ErrorIs(t, err, ErrCorruptRecord)

	r := newRecord(t, 0, 1)
	data, err := MarshalRecord(r)
	require.NoError(t, err)
	_, err = UnmarshalRecord(data[:len(data)/2])
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestDeriveKey(t *testing.T) {
	a := DeriveKey("SOL")
	b := DeriveKey("SOL")
	c := DeriveKey("USDC")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
