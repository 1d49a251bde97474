package oracle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/StrathCole/oracle-priority/pkg/fixedpoint"
	"github.com/StrathCole/oracle-priority/pkg/priority"
)

// Readings holds at most one reading per slot for a single resolution.
// A nil entry means the slot produced no reading.
type Readings [NumSlots]*decimal.Decimal

// Set stores v as the reading of slot s.
func (rd *Readings) Set(s Slot, v decimal.Decimal) {
	rd[s] = &v
}

// Resolution describes the outcome of a successful resolve.
type Resolution struct {
	Asset     string
	Slot      Slot
	Rank      priority.Rank
	Price     decimal.Decimal
	Compact   fixedpoint.Compact
	Timestamp uint64
}

// UpdatePriorities validates and then replaces both slot priorities.
// On failure the record is left untouched.
func (r *AssetPriceRecord) UpdatePriorities(a, b priority.Priority) error {
	if !priority.Validate(a, b) {
		return fmt.Errorf("%w: a=%s b=%s", ErrInvalidPriorities, a, b)
	}
	r.Sources[SlotA].Priority = a
	r.Sources[SlotB].Priority = b
	return nil
}

// UpdateRawPriorities is UpdatePriorities over the signed wire encoding.
func (r *AssetPriceRecord) UpdateRawPriorities(a, b int8) error {
	if !priority.ValidateRaw(a, b) {
		return fmt.Errorf("%w: a=%d b=%d", ErrInvalidPriorities, a, b)
	}
	pa, _ := priority.FromRaw(a)
	pb, _ := priority.FromRaw(b)
	return r.UpdatePriorities(pa, pb)
}

// UpdateSources replaces both slot identifiers. Priorities are not touched.
func (r *AssetPriceRecord) UpdateSources(a, b SourceID) {
	r.Sources[SlotA].ID = a
	r.Sources[SlotB].ID = b
}

// Select picks the reading of the enabled slot with the lowest rank. It does not
// modify the record. Selection depends only on configured ranks.
func (r *AssetPriceRecord) Select(readings Readings) (Slot, priority.Rank, decimal.Decimal, error) {
	type candidate struct {
		slot  Slot
		value decimal.Decimal
	}

	var table priority.Table[candidate]
	for _, s := range Slots {
		if readings[s] == nil {
			continue
		}
		table.Place(r.Sources[s].Priority, candidate{slot: s, value: *readings[s]})
	}

	c, rank, ok := table.First()
	if !ok {
		return 0, 0, decimal.Zero, fmt.Errorf("%w: %s", ErrNoPriceAvailable, r.Asset)
	}
	return c.slot, rank, c.value, nil
}

// Resolve selects a reading, converts it to compact form and stores it together with
// now as a single update. On any error price and timestamp are unchanged.
func (r *AssetPriceRecord) Resolve(readings Readings, now time.Time) (Resolution, error) {
	slot, rank, value, err := r.Select(readings)
	if err != nil {
		return Resolution{}, err
	}

	compact, err := fixedpoint.ToCompact(value)
	if err != nil {
		return Resolution{}, fmt.Errorf("asset %s slot %s: %w", r.Asset, slot, err)
	}

	ts := now.Unix()
	if ts < 0 {
		ts = 0
	}

	r.RecentPrice = compact
	r.LastUpdate = uint64(ts)

	return Resolution{
		Asset:     r.Asset,
		Slot:      slot,
		Rank:      rank,
		Price:     value,
		Compact:   compact,
		Timestamp: r.LastUpdate,
	}, nil
}
