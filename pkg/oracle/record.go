// Package oracle holds the per-asset price record and its lifecycle operations.
//
// A record carries two source slots, each with an identifier and a priority, plus the
// last resolved price in compact form and the unix time it was resolved. Every mutating
// operation either applies all of its fields or none of them.
package oracle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/StrathCole/oracle-priority/pkg/fixedpoint"
	"github.com/StrathCole/oracle-priority/pkg/priority"
)

// SourceConfig is one slot of a record.
type SourceConfig struct {
	ID       SourceID
	Priority priority.Priority
}

// AssetPriceRecord is the authoritative priority and price state for one asset class.
type AssetPriceRecord struct {
	Asset       string
	Name        string
	Sources     [NumSlots]SourceConfig
	RecentPrice fixedpoint.Compact
	LastUpdate  uint64
}

// Initialize creates a record with both slots disabled and a zero price.
// name is a free-form display label; it defaults to the asset key.
func Initialize(asset, name string) (*AssetPriceRecord, error) {
	if err := ValidateAsset(asset); err != nil {
		return nil, err
	}
	if name == "" {
		name = asset
	}
	if len(name) > MaxNameLength {
		return nil, ErrNameTooLong
	}
	return &AssetPriceRecord{
		Asset: asset,
		Name:  name,
	}, nil
}

// Clone returns an independent copy.
func (r *AssetPriceRecord) Clone() *AssetPriceRecord {
	c := *r
	return &c
}

// Source returns the configuration of slot s.
func (r *AssetPriceRecord) Source(s Slot) SourceConfig {
	return r.Sources[s]
}

// Priorities returns the priority of every slot in slot order.
func (r *AssetPriceRecord) Priorities() [NumSlots]priority.Priority {
	var out [NumSlots]priority.Priority
	for i, src := range r.Sources {
		out[i] = src.Priority
	}
	return out
}

// Price returns the last resolved price in natural units.
func (r *AssetPriceRecord) Price() decimal.Decimal {
	return fixedpoint.FromCompact(r.RecentPrice)
}

// LastUpdateTime returns the resolution timestamp, or the zero time if never resolved.
func (r *AssetPriceRecord) LastUpdateTime() time.Time {
	if r.LastUpdate == 0 {
		return time.Time{}
	}
	return time.Unix(int64(r.LastUpdate), 0).UTC() // #nosec G115 -- unix seconds fit int64
}

// HasPrice reports whether the record has been resolved at least once.
func (r *AssetPriceRecord) HasPrice() bool {
	return r.LastUpdate != 0
}
