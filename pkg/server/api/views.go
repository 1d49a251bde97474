package api

import (
	"time"

	"github.com/StrathCole/oracle-priority/pkg/oracle"
)

// SourceView is the JSON form of one slot.
type SourceView struct {
	Slot     string `json:"slot"`
	ID       string `json:"id"`
	Priority int8   `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// AssetView is the JSON form of a record.
type AssetView struct {
	Asset          string       `json:"asset"`
	Name           string       `json:"name"`
	Sources        []SourceView `json:"sources"`
	Price          string       `json:"price"`
	PriceCompact   string       `json:"price_compact"`
	LastUpdate     uint64       `json:"last_update"`
	LastUpdateTime string       `json:"last_update_time,omitempty"`
}

// NewAssetView renders rec.
func NewAssetView(rec *oracle.AssetPriceRecord) AssetView {
	v := AssetView{
		Asset:        rec.Asset,
		Name:         rec.Name,
		Sources:      make([]SourceView, 0, oracle.NumSlots),
		Price:        rec.Price().String(),
		PriceCompact: rec.RecentPrice.String(),
		LastUpdate:   rec.LastUpdate,
	}
	if rec.HasPrice() {
		v.LastUpdateTime = rec.LastUpdateTime().Format(time.RFC3339)
	}
	for _, slot := range oracle.Slots {
		src := rec.Source(slot)
		v.Sources = append(v.Sources, SourceView{
			Slot:     slot.String(),
			ID:       slot.FormatSourceID(src.ID),
			Priority: src.Priority.Raw(),
			Enabled:  src.Priority.IsEnabled(),
		})
	}
	return v
}

// ResolutionView is the JSON form of a resolution.
type ResolutionView struct {
	Asset        string `json:"asset"`
	Slot         string `json:"slot"`
	Rank         int    `json:"rank"`
	Price        string `json:"price"`
	PriceCompact string `json:"price_compact"`
	Timestamp    uint64 `json:"timestamp"`
}

// NewResolutionView renders res.
func NewResolutionView(res oracle.Resolution) ResolutionView {
	return ResolutionView{
		Asset:        res.Asset,
		Slot:         res.Slot.String(),
		Rank:         int(res.Rank),
		Price:        res.Price.String(),
		PriceCompact: res.Compact.String(),
		Timestamp:    res.Timestamp,
	}
}
