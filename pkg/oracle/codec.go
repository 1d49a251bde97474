package oracle

import (
	"fmt"

	"github.com/ugorji/go/codec"

	"github.com/StrathCole/oracle-priority/pkg/fixedpoint"
	"github.com/StrathCole/oracle-priority/pkg/priority"
)

// recordVersion is bumped whenever the persisted layout changes.
const recordVersion = 1

var msgpackHandle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.WriteExt = true
	return h
}()

// storedRecord is the persisted layout. Priorities use the signed wire encoding.
type storedRecord struct {
	Version     uint8    `codec:"v"`
	Asset       string   `codec:"asset"`
	Name        string   `codec:"name"`
	SourceA     [32]byte `codec:"src_a"`
	SourceB     [32]byte `codec:"src_b"`
	PriorityA   int8     `codec:"prio_a"`
	PriorityB   int8     `codec:"prio_b"`
	RecentPrice [16]byte `codec:"recent_price"`
	LastUpdate  uint64   `codec:"last_update"`
}

// MarshalRecord encodes a record for storage.
func MarshalRecord(r *AssetPriceRecord) ([]byte, error) {
	s := storedRecord{
		Version:     recordVersion,
		Asset:       r.Asset,
		Name:        r.Name,
		SourceA:     r.Sources[SlotA].ID,
		SourceB:     r.Sources[SlotB].ID,
		PriorityA:   r.Sources[SlotA].Priority.Raw(),
		PriorityB:   r.Sources[SlotB].Priority.Raw(),
		RecentPrice: r.RecentPrice,
		LastUpdate:  r.LastUpdate,
	}

	var out []byte
	if err := codec.NewEncoderBytes(&out, msgpackHandle).Encode(&s); err != nil {
		return nil, fmt.Errorf("encode record %s: %w", r.Asset, err)
	}
	return out, nil
}

// UnmarshalRecord decodes a stored record. Priorities are re-checked against the rank
// bound so a damaged record can never index past the selection table.
func UnmarshalRecord(data []byte) (*AssetPriceRecord, error) {
	var s storedRecord
	if err := codec.NewDecoderBytes(data, msgpackHandle).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if s.Version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptRecord, s.Version)
	}
	if err := ValidateAsset(s.Asset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	pa, err := priority.FromRaw(s.PriorityA)
	if err != nil {
		return nil, fmt.Errorf("%w: slot a: %v", ErrCorruptRecord, err)
	}
	pb, err := priority.FromRaw(s.PriorityB)
	if err != nil {
		return nil, fmt.Errorf("%w: slot b: %v", ErrCorruptRecord, err)
	}

	r := &AssetPriceRecord{
		Asset:       s.Asset,
		Name:        s.Name,
		RecentPrice: fixedpoint.Compact(s.RecentPrice),
		LastUpdate:  s.LastUpdate,
	}
	r.Sources[SlotA] = SourceConfig{ID: s.SourceA, Priority: pa}
	r.Sources[SlotB] = SourceConfig{ID: s.SourceB, Priority: pb}
	return r, nil
}
