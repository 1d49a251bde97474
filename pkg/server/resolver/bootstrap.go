package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/StrathCole/oracle-priority/pkg/config"
	"github.com/StrathCole/oracle-priority/pkg/logging"
	"github.com/StrathCole/oracle-priority/pkg/oracle"
	"github.com/StrathCole/oracle-priority/pkg/server/sources"
	"github.com/StrathCole/oracle-priority/pkg/store"
)

// ReadersFromConfig creates a reader for every enabled source and returns the options
// installing them. Readers must be registered with the sources registry beforehand.
func ReadersFromConfig(cfgs []config.SourceConfig, logger *logging.Logger) ([]Option, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	var opts []Option
	for _, sc := range cfgs {
		if !sc.Enabled {
			continue
		}
		slot, err := oracle.ParseSlot(sc.Slot)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Type, err)
		}

		rc := sc.ReaderConfig()
		rc["logger"] = logger

		reader, err := sources.Create(sources.SourceType(sc.Type), rc)
		if err != nil {
			return nil, fmt.Errorf("create %s reader for slot %s: %w", sc.Type, slot, err)
		}
		logger.Info("Reader configured", "source", reader.Name(), "type", sc.Type, "slot", slot.String())
		opts = append(opts, WithReader(slot, reader))
	}
	return opts, nil
}

// Bootstrap makes sure every configured asset exists. Configured source identifiers and
// priorities are applied on every start; an omitted identifier keeps the stored one.
func (s *Service) Bootstrap(ctx context.Context, assets []config.AssetConfig) error {
	for _, ac := range assets {
		if _, err := s.Initialize(ctx, ac.Asset, ac.Name); err != nil && !errors.Is(err, store.ErrRecordExists) {
			return err
		}

		if ac.SourceA != "" || ac.SourceB != "" {
			if err := s.bootstrapSources(ctx, ac); err != nil {
				return err
			}
		}

		if p := ac.Priorities; p != nil {
			if _, err := s.UpdateRawPriorities(ctx, ac.Asset, p.A, p.B); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) bootstrapSources(ctx context.Context, ac config.AssetConfig) error {
	rec, err := s.store.Get(ctx, ac.Asset)
	if err != nil {
		return err
	}
	ids := [oracle.NumSlots]oracle.SourceID{rec.Sources[oracle.SlotA].ID, rec.Sources[oracle.SlotB].ID}

	for slot, raw := range map[oracle.Slot]string{oracle.SlotA: ac.SourceA, oracle.SlotB: ac.SourceB} {
		if raw == "" {
			continue
		}
		id, err := slot.ParseSourceID(raw)
		if err != nil {
			return fmt.Errorf("asset %s: %w", ac.Asset, err)
		}
		ids[slot] = id
	}

	if ids[oracle.SlotA] == rec.Sources[oracle.SlotA].ID && ids[oracle.SlotB] == rec.Sources[oracle.SlotB].ID {
		return nil
	}
	_, err = s.UpdateSources(ctx, ac.Asset, ids[oracle.SlotA], ids[oracle.SlotB])
	return err
}
