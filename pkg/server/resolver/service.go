// Package resolver orchestrates price resolution for stored asset records.
//
// A resolution reads the record, fetches one candidate per enabled slot concurrently,
// and applies the priority selection inside a single store update. Reader failures are
// logged and counted but never fail the resolution on their own.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/StrathCole/oracle-priority/pkg/fixedpoint"
	"github.com/StrathCole/oracle-priority/pkg/logging"
	"github.com/StrathCole/oracle-priority/pkg/metrics"
	"github.com/StrathCole/oracle-priority/pkg/oracle"
	"github.com/StrathCole/oracle-priority/pkg/priority"
	"github.com/StrathCole/oracle-priority/pkg/server/sources"
	"github.com/StrathCole/oracle-priority/pkg/store"
)

const defaultReadTimeout = 10 * time.Second

// Service exposes the record lifecycle operations on top of a store and the slot readers.
type Service struct {
	store       store.Store
	readers     [oracle.NumSlots]sources.Reader
	logger      *logging.Logger
	now         func() time.Time
	readTimeout time.Duration

	subscribers   []chan<- oracle.Resolution
	subscribersMu sync.RWMutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the wall clock used for resolution timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReadTimeout bounds the concurrent candidate fetch of one resolution.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithReader installs the reader for a slot.
func WithReader(slot oracle.Slot, r sources.Reader) Option {
	return func(s *Service) {
		if slot.Valid() {
			s.readers[slot] = r
		}
	}
}

// New creates a Service.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:       st,
		logger:      logging.NewNoopLogger(),
		now:         time.Now,
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reader returns the reader installed for slot, if any.
func (s *Service) Reader(slot oracle.Slot) sources.Reader {
	if !slot.Valid() {
		return nil
	}
	return s.readers[slot]
}

// Initialize creates the record for asset with both slots disabled.
func (s *Service) Initialize(ctx context.Context, asset, name string) (*oracle.AssetPriceRecord, error) {
	rec, err := oracle.Initialize(asset, name)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", asset, err)
	}

	s.logger.Info("Asset record initialized", "asset", asset, "name", rec.Name)
	return rec, nil
}

// UpdatePriorities validates and replaces both slot priorities of asset.
func (s *Service) UpdatePriorities(ctx context.Context, asset string, a, b priority.Priority) (*oracle.AssetPriceRecord, error) {
	rec, err := s.store.Update(ctx, asset, func(r *oracle.AssetPriceRecord) error {
		return r.UpdatePriorities(a, b)
	})
	if err != nil {
		return nil, fmt.Errorf("update priorities of %s: %w", asset, err)
	}

	metrics.RecordConfigUpdate(asset, "priorities")
	s.logger.Info("Priorities updated", "asset", asset, "priority_a", a.String(), "priority_b", b.String())
	return rec, nil
}

// UpdateRawPriorities is UpdatePriorities over the signed encoding used on the wire.
func (s *Service) UpdateRawPriorities(ctx context.Context, asset string, a, b int8) (*oracle.AssetPriceRecord, error) {
	if !priority.ValidateRaw(a, b) {
		return nil, fmt.Errorf("update priorities of %s: %w: a=%d b=%d", asset, oracle.ErrInvalidPriorities, a, b)
	}
	pa, _ := priority.FromRaw(a)
	pb, _ := priority.FromRaw(b)
	return s.UpdatePriorities(ctx, asset, pa, pb)
}

// UpdateSources replaces both slot identifiers of asset.
func (s *Service) UpdateSources(ctx context.Context, asset string, a, b oracle.SourceID) (*oracle.AssetPriceRecord, error) {
	rec, err := s.store.Update(ctx, asset, func(r *oracle.AssetPriceRecord) error {
		r.UpdateSources(a, b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update sources of %s: %w", asset, err)
	}

	metrics.RecordConfigUpdate(asset, "sources")
	s.logger.Info("Sources updated", "asset", asset,
		"source_a", oracle.SlotA.FormatSourceID(a),
		"source_b", oracle.SlotB.FormatSourceID(b))
	return rec, nil
}

// Get returns the record of asset.
func (s *Service) Get(ctx context.Context, asset string) (*oracle.AssetPriceRecord, error) {
	return s.store.Get(ctx, asset)
}

// List returns every record.
func (s *Service) List(ctx context.Context) ([]*oracle.AssetPriceRecord, error) {
	return s.store.List(ctx)
}

// Resolve fetches the enabled candidates of asset and stores the selected price.
// On failure the stored price and timestamp are unchanged.
func (s *Service) Resolve(ctx context.Context, asset string) (oracle.Resolution, error) {
	rec, err := s.store.Get(ctx, asset)
	if err != nil {
		return oracle.Resolution{}, fmt.Errorf("resolve %s: %w", asset, err)
	}

	fetched, readings := s.fetch(ctx, rec)

	var res oracle.Resolution
	_, err = s.store.Update(ctx, asset, func(r *oracle.AssetPriceRecord) error {
		// A reading only counts for the feed it was fetched from.
		current := readings
		for _, slot := range oracle.Slots {
			if r.Sources[slot].ID != fetched[slot] {
				current[slot] = nil
			}
		}
		var err error
		res, err = r.Resolve(current, s.now())
		return err
	})
	if err != nil {
		reason := failureReason(err)
		metrics.RecordResolutionFailure(asset, reason)
		s.logger.Warn("Resolution failed", "asset", asset, "reason", reason, "error", err)
		return oracle.Resolution{}, fmt.Errorf("resolve %s: %w", asset, err)
	}

	source := s.sourceName(res.Slot)
	price, _ := res.Price.Float64()
	metrics.RecordResolution(asset, source, price, time.Unix(int64(res.Timestamp), 0)) // #nosec G115
	s.logger.Info("Price resolved", "asset", asset, "source", source, "slot", res.Slot.String(),
		"rank", int(res.Rank), "price", res.Price.String())

	s.publish(res)
	return res, nil
}

// fetch reads every enabled slot concurrently. It returns the identifiers the readings
// were taken from alongside the readings.
func (s *Service) fetch(ctx context.Context, rec *oracle.AssetPriceRecord) ([oracle.NumSlots]oracle.SourceID, oracle.Readings) {
	var (
		ids      [oracle.NumSlots]oracle.SourceID
		readings oracle.Readings
	)

	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, slot := range oracle.Slots {
		src := rec.Sources[slot]
		ids[slot] = src.ID
		if !src.Priority.IsEnabled() {
			continue
		}
		reader := s.readers[slot]
		if reader == nil {
			s.logger.Warn("No reader configured for enabled slot", "asset", rec.Asset, "slot", slot.String())
			continue
		}

		g.Go(func() error {
			start := time.Now()
			reading, err := reader.Read(gctx, src.ID)
			metrics.RecordSourceRead(reader.Name(), err, time.Since(start))
			metrics.RecordSourceHealth(reader.Name(), string(reader.Type()), err == nil)
			if err != nil {
				s.logger.Warn("Source read failed", "source", reader.Name(), "asset", rec.Asset, "error", err)
				return nil
			}
			readings.Set(slot, reading.Price)
			return nil
		})
	}
	_ = g.Wait()

	return ids, readings
}

// ResolveAll resolves every stored record and returns the number of failures.
func (s *Service) ResolveAll(ctx context.Context) (int, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		if _, err := s.Resolve(ctx, rec.Asset); err != nil {
			failed++
		}
	}
	return failed, nil
}

// Run resolves all records every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.logger.Info("Starting periodic resolution", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			failed, err := s.ResolveAll(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Periodic resolution failed", "error", err)
				continue
			}
			if failed > 0 {
				s.logger.Warn("Periodic resolution incomplete", "failed", failed)
			}
		}
	}
}

// Subscribe registers ch to receive every successful resolution. Slow subscribers
// miss updates rather than block resolution.
func (s *Service) Subscribe(ch chan<- oracle.Resolution) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()
	s.subscribers = append(s.subscribers, ch)
}

// Unsubscribe removes ch.
func (s *Service) Unsubscribe(ch chan<- oracle.Resolution) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	for i, subscriber := range s.subscribers {
		if subscriber == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			break
		}
	}
}

func (s *Service) publish(res oracle.Resolution) {
	s.subscribersMu.RLock()
	defer s.subscribersMu.RUnlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- res:
		default:
			s.logger.Warn("Subscriber channel full, skipping update", "asset", res.Asset)
		}
	}
}

func (s *Service) sourceName(slot oracle.Slot) string {
	if r := s.readers[slot]; r != nil {
		return r.Name()
	}
	return slot.String()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, oracle.ErrNoPriceAvailable):
		return "no_price"
	case errors.Is(err, oracle.ErrOverflow):
		return "overflow"
	case errors.Is(err, fixedpoint.ErrNegative):
		return "negative"
	case errors.Is(err, store.ErrRecordNotFound):
		return "not_found"
	default:
		return "store"
	}
}
