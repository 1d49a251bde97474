package sources

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/StrathCole/oracle-priority/pkg/oracle"
)

// SourceType represents the type of price source
type SourceType string

const (
	SourceTypePyth        SourceType = "pyth"
	SourceTypeSwitchboard SourceType = "switchboard"
)

// Reading is one normalized price observation for a feed.
type Reading struct {
	Source      string          `json:"source"`
	Feed        oracle.SourceID `json:"feed"`
	Price       decimal.Decimal `json:"price"`
	Confidence  decimal.Decimal `json:"confidence,omitempty"`
	PublishTime time.Time       `json:"publish_time"`
}

// Reader attempts to produce a reading for a feed. Readers never retry: a failed read
// simply means the feed contributes no candidate to this resolution.
type Reader interface {
	// Read fetches and validates the current price of feed id.
	Read(ctx context.Context, id oracle.SourceID) (Reading, error)

	// Name returns the unique name of this reader
	Name() string

	// Type returns the type of this reader
	Type() SourceType

	// IsHealthy reports whether the last read succeeded
	IsHealthy() bool

	// LastRead returns the time of the last successful read
	LastRead() time.Time
}

// ReaderFactory is a function that creates a new Reader instance
type ReaderFactory func(config map[string]interface{}) (Reader, error)
