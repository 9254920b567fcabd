package repository

import (
	"context"
	"time"

	"AnchorPull/internal/domain/models"
)

// BarCache supplies chronologically ordered daily bars. Read-only from the
// core's perspective; rows are unique on (symbol, date).
type BarCache interface {
	Bars(ctx context.Context, symbol string, since time.Time) ([]models.PriceBar, error)
	Bar(ctx context.Context, symbol string, date time.Time) (models.PriceBar, error)
	BenchmarkBars(ctx context.Context, since time.Time) ([]models.PriceBar, error)
	BenchmarkBar(ctx context.Context, date time.Time) (models.PriceBar, error)
}

// BarWriter ingests bars into the cache. Used only by the collaborator-side
// ingest path, never by the evaluation core.
type BarWriter interface {
	WriteBar(ctx context.Context, bar models.PriceBar) error
}

// SignalStore persists emitted signals. Upsert treats (symbol, date) as the
// natural key and overwrites rather than duplicates.
type SignalStore interface {
	Upsert(ctx context.Context, sig models.Signal) error
	Latest(ctx context.Context, date time.Time, limit int) ([]models.Signal, error)
}

// ZoneHistory records zone transitions, one row per change date.
type ZoneHistory interface {
	Append(ctx context.Context, date time.Time, zone models.Zone) error
	ZoneFor(ctx context.Context, date time.Time) (models.Zone, error)
}

// StateStore holds durable evaluation state between runs: per-symbol anchors
// and relations, and the current benchmark zone. Symbol keys partition
// ownership; no two workers touch the same symbol.
type StateStore interface {
	LoadSymbol(ctx context.Context, symbol string) (models.SymbolState, bool, error)
	SaveSymbol(ctx context.Context, symbol string, st models.SymbolState) error
	LoadZone(ctx context.Context) (models.Zone, bool, error)
	SaveZone(ctx context.Context, zone models.Zone) error
}

// SignalPublisher announces emitted signals to downstream collaborators.
// Invoked only in live mode.
type SignalPublisher interface {
	Publish(ctx context.Context, sig models.Signal) error
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordSignal(kind, symbol string)
	RecordSkip(reason string)
	RecordZone(zone string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
