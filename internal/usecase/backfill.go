package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"AnchorPull/internal/domain/models"
	domrepo "AnchorPull/internal/domain/repository"
	"AnchorPull/internal/services/engine"
	applogger "AnchorPull/pkg/logger"
)

// Backfill replays cached history from a start date: first a full benchmark
// pass builds the zone timeline, then symbols replay their bars against it
// in parallel. The same anchors, crossings, and idempotent writes apply, so
// a backfill over already-processed dates converges to the same rows.
type Backfill struct {
	bars     domrepo.BarCache
	signals  domrepo.SignalStore
	state    domrepo.StateStore
	zones    domrepo.ZoneHistory
	metrics  domrepo.Metrics
	l        *applogger.Logger
	cfg      RunConfig
	tracker  *engine.Tracker
	detector *engine.Detector
}

func NewBackfill(
	bars domrepo.BarCache,
	signals domrepo.SignalStore,
	state domrepo.StateStore,
	zones domrepo.ZoneHistory,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	cfg RunConfig,
) *Backfill {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	return &Backfill{
		bars:     bars,
		signals:  signals,
		state:    state,
		zones:    zones,
		metrics:  metrics,
		l:        l,
		cfg:      cfg,
		tracker:  engine.NewTracker(cfg.Basis),
		detector: engine.NewDetector(cfg.Detector),
	}
}

// zonePoint is one entry of the zone timeline, valid from Date onward.
type zonePoint struct {
	Date time.Time
	Zone models.Zone
}

// Run replays all bars since from. Symbol state and the current zone are
// rebuilt from scratch and persisted at the end, replacing whatever a prior
// run left behind. A window that opens after a symbol's persisted anchor
// date is logged and counted, since the rebuilt anchor cannot see the
// earlier high.
func (b *Backfill) Run(ctx context.Context, from time.Time) (models.RunSummary, error) {
	start := time.Now()
	summary := models.RunSummary{Date: from, Status: models.RunFatal}

	timeline, benchState, err := b.buildZoneTimeline(ctx, from)
	if err != nil {
		b.metrics.RecordError("benchmark")
		summary.Duration = models.Millis(time.Since(start))
		return summary, err
	}
	last := timeline[len(timeline)-1]
	summary.Zone = last.Zone

	if err := b.state.SaveZone(ctx, last.Zone); err != nil {
		summary.Duration = models.Millis(time.Since(start))
		return summary, fmt.Errorf("save zone: %w", err)
	}
	b.warnIfRewinding(ctx, benchState.Anchor.Symbol, from)
	if err := b.state.SaveSymbol(ctx, benchState.Anchor.Symbol, benchState); err != nil {
		summary.Duration = models.Millis(time.Since(start))
		return summary, fmt.Errorf("save benchmark state: %w", err)
	}

	emitted, skipped := b.replaySymbols(ctx, from, timeline)

	summary.Evaluated = len(b.cfg.Universe) - len(skipped)
	summary.Emitted = emitted
	summary.Skipped = skipped
	summary.Duration = models.Millis(time.Since(start))
	if len(skipped) == 0 {
		summary.Status = models.RunOK
	} else {
		summary.Status = models.RunPartial
	}
	b.metrics.RecordLatency("backfill", time.Duration(summary.Duration).Seconds())

	b.l.Info("backfill complete",
		applogger.String("from", from.Format("2006-01-02")),
		applogger.String("zone", string(last.Zone)),
		applogger.Int("evaluated", summary.Evaluated),
		applogger.Int("emitted", summary.Emitted),
		applogger.Int("skipped", len(skipped)),
	)
	return summary, nil
}

// buildZoneTimeline walks the benchmark's bars in order, recording one
// timeline point per trading day and appending every transition to the
// zone history.
func (b *Backfill) buildZoneTimeline(ctx context.Context, from time.Time) ([]zonePoint, models.SymbolState, error) {
	benchBars, err := b.bars.BenchmarkBars(ctx, from)
	if err != nil {
		return nil, models.SymbolState{}, err
	}
	if len(benchBars) == 0 {
		return nil, models.SymbolState{}, fmt.Errorf("since %s: %w",
			from.Format("2006-01-02"), models.ErrMissingBenchmarkData)
	}

	machine := engine.NewMachine(b.cfg.Zone, models.ZoneNeutral)
	st := models.SymbolState{LastSignal: models.SignalNone}
	timeline := make([]zonePoint, 0, len(benchBars))
	prior := machine.Zone()

	for _, bar := range benchBars {
		snap, err := b.tracker.Update(&st.Anchor, bar)
		if err != nil {
			return nil, models.SymbolState{}, fmt.Errorf("benchmark anchor: %w", err)
		}
		zone := machine.Evaluate(bar, snap)
		if zone != prior {
			if err := b.zones.Append(ctx, bar.Date, zone); err != nil {
				return nil, models.SymbolState{}, fmt.Errorf("zone history: %w", err)
			}
			prior = zone
		}
		timeline = append(timeline, zonePoint{Date: bar.Date, Zone: zone})
	}
	return timeline, st, nil
}

// zoneAt answers which zone applied on date: the newest timeline point not
// after it, NEUTRAL before the first point.
func zoneAt(timeline []zonePoint, date time.Time) models.Zone {
	i := sort.Search(len(timeline), func(i int) bool {
		return timeline[i].Date.After(date)
	})
	if i == 0 {
		return models.ZoneNeutral
	}
	return timeline[i-1].Zone
}

func (b *Backfill) replaySymbols(ctx context.Context, from time.Time, timeline []zonePoint) (int, []models.SkippedSymbol) {
	jobs := make(chan string, len(b.cfg.Universe))
	for _, s := range b.cfg.Universe {
		jobs <- s
	}
	close(jobs)

	results := make(chan symbolResult, len(b.cfg.Universe))
	var wg sync.WaitGroup
	wg.Add(b.cfg.Workers)
	for i := 0; i < b.cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				select {
				case <-ctx.Done():
					results <- symbolResult{symbol: symbol, skip: "cancelled"}
					continue
				default:
				}
				results <- b.replaySymbol(ctx, symbol, from, timeline)
			}
		}()
	}
	wg.Wait()
	close(results)

	var emitted int
	var skipped []models.SkippedSymbol
	for res := range results {
		if res.skip != "" {
			skipped = append(skipped, models.SkippedSymbol{Symbol: res.symbol, Reason: res.skip})
			continue
		}
		if res.emitted {
			emitted++
		}
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Symbol < skipped[j].Symbol })
	return emitted, skipped
}

// replaySymbol rebuilds one symbol from its full bar history. res.emitted
// reports whether at least one signal was written.
func (b *Backfill) replaySymbol(ctx context.Context, symbol string, from time.Time, timeline []zonePoint) symbolResult {
	res := symbolResult{symbol: symbol}
	b.warnIfRewinding(ctx, symbol, from)

	bars, err := b.bars.Bars(ctx, symbol, from)
	if err != nil {
		b.metrics.RecordSkip("fetch_error")
		b.l.Warn("symbol skipped",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		res.skip = "fetch_error"
		return res
	}
	if len(bars) == 0 {
		b.metrics.RecordSkip("missing_bar")
		res.skip = "no_data"
		return res
	}

	st := models.SymbolState{LastSignal: models.SignalNone}
	for _, bar := range bars {
		snap, err := b.tracker.Update(&st.Anchor, bar)
		if err != nil {
			// Out-of-order rows in the cache: reject the bar, keep going.
			b.metrics.RecordError("out_of_order")
			continue
		}
		zone := zoneAt(timeline, bar.Date)

		if !bar.Split() {
			kind := b.detector.Detect(st.Relations, st.LastSignal, bar, snap, zone)
			if kind != models.SignalNone {
				sig := models.Signal{
					Symbol:         symbol,
					Date:           bar.Date,
					Kind:           kind,
					ReferencePrice: bar.Close,
					VWAPAtSignal:   snap.VWAP,
					ZoneAtSignal:   zone,
				}
				err := withRetry(ctx, b.cfg.StoreRetryMax, b.cfg.StoreBackoffMin, b.cfg.StoreBackoffMax, func() error {
					return b.signals.Upsert(ctx, sig)
				})
				if err != nil {
					b.metrics.RecordError("persist")
					res.skip = "persist_error"
					return res
				}
				b.metrics.RecordSignal(string(kind), symbol)
				st.LastSignal = kind
				res.emitted = true
			}
		}
		st.PushRelation(engine.Relate(bar.Close, snap), relationWindow)
	}

	if err := b.state.SaveSymbol(ctx, symbol, st); err != nil {
		res.skip = "state"
		return res
	}
	return res
}

// warnIfRewinding flags a replay window that opens after a persisted anchor
// date. The rebuild cannot see bars before the window, so the stored
// all-time-high anchor will be replaced by a later, possibly lower one.
func (b *Backfill) warnIfRewinding(ctx context.Context, symbol string, from time.Time) {
	prev, found, err := b.state.LoadSymbol(ctx, symbol)
	if err != nil || !found || prev.Anchor.AnchorDate.IsZero() {
		return
	}
	if prev.Anchor.AnchorDate.Before(from) {
		b.metrics.RecordError("anchor_rewind")
		b.l.Warn("replay window opens after persisted anchor, rebuilt state discards earlier history",
			applogger.String("symbol", symbol),
			applogger.String("anchor_date", prev.Anchor.AnchorDate.Format("2006-01-02")),
			applogger.String("from", from.Format("2006-01-02")),
		)
	}
}
