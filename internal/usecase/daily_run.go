package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"AnchorPull/internal/domain/models"
	domrepo "AnchorPull/internal/domain/repository"
	"AnchorPull/internal/services/engine"
	applogger "AnchorPull/pkg/logger"
)

// relationWindow is how much close/VWAP relation history a symbol keeps; it
// covers the largest supported confirmation window.
const relationWindow = 2

// RunConfig drives one daily evaluation run.
type RunConfig struct {
	Universe        []string
	Workers         int
	Live            bool // gate for downstream publish
	Zone            engine.ZoneConfig
	Basis           engine.PriceBasis
	Detector        engine.DetectorConfig
	StoreRetryMax   int
	StoreBackoffMin time.Duration
	StoreBackoffMax time.Duration
}

// DailyRun orchestrates one evaluation pass for a run date: benchmark zone
// first, then every symbol fanned out across a bounded worker pool. Symbols
// partition the work; no state is shared between workers.
type DailyRun struct {
	bars     domrepo.BarCache
	signals  domrepo.SignalStore
	state    domrepo.StateStore
	zones    domrepo.ZoneHistory
	pub      domrepo.SignalPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger
	cfg      RunConfig
	tracker  *engine.Tracker
	detector *engine.Detector
}

func NewDailyRun(
	bars domrepo.BarCache,
	signals domrepo.SignalStore,
	state domrepo.StateStore,
	zones domrepo.ZoneHistory,
	pub domrepo.SignalPublisher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	cfg RunConfig,
) *DailyRun {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	return &DailyRun{
		bars:     bars,
		signals:  signals,
		state:    state,
		zones:    zones,
		pub:      pub,
		metrics:  metrics,
		l:        l,
		cfg:      cfg,
		tracker:  engine.NewTracker(cfg.Basis),
		detector: engine.NewDetector(cfg.Detector),
	}
}

// Run evaluates every symbol in the universe for asOf. A missing benchmark
// bar is fatal: no zone decision, no anchor touched. Per-symbol failures are
// skipped with a warning and the run continues.
func (r *DailyRun) Run(ctx context.Context, asOf time.Time) (models.RunSummary, error) {
	start := time.Now()
	summary := models.RunSummary{Date: asOf, Status: models.RunFatal}

	zone, err := r.advanceZone(ctx, asOf)
	if err != nil {
		r.metrics.RecordError("benchmark")
		r.l.Error("zone advance failed, aborting run",
			applogger.String("date", asOf.Format("2006-01-02")),
			applogger.Error(err),
		)
		summary.Duration = models.Millis(time.Since(start))
		return summary, err
	}
	summary.Zone = zone

	// Zone decided and visible; per-symbol evaluation may begin.
	emitted, skipped := r.fanOut(ctx, asOf, zone)

	summary.Evaluated = len(r.cfg.Universe) - len(skipped)
	summary.Emitted = emitted
	summary.Skipped = skipped
	summary.Duration = models.Millis(time.Since(start))
	if len(skipped) == 0 {
		summary.Status = models.RunOK
	} else {
		summary.Status = models.RunPartial
	}
	r.metrics.RecordLatency("daily_run", time.Duration(summary.Duration).Seconds())

	r.l.Info("run complete",
		applogger.String("date", asOf.Format("2006-01-02")),
		applogger.String("zone", string(zone)),
		applogger.String("status", string(summary.Status)),
		applogger.Int("evaluated", summary.Evaluated),
		applogger.Int("emitted", summary.Emitted),
		applogger.Int("skipped", len(skipped)),
	)
	return summary, nil
}

// advanceZone feeds the benchmark bar through its anchor and the zone
// machine, persisting the decision before any symbol runs.
func (r *DailyRun) advanceZone(ctx context.Context, asOf time.Time) (models.Zone, error) {
	benchBar, err := r.bars.BenchmarkBar(ctx, asOf)
	if err != nil {
		return "", err
	}

	st, _, err := r.state.LoadSymbol(ctx, benchBar.Symbol)
	if err != nil {
		return "", fmt.Errorf("benchmark state: %w", err)
	}
	prior, _, err := r.state.LoadZone(ctx)
	if err != nil {
		return "", fmt.Errorf("zone state: %w", err)
	}

	snap, err := r.tracker.Update(&st.Anchor, benchBar)
	if err != nil {
		return "", fmt.Errorf("benchmark anchor: %w", err)
	}

	machine := engine.NewMachine(r.cfg.Zone, prior)
	zone := machine.Evaluate(benchBar, snap)

	if zone != prior {
		if err := r.zones.Append(ctx, asOf, zone); err != nil {
			return "", fmt.Errorf("zone history: %w", err)
		}
		r.l.Info("zone transition",
			applogger.String("date", asOf.Format("2006-01-02")),
			applogger.String("from", string(prior)),
			applogger.String("to", string(zone)),
		)
	}
	if err := r.state.SaveZone(ctx, zone); err != nil {
		return "", fmt.Errorf("save zone: %w", err)
	}
	if err := r.state.SaveSymbol(ctx, benchBar.Symbol, st); err != nil {
		return "", fmt.Errorf("save benchmark state: %w", err)
	}
	r.metrics.RecordZone(string(zone))
	return zone, nil
}

type symbolResult struct {
	symbol  string
	emitted bool
	skip    string // non-empty reason when the symbol was not evaluated
}

// fanOut partitions the universe across the worker pool. Each worker owns
// the symbols it draws from the channel; results are fanned back in.
func (r *DailyRun) fanOut(ctx context.Context, asOf time.Time, zone models.Zone) (int, []models.SkippedSymbol) {
	jobs := make(chan string, len(r.cfg.Universe))
	for _, s := range r.cfg.Universe {
		jobs <- s
	}
	close(jobs)

	results := make(chan symbolResult, len(r.cfg.Universe))
	var wg sync.WaitGroup
	wg.Add(r.cfg.Workers)
	for i := 0; i < r.cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				select {
				case <-ctx.Done():
					results <- symbolResult{symbol: symbol, skip: "cancelled"}
					continue
				default:
				}
				results <- r.evalSymbol(ctx, symbol, asOf, zone)
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

// evalSymbol runs one symbol for one date: load state, advance the anchor,
// detect, persist, publish. State is saved only after the signal write
// succeeded, so a failed symbol is re-runnable from the same bar set.
func (r *DailyRun) evalSymbol(ctx context.Context, symbol string, asOf time.Time, zone models.Zone) symbolResult {
	res := symbolResult{symbol: symbol}

	st, _, err := r.state.LoadSymbol(ctx, symbol)
	if err != nil {
		r.warnSkip(symbol, "state", err)
		res.skip = "state"
		return res
	}

	bar, err := r.bars.Bar(ctx, symbol, asOf)
	if err != nil {
		if errors.Is(err, models.ErrMissingSymbolData) {
			r.warnSkip(symbol, "missing_bar", err)
			res.skip = "missing_bar"
		} else {
			r.warnSkip(symbol, "fetch_error", err)
			res.skip = "fetch_error"
		}
		return res
	}

	snap, err := r.tracker.Update(&st.Anchor, bar)
	if err != nil {
		// Out-of-order bar: rejected, state untouched, later dates continue.
		r.warnSkip(symbol, "out_of_order", err)
		r.metrics.RecordError("out_of_order")
		res.skip = "out_of_order"
		return res
	}

	kind := models.SignalNone
	if !bar.Split() {
		kind = r.detector.Detect(st.Relations, st.LastSignal, bar, snap, zone)
	}

	if kind != models.SignalNone {
		sig := models.Signal{
			Symbol:         symbol,
			Date:           asOf,
			Kind:           kind,
			ReferencePrice: bar.Close,
			VWAPAtSignal:   snap.VWAP,
			ZoneAtSignal:   zone,
		}
		err := withRetry(ctx, r.cfg.StoreRetryMax, r.cfg.StoreBackoffMin, r.cfg.StoreBackoffMax, func() error {
			return r.signals.Upsert(ctx, sig)
		})
		if err != nil {
			// Committed rows stay intact; this symbol reports failed and its
			// state is left unsaved so a re-run replays the same bar.
			r.warnSkip(symbol, "persist_error", fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err))
			r.metrics.RecordError("persist")
			res.skip = "persist_error"
			return res
		}
		r.metrics.RecordSignal(string(kind), symbol)
		st.LastSignal = kind
		r.l.Info("signal emitted",
			applogger.String("symbol", symbol),
			applogger.String("kind", string(kind)),
			applogger.String("zone", string(zone)),
		)

		if r.cfg.Live && r.pub != nil {
			if perr := r.pub.Publish(ctx, sig); perr != nil {
				// Publish is best-effort; the signal is already durable.
				r.metrics.RecordError("publish")
				r.l.Warn("signal publish failed",
					applogger.String("symbol", symbol),
					applogger.Error(perr),
				)
			}
		}
		res.emitted = true
	}

	st.PushRelation(engine.Relate(bar.Close, snap), relationWindow)
	if err := r.state.SaveSymbol(ctx, symbol, st); err != nil {
		r.warnSkip(symbol, "state", err)
		res.skip = "state"
		res.emitted = false
		return res
	}
	return res
}

func (r *DailyRun) warnSkip(symbol, reason string, err error) {
	r.metrics.RecordSkip(reason)
	r.l.Warn("symbol skipped",
		applogger.String("symbol", symbol),
		applogger.String("reason", reason),
		applogger.Error(err),
	)
}
