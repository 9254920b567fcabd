package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AnchorPull/internal/domain/models"
	"AnchorPull/internal/services/engine"
	applogger "AnchorPull/pkg/logger"
)

const benchSymbol = "SPY"

func day(n int) time.Time {
	return time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func priceBar(symbol string, d time.Time, high, close float64, vol int64) models.PriceBar {
	return models.PriceBar{
		Symbol: symbol,
		Date:   d,
		Open:   close,
		High:   high,
		Low:    close,
		Close:  close,
		Volume: vol,
	}
}

// anchoredAt builds a symbol state anchored at price on d with one bar of
// volume already accumulated and a prior close at the VWAP.
func anchoredAt(symbol string, d time.Time, price float64, vol int64) models.SymbolState {
	return models.SymbolState{
		Anchor: models.Anchor{
			Symbol:         symbol,
			AnchorDate:     d,
			AnchorPrice:    price,
			CumPriceVolume: price * float64(vol),
			CumVolume:      vol,
			LastDate:       d,
		},
		Relations:  []models.Relation{models.RelAtVWAP},
		LastSignal: models.SignalNone,
	}
}

// --- fakes ---

type memBars struct {
	mu       sync.Mutex
	bars     map[string][]models.PriceBar
	fetchErr map[string]error
}

func newMemBars() *memBars {
	return &memBars{bars: make(map[string][]models.PriceBar), fetchErr: make(map[string]error)}
}

func (m *memBars) add(bars ...models.PriceBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		m.bars[b.Symbol] = append(m.bars[b.Symbol], b)
	}
}

func (m *memBars) Bars(_ context.Context, symbol string, since time.Time) ([]models.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fetchErr[symbol]; err != nil {
		return nil, err
	}
	var out []models.PriceBar
	for _, b := range m.bars[symbol] {
		if !b.Date.Before(since) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBars) Bar(_ context.Context, symbol string, date time.Time) (models.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fetchErr[symbol]; err != nil {
		return models.PriceBar{}, err
	}
	for _, b := range m.bars[symbol] {
		if b.Date.Equal(date) {
			return b, nil
		}
	}
	return models.PriceBar{}, fmt.Errorf("%s on %s: %w", symbol, date.Format("2006-01-02"), models.ErrMissingSymbolData)
}

func (m *memBars) BenchmarkBars(ctx context.Context, since time.Time) ([]models.PriceBar, error) {
	return m.Bars(ctx, benchSymbol, since)
}

func (m *memBars) BenchmarkBar(ctx context.Context, date time.Time) (models.PriceBar, error) {
	b, err := m.Bar(ctx, benchSymbol, date)
	if errors.Is(err, models.ErrMissingSymbolData) {
		return models.PriceBar{}, fmt.Errorf("%s: %w", date.Format("2006-01-02"), models.ErrMissingBenchmarkData)
	}
	return b, err
}

type memSignals struct {
	mu       sync.Mutex
	rows     map[string]models.Signal
	failures int // fail this many Upsert calls before succeeding
	calls    int
}

func newMemSignals() *memSignals {
	return &memSignals{rows: make(map[string]models.Signal)}
}

func (m *memSignals) Upsert(_ context.Context, sig models.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("store unavailable")
	}
	m.rows[sig.Symbol+"|"+sig.Date.Format("2006-01-02")] = sig
	return nil
}

func (m *memSignals) Latest(_ context.Context, _ time.Time, _ int) ([]models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Signal, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	return out, nil
}

type memState struct {
	mu      sync.Mutex
	symbols map[string]models.SymbolState
	zone    models.Zone
	zoneSet bool
}

func newMemState() *memState {
	return &memState{symbols: make(map[string]models.SymbolState)}
}

func (m *memState) LoadSymbol(_ context.Context, symbol string) (models.SymbolState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.symbols[symbol]
	if !ok {
		return models.SymbolState{LastSignal: models.SignalNone}, false, nil
	}
	return st, true, nil
}

func (m *memState) SaveSymbol(_ context.Context, symbol string, st models.SymbolState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[symbol] = st
	return nil
}

func (m *memState) LoadZone(_ context.Context) (models.Zone, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.zoneSet {
		return models.ZoneNeutral, false, nil
	}
	return m.zone, true, nil
}

func (m *memState) SaveZone(_ context.Context, zone models.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zone = zone
	m.zoneSet = true
	return nil
}

type memZones struct {
	mu      sync.Mutex
	entries []zonePoint
}

func (m *memZones) Append(_ context.Context, date time.Time, zone models.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, zonePoint{Date: date, Zone: zone})
	return nil
}

func (m *memZones) ZoneFor(_ context.Context, date time.Time) (models.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return zoneAt(m.entries, date), nil
}

type memPublisher struct {
	mu        sync.Mutex
	published []models.Signal
}

func (m *memPublisher) Publish(_ context.Context, sig models.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, sig)
	return nil
}

func (m *memPublisher) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)  {}
func (nopMetrics) RecordSkip(string)            {}
func (nopMetrics) RecordZone(string)            {}
func (nopMetrics) RecordError(string)           {}
func (nopMetrics) RecordLatency(string, float64) {}

// --- fixture ---

type fixture struct {
	bars    *memBars
	signals *memSignals
	state   *memState
	zones   *memZones
	pub     *memPublisher
	cfg     RunConfig
}

// newFixture seeds a bullish benchmark and one symbol primed for a BUY
// crossing on day(1).
func newFixture(t *testing.T, universe ...string) *fixture {
	t.Helper()
	f := &fixture{
		bars:    newMemBars(),
		signals: newMemSignals(),
		state:   newMemState(),
		zones:   &memZones{},
		pub:     &memPublisher{},
		cfg: RunConfig{
			Universe: universe,
			Workers:  2,
			Zone:     engine.ZoneConfig{EpsilonUp: 0.001, EpsilonDown: 0.001},
		},
	}
	f.state.symbols[benchSymbol] = anchoredAt(benchSymbol, day(0), 100, 1000)
	f.bars.add(priceBar(benchSymbol, day(1), 100, 110, 500)) // vwap 103.33, well above band
	return f
}

func (f *fixture) run(t *testing.T) *DailyRun {
	t.Helper()
	return NewDailyRun(f.bars, f.signals, f.state, f.zones, f.pub, nopMetrics{}, testLogger(t), f.cfg)
}

// primeBuy seeds state and a bar so symbol crosses above VWAP on day(1).
func (f *fixture) primeBuy(symbol string) {
	f.state.symbols[symbol] = anchoredAt(symbol, day(0), 100, 1000)
	f.bars.add(priceBar(symbol, day(1), 100, 105, 500)) // vwap 101.67, close above
}

// --- tests ---

func TestDailyRunMissingBenchmarkIsFatal(t *testing.T) {
	f := newFixture(t, "AAPL")
	f.primeBuy("AAPL")

	run := f.run(t)
	summary, err := run.Run(context.Background(), day(2)) // no benchmark bar for day 2
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingBenchmarkData)
	assert.Equal(t, models.RunFatal, summary.Status)
	assert.Equal(t, 1, summary.ExitCode())

	// No symbol was touched and no signal written.
	assert.Empty(t, f.signals.rows)
	st := f.state.symbols["AAPL"]
	assert.Equal(t, day(0), st.Anchor.LastDate)
}

func TestDailyRunEmitsBuyAndSavesState(t *testing.T) {
	f := newFixture(t, "AAPL")
	f.primeBuy("AAPL")

	summary, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, models.RunOK, summary.Status)
	assert.Equal(t, 0, summary.ExitCode())
	assert.Equal(t, models.ZoneBullish, summary.Zone)
	assert.Equal(t, 1, summary.Evaluated)
	assert.Equal(t, 1, summary.Emitted)

	sig, ok := f.signals.rows["AAPL|"+day(1).Format("2006-01-02")]
	require.True(t, ok)
	assert.Equal(t, models.SignalBuy, sig.Kind)
	assert.Equal(t, 105.0, sig.ReferencePrice)
	assert.InDelta(t, 101.67, sig.VWAPAtSignal, 0.01)
	assert.Equal(t, models.ZoneBullish, sig.ZoneAtSignal)

	st := f.state.symbols["AAPL"]
	assert.Equal(t, models.SignalBuy, st.LastSignal)
	assert.Equal(t, day(1), st.Anchor.LastDate)

	// Simulation mode: nothing published downstream.
	assert.Empty(t, f.pub.published)
}

func TestDailyRunLiveModePublishes(t *testing.T) {
	f := newFixture(t, "AAPL")
	f.primeBuy("AAPL")
	f.cfg.Live = true

	_, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	require.Len(t, f.pub.published, 1)
	assert.Equal(t, "AAPL", f.pub.published[0].Symbol)
}

func TestDailyRunPartialOnMissingSymbolBar(t *testing.T) {
	f := newFixture(t, "AAPL", "MSFT", "NVDA")
	f.primeBuy("AAPL")
	f.primeBuy("NVDA")
	// MSFT has state but no bar for day 1.
	f.state.symbols["MSFT"] = anchoredAt("MSFT", day(0), 50, 1000)

	summary, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, models.RunPartial, summary.Status)
	assert.Equal(t, 2, summary.ExitCode())
	assert.Equal(t, 2, summary.Evaluated)
	assert.Equal(t, 2, summary.Emitted)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "MSFT", summary.Skipped[0].Symbol)
	assert.Equal(t, "missing_bar", summary.Skipped[0].Reason)

	// The failing symbol did not poison the others.
	assert.Len(t, f.signals.rows, 2)
}

func TestDailyRunFetchErrorIsolated(t *testing.T) {
	f := newFixture(t, "AAPL", "MSFT")
	f.primeBuy("AAPL")
	f.bars.fetchErr["MSFT"] = errors.New("cache timeout")

	summary, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, models.RunPartial, summary.Status)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "fetch_error", summary.Skipped[0].Reason)
}

func TestDailyRunPersistRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t, "AAPL")
	f.primeBuy("AAPL")
	f.signals.failures = 2
	f.cfg.StoreRetryMax = 3
	f.cfg.StoreBackoffMin = time.Millisecond
	f.cfg.StoreBackoffMax = 2 * time.Millisecond

	summary, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, models.RunOK, summary.Status)
	assert.Equal(t, 1, summary.Emitted)
	assert.Equal(t, 3, f.signals.calls)
	assert.Len(t, f.signals.rows, 1)
}

func TestDailyRunPersistExhaustionSkipsAndKeepsState(t *testing.T) {
	f := newFixture(t, "AAPL")
	f.primeBuy("AAPL")
	f.signals.failures = 10
	f.cfg.StoreRetryMax = 2
	f.cfg.StoreBackoffMin = time.Millisecond
	f.cfg.StoreBackoffMax = 2 * time.Millisecond

	summary, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, models.RunPartial, summary.Status)
	assert.Equal(t, 0, summary.Emitted)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "persist_error", summary.Skipped[0].Reason)

	// State untouched, so a re-run replays the same bar.
	st := f.state.symbols["AAPL"]
	assert.Equal(t, day(0), st.Anchor.LastDate)
	assert.Equal(t, models.SignalNone, st.LastSignal)
}

func TestDailyRunNoSignalInsideZoneGate(t *testing.T) {
	f := newFixture(t, "AAPL")
	f.primeBuy("AAPL")
	// Bearish benchmark: close well below its VWAP.
	f.bars.bars[benchSymbol] = nil
	f.bars.add(priceBar(benchSymbol, day(1), 100, 90, 500))

	summary, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, models.ZoneBearish, summary.Zone)
	assert.Equal(t, 0, summary.Emitted)
	assert.Empty(t, f.signals.rows)

	// The symbol still advanced its anchor for the day.
	st := f.state.symbols["AAPL"]
	assert.Equal(t, day(1), st.Anchor.LastDate)
}

func TestDailyRunSplitBarSuppressesDetection(t *testing.T) {
	f := newFixture(t, "AAPL")
	st := anchoredAt("AAPL", day(0), 100, 1000)
	f.state.symbols["AAPL"] = st
	b := priceBar("AAPL", day(1), 200, 105, 500)
	b.SplitFactor = 0.5
	f.bars.add(b)

	summary, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, models.RunOK, summary.Status)
	assert.Equal(t, 0, summary.Emitted)
}

func TestDailyRunRecordsZoneTransition(t *testing.T) {
	f := newFixture(t, "AAPL")
	f.primeBuy("AAPL")

	_, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)

	// Neutral -> bullish landed in the history.
	require.Len(t, f.zones.entries, 1)
	assert.Equal(t, models.ZoneBullish, f.zones.entries[0].Zone)
	assert.Equal(t, models.ZoneBullish, f.state.zone)
}

func TestDailyRunIdempotentReplay(t *testing.T) {
	f := newFixture(t, "AAPL")
	f.primeBuy("AAPL")

	_, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	first := f.state.symbols["AAPL"]

	// Same date again: anchors replay as a no-op, rows overwrite in place.
	summary, err := f.run(t).Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, models.RunOK, summary.Status)
	assert.Len(t, f.signals.rows, 1)
	assert.Equal(t, first.Anchor, f.state.symbols["AAPL"].Anchor)
}
