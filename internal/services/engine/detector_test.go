package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AnchorPull/internal/domain/models"
)

func rel(rs ...models.Relation) []models.Relation { return rs }

func TestDetectorBuyOnBullishUpwardCrossing(t *testing.T) {
	d := NewDetector(DetectorConfig{})

	// Prior close at its VWAP, today's close above: BUY in a bullish zone.
	kind := d.Detect(rel(models.RelAtVWAP), models.SignalNone,
		bar(2, 100, 105, 500), validSnap(101.67), models.ZoneBullish)
	assert.Equal(t, models.SignalBuy, kind)
}

func TestDetectorSellOnBearishDownwardCrossing(t *testing.T) {
	d := NewDetector(DetectorConfig{})

	kind := d.Detect(rel(models.RelAbove), models.SignalBuy,
		bar(2, 100, 95, 500), validSnap(98), models.ZoneBearish)
	assert.Equal(t, models.SignalSell, kind)
}

func TestDetectorZoneGatesSignal(t *testing.T) {
	d := NewDetector(DetectorConfig{})

	for _, zone := range []models.Zone{models.ZoneNeutral, models.ZoneBearish} {
		kind := d.Detect(rel(models.RelBelow), models.SignalNone,
			bar(2, 100, 105, 500), validSnap(101), zone)
		assert.Equal(t, models.SignalNone, kind, "upward crossing outside bullish zone")
	}
}

func TestDetectorUndefinedVWAPMeansNone(t *testing.T) {
	d := NewDetector(DetectorConfig{})

	kind := d.Detect(rel(models.RelBelow), models.SignalNone,
		bar(2, 100, 105, 0), models.AnchorSnapshot{}, models.ZoneBullish)
	assert.Equal(t, models.SignalNone, kind)

	kind = d.Detect(rel(models.RelUnknown), models.SignalNone,
		bar(2, 100, 105, 500), validSnap(101), models.ZoneBullish)
	assert.Equal(t, models.SignalNone, kind, "prior-day VWAP undefined")
}

func TestDetectorEdgeTriggeredOnce(t *testing.T) {
	tr := NewTracker(BasisClose)
	d := NewDetector(DetectorConfig{})
	var a models.Anchor
	var st models.SymbolState
	st.LastSignal = models.SignalNone

	// Anchor day, then N consecutive closes strictly above the VWAP in a
	// bullish zone: exactly one BUY, on the crossing day.
	bars := []models.PriceBar{
		bar(0, 100, 100, 1000),
		bar(1, 100, 101, 500),
		bar(2, 100, 102, 500),
		bar(3, 100, 103, 500),
		bar(4, 100, 104, 500),
	}

	var buys int
	for _, b := range bars {
		snap, err := tr.Update(&a, b)
		require.NoError(t, err)
		kind := d.Detect(st.Relations, st.LastSignal, b, snap, models.ZoneBullish)
		if kind == models.SignalBuy {
			buys++
			st.LastSignal = kind
			assert.Equal(t, day(1), b.Date, "BUY must fire on the first crossing day")
		}
		st.PushRelation(Relate(b.Close, snap), 2)
	}
	assert.Equal(t, 1, buys)
}

func TestDetectorConfirmBarsTwo(t *testing.T) {
	d := NewDetector(DetectorConfig{ConfirmBars: 2})

	// Only one qualifying prior day: not enough confirmation.
	kind := d.Detect(rel(models.RelAbove, models.RelBelow), models.SignalNone,
		bar(3, 100, 105, 500), validSnap(101), models.ZoneBullish)
	assert.Equal(t, models.SignalNone, kind)

	// Two prior days at or below: fires.
	kind = d.Detect(rel(models.RelBelow, models.RelAtVWAP), models.SignalNone,
		bar(3, 100, 105, 500), validSnap(101), models.ZoneBullish)
	assert.Equal(t, models.SignalBuy, kind)

	// Too little history: NONE.
	kind = d.Detect(rel(models.RelBelow), models.SignalNone,
		bar(3, 100, 105, 500), validSnap(101), models.ZoneBullish)
	assert.Equal(t, models.SignalNone, kind)
}

func TestDetectorRequireAlternating(t *testing.T) {
	d := NewDetector(DetectorConfig{RequireAlternating: true})

	// Second BUY without an intervening SELL is suppressed.
	kind := d.Detect(rel(models.RelBelow), models.SignalBuy,
		bar(2, 100, 105, 500), validSnap(101), models.ZoneBullish)
	assert.Equal(t, models.SignalNone, kind)

	// SELL requires a prior BUY.
	kind = d.Detect(rel(models.RelAbove), models.SignalNone,
		bar(2, 100, 95, 500), validSnap(98), models.ZoneBearish)
	assert.Equal(t, models.SignalNone, kind)

	kind = d.Detect(rel(models.RelAbove), models.SignalBuy,
		bar(2, 100, 95, 500), validSnap(98), models.ZoneBearish)
	assert.Equal(t, models.SignalSell, kind)
}

func TestDetectorEndToEndBuy(t *testing.T) {
	// Symbol anchors at 100 on day 1; day 2 closes at 105 on VWAP 101.67
	// while the zone is bullish: BUY for day 2.
	tr := NewTracker(BasisClose)
	d := NewDetector(DetectorConfig{})
	var a models.Anchor
	var st models.SymbolState

	b1 := bar(0, 100, 100, 1000)
	snap, err := tr.Update(&a, b1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.VWAP)
	st.PushRelation(Relate(b1.Close, snap), 2)

	b2 := bar(1, 100, 105, 500)
	snap, err = tr.Update(&a, b2)
	require.NoError(t, err)
	assert.InDelta(t, 101.67, snap.VWAP, 0.01)

	kind := d.Detect(st.Relations, models.SignalNone, b2, snap, models.ZoneBullish)
	assert.Equal(t, models.SignalBuy, kind)
}
