package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AnchorPull/internal/domain/models"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func bar(n int, high, close float64, vol int64) models.PriceBar {
	return models.PriceBar{
		Symbol: "XYZ", Date: day(n),
		Open: close, High: high, Low: close, Close: close,
		Volume: vol, SplitFactor: 1.0,
	}
}

func TestTrackerInitialBarAnchors(t *testing.T) {
	tr := NewTracker(BasisClose)
	var a models.Anchor

	snap, err := tr.Update(&a, bar(0, 100, 100, 1000))
	require.NoError(t, err)

	assert.Equal(t, 100.0, a.AnchorPrice)
	assert.Equal(t, day(0), a.AnchorDate)
	assert.True(t, snap.Valid)
	assert.Equal(t, 100.0, snap.VWAP)
}

func TestTrackerAccumulatesWithoutNewHigh(t *testing.T) {
	tr := NewTracker(BasisClose)
	var a models.Anchor

	_, err := tr.Update(&a, bar(0, 100, 100, 1000))
	require.NoError(t, err)

	// Tie on the high must not re-anchor.
	snap, err := tr.Update(&a, bar(1, 100, 105, 500))
	require.NoError(t, err)

	assert.Equal(t, day(0), a.AnchorDate)
	assert.InDelta(t, 101.6667, snap.VWAP, 0.001)
}

func TestTrackerReanchorsOnNewHigh(t *testing.T) {
	tr := NewTracker(BasisClose)
	var a models.Anchor

	_, err := tr.Update(&a, bar(0, 100, 100, 1000))
	require.NoError(t, err)
	snap, err := tr.Update(&a, bar(1, 110, 108, 700))
	require.NoError(t, err)

	assert.Equal(t, 110.0, a.AnchorPrice)
	assert.Equal(t, day(1), a.AnchorDate)
	// Single-bar accumulator: VWAP equals this bar's close exactly.
	assert.Equal(t, 108.0, snap.VWAP)
	assert.EqualValues(t, 700, a.CumVolume)
}

func TestTrackerAnchorPriceMonotone(t *testing.T) {
	tr := NewTracker(BasisClose)
	var a models.Anchor

	highs := []float64{100, 95, 103, 101, 103, 120, 90}
	maxHigh := 0.0
	for i, h := range highs {
		if h > maxHigh {
			maxHigh = h
		}
		prev := a.AnchorPrice
		_, err := tr.Update(&a, bar(i, h, h-1, 100))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.AnchorPrice, prev)
		assert.Equal(t, maxHigh, a.AnchorPrice)
	}
}

func TestTrackerVWAPWithinCloseBounds(t *testing.T) {
	tr := NewTracker(BasisClose)
	var a models.Anchor

	_, err := tr.Update(&a, bar(0, 100, 90, 500))
	require.NoError(t, err)

	closes := []float64{88, 92, 85, 95}
	lo, hi := 90.0, 90.0
	var snap models.AnchorSnapshot
	for i, c := range closes {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
		snap, err = tr.Update(&a, bar(i+1, 96, c, 300))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, snap.VWAP, lo)
		assert.LessOrEqual(t, snap.VWAP, hi)
	}
}

func TestTrackerZeroVolumeAnchorDayUndefined(t *testing.T) {
	tr := NewTracker(BasisClose)
	var a models.Anchor

	snap, err := tr.Update(&a, bar(0, 100, 100, 0))
	require.NoError(t, err)
	assert.False(t, snap.Valid)

	// Volume on the next day defines the VWAP again.
	snap, err = tr.Update(&a, bar(1, 99, 98, 400))
	require.NoError(t, err)
	assert.True(t, snap.Valid)
	assert.Equal(t, 98.0, snap.VWAP)
}

func TestTrackerRejectsOutOfOrderBar(t *testing.T) {
	tr := NewTracker(BasisClose)
	var a models.Anchor

	_, err := tr.Update(&a, bar(5, 100, 100, 1000))
	require.NoError(t, err)

	before := a
	_, err = tr.Update(&a, bar(3, 200, 200, 1000))
	require.ErrorIs(t, err, models.ErrOutOfOrderBar)
	assert.Equal(t, before, a, "rejected bar must not mutate the anchor")

	// Later bars continue normally.
	_, err = tr.Update(&a, bar(6, 101, 99, 100))
	require.NoError(t, err)
}

func TestTrackerSameDateReplayIsIdempotent(t *testing.T) {
	tr := NewTracker(BasisClose)
	var a models.Anchor

	_, err := tr.Update(&a, bar(0, 100, 100, 1000))
	require.NoError(t, err)
	first, err := tr.Update(&a, bar(1, 100, 105, 500))
	require.NoError(t, err)

	replay, err := tr.Update(&a, bar(1, 100, 105, 500))
	require.NoError(t, err)
	assert.Equal(t, first, replay)
	assert.EqualValues(t, 1500, a.CumVolume, "replayed bar must not double-count")
}

func TestTrackerTypicalBasis(t *testing.T) {
	tr := NewTracker(BasisTypical)
	var a models.Anchor

	b := models.PriceBar{Symbol: "XYZ", Date: day(0), High: 102, Low: 96, Close: 99, Volume: 100, SplitFactor: 1.0}
	snap, err := tr.Update(&a, b)
	require.NoError(t, err)
	assert.InDelta(t, 99.0, snap.VWAP, 1e-9) // (102+96+99)/3
}

func TestTrackerSplitForcesReanchor(t *testing.T) {
	tr := NewTracker(BasisClose)
	var a models.Anchor

	_, err := tr.Update(&a, bar(0, 400, 400, 1000))
	require.NoError(t, err)

	split := bar(1, 101, 100, 4000)
	split.SplitFactor = 0.25
	snap, err := tr.Update(&a, split)
	require.NoError(t, err)

	assert.Equal(t, day(1), a.AnchorDate)
	assert.Equal(t, 101.0, a.AnchorPrice)
	assert.Equal(t, 100.0, snap.VWAP)
}

func TestRelate(t *testing.T) {
	snap := models.AnchorSnapshot{VWAP: 100, Valid: true}
	assert.Equal(t, models.RelAbove, Relate(100.5, snap))
	assert.Equal(t, models.RelBelow, Relate(99.5, snap))
	assert.Equal(t, models.RelAtVWAP, Relate(100, snap))
	assert.Equal(t, models.RelUnknown, Relate(100, models.AnchorSnapshot{}))
}
