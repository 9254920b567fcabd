package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"AnchorPull/internal/domain/models"
)

func benchBar(close float64) models.PriceBar {
	return models.PriceBar{Symbol: "SPY", Close: close, High: close, Low: close, Volume: 1000, SplitFactor: 1.0}
}

func validSnap(vwap float64) models.AnchorSnapshot {
	return models.AnchorSnapshot{VWAP: vwap, Valid: true}
}

func TestMachineStartsNeutral(t *testing.T) {
	m := NewMachine(ZoneConfig{}, "")
	assert.Equal(t, models.ZoneNeutral, m.Zone())
}

func TestMachineTransitionsAndHolds(t *testing.T) {
	m := NewMachine(ZoneConfig{EpsilonUp: 0.001, EpsilonDown: 0.001}, "")

	// d = +0.12% with epsilon_up = 0.10% transitions to BULLISH.
	z := m.Evaluate(benchBar(100.12), validSnap(100))
	assert.Equal(t, models.ZoneBullish, z)

	// Next day d = +0.02% is inside the band: no flap.
	z = m.Evaluate(benchBar(100.02), validSnap(100))
	assert.Equal(t, models.ZoneBullish, z)

	// d = -0.5% flips to BEARISH.
	z = m.Evaluate(benchBar(99.5), validSnap(100))
	assert.Equal(t, models.ZoneBearish, z)
}

func TestMachineDeadbandNeverChangesZone(t *testing.T) {
	m := NewMachine(ZoneConfig{EpsilonUp: 0.002, EpsilonDown: 0.002}, models.ZoneBearish)

	for _, close := range []float64{100.01, 99.99, 100.1, 99.9, 100.0} {
		assert.Equal(t, models.ZoneBearish, m.Evaluate(benchBar(close), validSnap(100)))
	}
}

func TestMachineUndefinedVWAPHoldsState(t *testing.T) {
	m := NewMachine(ZoneConfig{}, models.ZoneBullish)
	z := m.Evaluate(benchBar(50), models.AnchorSnapshot{})
	assert.Equal(t, models.ZoneBullish, z)
}

func TestMachineResumesFromInitial(t *testing.T) {
	m := NewMachine(ZoneConfig{EpsilonUp: 0.002, EpsilonDown: 0.002}, models.ZoneBullish)
	// Inside the band the restored state survives a restart.
	assert.Equal(t, models.ZoneBullish, m.Evaluate(benchBar(100.05), validSnap(100)))
}
