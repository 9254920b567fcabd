package engine

import (
	"AnchorPull/internal/domain/models"
	domsvc "AnchorPull/internal/domain/service"
)

const defaultEpsilon = 0.002

// ZoneConfig holds the hysteresis deadband around the benchmark's anchored
// VWAP. Both values are fractional (0.002 = 0.2%).
type ZoneConfig struct {
	EpsilonUp   float64
	EpsilonDown float64
}

// Machine classifies the market zone from the benchmark's close relative to
// its anchored VWAP, with hysteresis: inside (-EpsilonDown, +EpsilonUp) the
// prior zone is retained, damping single-day flapping. One transition
// decision per trading day; the machine never terminates.
type Machine struct {
	cfg  ZoneConfig
	zone models.Zone
}

// NewMachine creates a zone machine starting from initial, or NEUTRAL when
// no prior state exists.
func NewMachine(cfg ZoneConfig, initial models.Zone) *Machine {
	if cfg.EpsilonUp <= 0 {
		cfg.EpsilonUp = defaultEpsilon
	}
	if cfg.EpsilonDown <= 0 {
		cfg.EpsilonDown = defaultEpsilon
	}
	if initial == "" {
		initial = models.ZoneNeutral
	}
	return &Machine{cfg: cfg, zone: initial}
}

// Evaluate advances the machine with the benchmark's bar for one date. An
// undefined benchmark VWAP holds the prior zone.
func (m *Machine) Evaluate(bar models.PriceBar, snap models.AnchorSnapshot) models.Zone {
	if !snap.Valid || snap.VWAP == 0 {
		return m.zone
	}
	d := (bar.Close - snap.VWAP) / snap.VWAP
	switch {
	case d >= m.cfg.EpsilonUp:
		m.zone = models.ZoneBullish
	case d <= -m.cfg.EpsilonDown:
		m.zone = models.ZoneBearish
	}
	return m.zone
}

// Zone returns the current zone without advancing the machine.
func (m *Machine) Zone() models.Zone {
	return m.zone
}

var _ domsvc.ZoneMachine = (*Machine)(nil)
