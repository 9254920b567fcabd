package engine

import (
	"fmt"

	"AnchorPull/internal/domain/models"
	domsvc "AnchorPull/internal/domain/service"
)

// PriceBasis selects the price used for the VWAP accumulators.
type PriceBasis string

const (
	// BasisClose weights each bar by its close.
	BasisClose PriceBasis = "close"
	// BasisTypical weights each bar by (high + low + close) / 3.
	BasisTypical PriceBasis = "typical"
)

// Tracker maintains per-symbol all-time-high anchors and anchored-VWAP
// accumulators. It holds no symbol state itself; the caller owns the Anchor
// and feeds bars in non-decreasing date order.
type Tracker struct {
	basis PriceBasis
}

func NewTracker(basis PriceBasis) *Tracker {
	if basis == "" {
		basis = BasisClose
	}
	return &Tracker{basis: basis}
}

// Update advances the anchor with one bar and returns the snapshot for that
// bar's date.
//
// A bar whose high strictly exceeds the anchor price re-anchors: anchor
// date/price move to this bar and the accumulators reset to its contribution
// alone. Ties do not re-anchor. A bar carrying a split factor always
// re-anchors, since the price scale changed under the old anchor.
//
// A bar dated before the last processed date is rejected with
// ErrOutOfOrderBar and mutates nothing. A bar dated equal to the last
// processed date is a replay: the current snapshot is returned unchanged, so
// restarted runs over the same bar set stay idempotent.
func (t *Tracker) Update(a *models.Anchor, bar models.PriceBar) (models.AnchorSnapshot, error) {
	if !a.LastDate.IsZero() {
		if bar.Date.Before(a.LastDate) {
			return models.AnchorSnapshot{}, fmt.Errorf("%s on %s: %w",
				bar.Symbol, bar.Date.Format("2006-01-02"), models.ErrOutOfOrderBar)
		}
		if bar.Date.Equal(a.LastDate) {
			return t.snapshot(a), nil
		}
	}
	if a.Symbol == "" {
		a.Symbol = bar.Symbol
	}

	switch {
	case a.AnchorDate.IsZero(), bar.High > a.AnchorPrice, bar.Split():
		a.AnchorDate = bar.Date
		a.AnchorPrice = bar.High
		a.CumPriceVolume = t.price(bar) * float64(bar.Volume)
		a.CumVolume = bar.Volume
	default:
		a.CumPriceVolume += t.price(bar) * float64(bar.Volume)
		a.CumVolume += bar.Volume
	}
	a.LastDate = bar.Date

	return t.snapshot(a), nil
}

// Relate classifies a close against the snapshot's VWAP.
func Relate(close float64, snap models.AnchorSnapshot) models.Relation {
	switch {
	case !snap.Valid:
		return models.RelUnknown
	case close > snap.VWAP:
		return models.RelAbove
	case close < snap.VWAP:
		return models.RelBelow
	default:
		return models.RelAtVWAP
	}
}

func (t *Tracker) price(bar models.PriceBar) float64 {
	if t.basis == BasisTypical {
		return bar.TypicalPrice()
	}
	return bar.Close
}

func (t *Tracker) snapshot(a *models.Anchor) models.AnchorSnapshot {
	snap := models.AnchorSnapshot{
		AnchorPrice: a.AnchorPrice,
		AnchorDate:  a.AnchorDate,
	}
	if a.CumVolume > 0 {
		snap.VWAP = a.CumPriceVolume / float64(a.CumVolume)
		snap.Valid = true
	}
	return snap
}

var _ domsvc.AnchorTracker = (*Tracker)(nil)
