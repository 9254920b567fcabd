package engine

import (
	"AnchorPull/internal/domain/models"
	domsvc "AnchorPull/internal/domain/service"
)

// DetectorConfig tunes the crossing criteria. The exact rule set is
// configuration, not code: ConfirmBars is how many prior days must sit on
// the far side of the VWAP before a crossing fires (1 = plain two-bar
// crossing, 2 = three-bar confirmation), and RequireAlternating forces
// BUY/SELL to strictly alternate per symbol.
type DetectorConfig struct {
	ConfirmBars        int
	RequireAlternating bool
}

// Detector emits zone-gated, edge-triggered VWAP crossing signals:
//
//	BUY:  zone BULLISH, prior close(s) at or below their anchored VWAP,
//	      today's close strictly above today's.
//	SELL: zone BEARISH, prior close(s) at or above, today strictly below.
//
// A close that stays above the VWAP for further days produces nothing; only
// the crossing day fires.
type Detector struct {
	cfg DetectorConfig
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.ConfirmBars < 1 {
		cfg.ConfirmBars = 1
	}
	return &Detector{cfg: cfg}
}

// Detect decides the signal for one symbol/date. prev holds the close/VWAP
// relations of the preceding days, newest last; last is the last emitted
// signal kind for the symbol. Returns SignalNone whenever today's or any
// required prior day's VWAP is undefined.
func (d *Detector) Detect(prev []models.Relation, last models.SignalKind, bar models.PriceBar, snap models.AnchorSnapshot, zone models.Zone) models.SignalKind {
	if !snap.Valid {
		return models.SignalNone
	}
	if len(prev) < d.cfg.ConfirmBars {
		return models.SignalNone
	}
	recent := prev[len(prev)-d.cfg.ConfirmBars:]
	today := Relate(bar.Close, snap)

	switch {
	case zone == models.ZoneBullish && today == models.RelAbove && all(recent, models.Relation.AtOrBelow):
		if d.cfg.RequireAlternating && last == models.SignalBuy {
			return models.SignalNone
		}
		return models.SignalBuy
	case zone == models.ZoneBearish && today == models.RelBelow && all(recent, models.Relation.AtOrAbove):
		if d.cfg.RequireAlternating && last != models.SignalBuy {
			return models.SignalNone
		}
		return models.SignalSell
	}
	return models.SignalNone
}

func all(rs []models.Relation, pred func(models.Relation) bool) bool {
	for _, r := range rs {
		if !pred(r) {
			return false
		}
	}
	return true
}

var _ domsvc.SignalDetector = (*Detector)(nil)
