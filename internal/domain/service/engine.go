package service

import (
	"AnchorPull/internal/domain/models"
)

// AnchorTracker advances a symbol's all-time-high anchor with one bar and
// returns the anchored-VWAP snapshot for that bar. Bars must arrive in
// non-decreasing date order per symbol.
type AnchorTracker interface {
	Update(anchor *models.Anchor, bar models.PriceBar) (models.AnchorSnapshot, error)
}

// ZoneMachine derives the market zone from the benchmark's bar and anchor
// snapshot, one transition decision per trading day.
type ZoneMachine interface {
	Evaluate(bar models.PriceBar, snap models.AnchorSnapshot) models.Zone
	Zone() models.Zone
}

// SignalDetector decides BUY, SELL, or NONE for one symbol/date given the
// prior close/VWAP relations, the last emitted signal, today's bar and
// snapshot, and the active zone. Pure function of its inputs.
type SignalDetector interface {
	Detect(prev []models.Relation, last models.SignalKind, bar models.PriceBar, snap models.AnchorSnapshot, zone models.Zone) models.SignalKind
}
