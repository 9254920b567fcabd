package models

import "time"

// Anchor is the per-symbol all-time-high anchor plus the anchored-VWAP
// accumulators since the anchor date (inclusive). AnchorPrice is
// non-decreasing over a symbol's history.
type Anchor struct {
	Symbol         string    `json:"symbol"`
	AnchorDate     time.Time `json:"anchor_date"`
	AnchorPrice    float64   `json:"anchor_price"`
	CumPriceVolume float64   `json:"cum_price_volume"`
	CumVolume      int64     `json:"cum_volume"`
	LastDate       time.Time `json:"last_date"` // last processed bar date
}

// AnchorSnapshot is the tracker output for one bar. Valid is false when the
// cumulative volume since the anchor is zero and the VWAP is undefined.
type AnchorSnapshot struct {
	AnchorPrice float64
	AnchorDate  time.Time
	VWAP        float64
	Valid       bool
}

// Relation classifies a day's close against its anchored VWAP.
type Relation int8

const (
	RelUnknown   Relation = iota // VWAP undefined for that day
	RelAbove                     // close > vwap
	RelBelow                     // close < vwap
	RelAtVWAP                    // close == vwap
)

// AtOrBelow reports close <= vwap with a defined VWAP.
func (r Relation) AtOrBelow() bool { return r == RelBelow || r == RelAtVWAP }

// AtOrAbove reports close >= vwap with a defined VWAP.
func (r Relation) AtOrAbove() bool { return r == RelAbove || r == RelAtVWAP }

// SymbolState is the durable per-symbol evaluation state between daily runs:
// the anchor, the most recent close/VWAP relations (newest last), and the
// last emitted signal kind. Exclusively owned by one worker per run.
type SymbolState struct {
	Anchor     Anchor     `json:"anchor"`
	Relations  []Relation `json:"relations"`
	LastSignal SignalKind `json:"last_signal"`
}

// PushRelation appends r, keeping at most keep entries (newest last).
func (s *SymbolState) PushRelation(r Relation, keep int) {
	s.Relations = append(s.Relations, r)
	if len(s.Relations) > keep {
		s.Relations = s.Relations[len(s.Relations)-keep:]
	}
}
