package models

import "time"

// Zone is the broad market classification derived from the benchmark
// index's own anchored-VWAP relationship.
type Zone string

const (
	ZoneBullish Zone = "BULLISH"
	ZoneBearish Zone = "BEARISH"
	ZoneNeutral Zone = "NEUTRAL"
)

// SignalKind is the detector decision for one symbol/date.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalNone SignalKind = "NONE"
)

// Signal is an emitted trading signal, unique per (symbol, date). It is
// created by the detector and handed by value to the store, which owns
// durability; a corrective re-run replaces the row for the same key.
type Signal struct {
	Symbol         string     `json:"symbol"`
	Date           time.Time  `json:"date"`
	Kind           SignalKind `json:"kind"`
	ReferencePrice float64    `json:"reference_price"`
	VWAPAtSignal   float64    `json:"anchored_vwap"`
	ZoneAtSignal   Zone       `json:"zone"`
}
