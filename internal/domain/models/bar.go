package models

import "time"

// PriceBar is one trading day's OHLCV record for one symbol. Bars are
// immutable once recorded in the cache; Date carries trading-day
// granularity (UTC midnight).
type PriceBar struct {
	Symbol      string
	Date        time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      int64
	SplitFactor float64 // 1.0 when no split applied on this date
}

// TypicalPrice returns (high + low + close) / 3.
func (b PriceBar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Split reports whether a split factor other than 1.0 applies to this bar.
func (b PriceBar) Split() bool {
	return b.SplitFactor != 0 && b.SplitFactor != 1.0
}
