package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AnchorPull/internal/domain/models"
	domrepo "AnchorPull/internal/domain/repository"
	applogger "AnchorPull/pkg/logger"
)

// barEvent is the wire form of one end-of-day bar arriving on the ingest
// topic. Dates are calendar days, "2006-01-02".
type barEvent struct {
	Symbol      string  `json:"symbol"`
	Date        string  `json:"date"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      int64   `json:"volume"`
	SplitFactor float64 `json:"split_factor,omitempty"`
}

// KafkaBarsHandler consumes bar events and writes them into the bar cache.
// Writes land in a table that deduplicates on (symbol, date), so redelivery
// is harmless.
type KafkaBarsHandler struct {
	topic  string
	writer domrepo.BarWriter
	l      *applogger.Logger
}

func NewKafkaBarsHandler(topic string, writer domrepo.BarWriter, l *applogger.Logger) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, writer: writer, l: l}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

func (h *KafkaBarsHandler) Handle(ctx context.Context, data []byte) error {
	var ev barEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode bar event: %w", err)
	}
	if ev.Symbol == "" {
		return fmt.Errorf("bar event missing symbol")
	}
	date, err := time.Parse("2006-01-02", ev.Date)
	if err != nil {
		return fmt.Errorf("bar event date %q: %w", ev.Date, err)
	}
	if ev.Volume < 0 {
		return fmt.Errorf("bar event %s %s: negative volume", ev.Symbol, ev.Date)
	}

	bar := models.PriceBar{
		Symbol:      ev.Symbol,
		Date:        date,
		Open:        ev.Open,
		High:        ev.High,
		Low:         ev.Low,
		Close:       ev.Close,
		Volume:      ev.Volume,
		SplitFactor: ev.SplitFactor,
	}
	if err := h.writer.WriteBar(ctx, bar); err != nil {
		return fmt.Errorf("write bar %s %s: %w", ev.Symbol, ev.Date, err)
	}

	h.l.Debug("bar ingested",
		applogger.String("symbol", ev.Symbol),
		applogger.String("date", ev.Date),
	)
	return nil
}
