package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"AnchorPull/internal/domain/models"
	domrepo "AnchorPull/internal/domain/repository"
	pkgch "AnchorPull/pkg/clickhouse"
	applogger "AnchorPull/pkg/logger"
)

// CHBarCache reads (and ingests) daily bars from the ClickHouse bars table.
// The evaluation core only ever reads; WriteBar serves the Kafka ingest path.
type CHBarCache struct {
	db        *sql.DB
	table     string
	benchmark string
	l         *applogger.Logger
}

func NewCHBarCache(ch *pkgch.Client, table, benchmark string) *CHBarCache {
	return &CHBarCache{db: ch.DB(), table: table, benchmark: benchmark}
}

// SetLogger injects a structured logger.
func (c *CHBarCache) SetLogger(l *applogger.Logger) { c.l = l }

func (c *CHBarCache) Bars(ctx context.Context, symbol string, since time.Time) ([]models.PriceBar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT symbol, date, open, high, low, close, volume, split_factor
        FROM %s FINAL
        WHERE symbol = ? AND date >= ?
        ORDER BY date ASC
    `, c.table)
	rows, err := c.db.QueryContext(ctx, q, symbol, since)
	if err != nil {
		if c.l != nil {
			c.l.Error("clickhouse bars query error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 256)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.SplitFactor); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if c.l != nil {
		c.l.Debug("clickhouse bars ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (c *CHBarCache) Bar(ctx context.Context, symbol string, date time.Time) (models.PriceBar, error) {
	q := fmt.Sprintf(`
        SELECT symbol, date, open, high, low, close, volume, split_factor
        FROM %s FINAL
        WHERE symbol = ? AND date = ?
        LIMIT 1
    `, c.table)
	var b models.PriceBar
	err := c.db.QueryRowContext(ctx, q, symbol, date).
		Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.SplitFactor)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PriceBar{}, fmt.Errorf("%s on %s: %w",
			symbol, date.Format("2006-01-02"), models.ErrMissingSymbolData)
	}
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("get bar: %w", err)
	}
	return b, nil
}

func (c *CHBarCache) BenchmarkBars(ctx context.Context, since time.Time) ([]models.PriceBar, error) {
	return c.Bars(ctx, c.benchmark, since)
}

func (c *CHBarCache) BenchmarkBar(ctx context.Context, date time.Time) (models.PriceBar, error) {
	b, err := c.Bar(ctx, c.benchmark, date)
	if errors.Is(err, models.ErrMissingSymbolData) {
		return models.PriceBar{}, fmt.Errorf("%s: %w",
			date.Format("2006-01-02"), models.ErrMissingBenchmarkData)
	}
	return b, err
}

func (c *CHBarCache) WriteBar(ctx context.Context, bar models.PriceBar) error {
	if bar.SplitFactor == 0 {
		bar.SplitFactor = 1.0
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (symbol, date, open, high, low, close, volume, split_factor) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		c.table,
	)
	_, err := c.db.ExecContext(ctx, q,
		bar.Symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.SplitFactor,
	)
	if err != nil {
		return fmt.Errorf("write bar: %w", err)
	}
	return nil
}

var (
	_ domrepo.BarCache  = (*CHBarCache)(nil)
	_ domrepo.BarWriter = (*CHBarCache)(nil)
)
