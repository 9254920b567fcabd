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

// CHSignalStore persists signals in a ReplacingMergeTree keyed on
// (symbol, date): re-inserting the same key replaces the row on merge, and
// reads go through FINAL, so Upsert is idempotent and safe to retry.
type CHSignalStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client, table string) *CHSignalStore {
	return &CHSignalStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSignalStore) Upsert(ctx context.Context, sig models.Signal) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (symbol, date, kind, reference_price, anchored_vwap, zone, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.table,
	)
	_, err := s.db.ExecContext(ctx, q,
		sig.Symbol, sig.Date, string(sig.Kind),
		sig.ReferencePrice, sig.VWAPAtSignal, string(sig.ZoneAtSignal),
		time.Now().UTC(),
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse upsert signal error",
				applogger.String("symbol", sig.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert signal: %w", err)
	}
	return nil
}

func (s *CHSignalStore) Latest(ctx context.Context, date time.Time, limit int) ([]models.Signal, error) {
	if limit <= 0 {
		limit = 200
	}
	q := fmt.Sprintf(`
        SELECT symbol, date, kind, reference_price, anchored_vwap, zone
        FROM %s FINAL
        WHERE date = ?
        ORDER BY symbol ASC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, date, limit)
	if err != nil {
		return nil, fmt.Errorf("get signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.Signal, 0, limit)
	for rows.Next() {
		var sig models.Signal
		var kind, zone string
		if err := rows.Scan(&sig.Symbol, &sig.Date, &kind, &sig.ReferencePrice, &sig.VWAPAtSignal, &zone); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Kind = models.SignalKind(kind)
		sig.ZoneAtSignal = models.Zone(zone)
		out = append(out, sig)
	}
	return out, rows.Err()
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)

// CHZoneHistory appends zone transitions, one row per change date. ZoneFor
// answers "which zone applied on this date" for backfill replays.
type CHZoneHistory struct {
	db    *sql.DB
	table string
}

func NewCHZoneHistory(ch *pkgch.Client, table string) *CHZoneHistory {
	return &CHZoneHistory{db: ch.DB(), table: table}
}

func (z *CHZoneHistory) Append(ctx context.Context, date time.Time, zone models.Zone) error {
	q := fmt.Sprintf("INSERT INTO %s (date, zone) VALUES (?, ?)", z.table)
	if _, err := z.db.ExecContext(ctx, q, date, string(zone)); err != nil {
		return fmt.Errorf("append zone: %w", err)
	}
	return nil
}

func (z *CHZoneHistory) ZoneFor(ctx context.Context, date time.Time) (models.Zone, error) {
	q := fmt.Sprintf(`
        SELECT zone FROM %s FINAL
        WHERE date <= ?
        ORDER BY date DESC
        LIMIT 1
    `, z.table)
	var zone string
	err := z.db.QueryRowContext(ctx, q, date).Scan(&zone)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ZoneNeutral, nil
	}
	if err != nil {
		return "", fmt.Errorf("zone for date: %w", err)
	}
	return models.Zone(zone), nil
}

var _ domrepo.ZoneHistory = (*CHZoneHistory)(nil)
