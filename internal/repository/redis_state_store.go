package repository

import (
	"context"
	"errors"
	"fmt"

	"AnchorPull/internal/domain/models"
	domrepo "AnchorPull/internal/domain/repository"
	pkgcache "AnchorPull/pkg/cache"
)

// RedisStateStore keeps per-symbol anchors and the current zone in Redis.
// State lives under symbol-scoped keys, so per-symbol ownership during a run
// needs no cross-worker locking. Values survive process restarts; entries
// never expire.
type RedisStateStore struct {
	cache pkgcache.Service
}

func NewRedisStateStore(cache pkgcache.Service) *RedisStateStore {
	return &RedisStateStore{cache: cache}
}

func symbolKey(symbol string) string { return "state:symbol:" + symbol }

const zoneKey = "state:zone"

func (r *RedisStateStore) LoadSymbol(ctx context.Context, symbol string) (models.SymbolState, bool, error) {
	var st models.SymbolState
	err := r.cache.Get(ctx, symbolKey(symbol), &st)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return models.SymbolState{LastSignal: models.SignalNone}, false, nil
	}
	if err != nil {
		return models.SymbolState{}, false, fmt.Errorf("load symbol state: %w", err)
	}
	return st, true, nil
}

func (r *RedisStateStore) SaveSymbol(ctx context.Context, symbol string, st models.SymbolState) error {
	if err := r.cache.Set(ctx, symbolKey(symbol), st, 0); err != nil {
		return fmt.Errorf("save symbol state: %w", err)
	}
	return nil
}

func (r *RedisStateStore) LoadZone(ctx context.Context) (models.Zone, bool, error) {
	var zone string
	err := r.cache.Get(ctx, zoneKey, &zone)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return models.ZoneNeutral, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load zone: %w", err)
	}
	return models.Zone(zone), true, nil
}

func (r *RedisStateStore) SaveZone(ctx context.Context, zone models.Zone) error {
	if err := r.cache.Set(ctx, zoneKey, string(zone), 0); err != nil {
		return fmt.Errorf("save zone: %w", err)
	}
	return nil
}

var _ domrepo.StateStore = (*RedisStateStore)(nil)
