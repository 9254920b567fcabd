package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AnchorPull/internal/domain/models"
	pkgcache "AnchorPull/pkg/cache"
)

func TestStateStoreSymbolRoundTrip(t *testing.T) {
	store := NewRedisStateStore(pkgcache.NewMemoryCache())
	ctx := context.Background()

	st, found, err := store.LoadSymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, models.SignalNone, st.LastSignal)
	assert.True(t, st.Anchor.AnchorDate.IsZero())

	st.Anchor = models.Anchor{
		Symbol:         "AAPL",
		AnchorDate:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		AnchorPrice:    187.5,
		CumPriceVolume: 187.5 * 1000,
		CumVolume:      1000,
		LastDate:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	st.Relations = []models.Relation{models.RelBelow, models.RelAbove}
	st.LastSignal = models.SignalBuy
	require.NoError(t, store.SaveSymbol(ctx, "AAPL", st))

	got, found, err := store.LoadSymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, st.Anchor.AnchorPrice, got.Anchor.AnchorPrice)
	assert.Equal(t, st.Relations, got.Relations)
	assert.Equal(t, models.SignalBuy, got.LastSignal)
	assert.True(t, st.Anchor.LastDate.Equal(got.Anchor.LastDate))
}

func TestStateStoreSymbolsIsolated(t *testing.T) {
	store := NewRedisStateStore(pkgcache.NewMemoryCache())
	ctx := context.Background()

	a := models.SymbolState{LastSignal: models.SignalBuy}
	b := models.SymbolState{LastSignal: models.SignalSell}
	require.NoError(t, store.SaveSymbol(ctx, "AAPL", a))
	require.NoError(t, store.SaveSymbol(ctx, "MSFT", b))

	got, _, err := store.LoadSymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, got.LastSignal)
	got, _, err = store.LoadSymbol(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, models.SignalSell, got.LastSignal)
}

func TestStateStoreZone(t *testing.T) {
	store := NewRedisStateStore(pkgcache.NewMemoryCache())
	ctx := context.Background()

	zone, found, err := store.LoadZone(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, models.ZoneNeutral, zone)

	require.NoError(t, store.SaveZone(ctx, models.ZoneBearish))
	zone, found, err = store.LoadZone(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.ZoneBearish, zone)
}
