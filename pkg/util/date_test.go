package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("06/02/2025")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, def, ParseDateDefault("nope", def))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), ParseDateDefault("2025-06-02", def))
}

func TestTradingDays(t *testing.T) {
	mon := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	sat := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	sun := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsTradingDay(mon))
	assert.False(t, IsTradingDay(sat))
	assert.False(t, IsTradingDay(sun))

	// Monday steps back over the weekend to Friday.
	assert.Equal(t, time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), PrevTradingDay(mon))
	assert.Equal(t, time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC), LatestTradingDay(sun))
	assert.Equal(t, mon, LatestTradingDay(mon.Add(13*time.Hour)))
}
