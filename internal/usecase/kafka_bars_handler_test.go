package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AnchorPull/internal/domain/models"
)

type memBarWriter struct {
	mu      sync.Mutex
	written []models.PriceBar
}

func (m *memBarWriter) WriteBar(_ context.Context, bar models.PriceBar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, bar)
	return nil
}

func TestKafkaBarsHandlerWritesBar(t *testing.T) {
	w := &memBarWriter{}
	h := NewKafkaBarsHandler("market.bars", w, testLogger(t))
	assert.Equal(t, "market.bars", h.Topic())

	payload := []byte(`{"symbol":"AAPL","date":"2025-06-02","open":101.2,"high":103.5,"low":100.9,"close":102.8,"volume":1200000,"split_factor":1.0}`)
	require.NoError(t, h.Handle(context.Background(), payload))

	require.Len(t, w.written, 1)
	b := w.written[0]
	assert.Equal(t, "AAPL", b.Symbol)
	assert.Equal(t, day(0), b.Date)
	assert.Equal(t, 103.5, b.High)
	assert.Equal(t, int64(1200000), b.Volume)
	assert.False(t, b.Split())
}

func TestKafkaBarsHandlerRejectsBadPayloads(t *testing.T) {
	w := &memBarWriter{}
	h := NewKafkaBarsHandler("market.bars", w, testLogger(t))

	cases := map[string][]byte{
		"malformed json":  []byte(`{"symbol":`),
		"missing symbol":  []byte(`{"date":"2025-06-02","close":10,"volume":1}`),
		"bad date":        []byte(`{"symbol":"AAPL","date":"06/02/2025","close":10,"volume":1}`),
		"negative volume": []byte(`{"symbol":"AAPL","date":"2025-06-02","close":10,"volume":-5}`),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, h.Handle(context.Background(), payload))
		})
	}
	assert.Empty(t, w.written)
}

func TestKafkaBarsHandlerSplitFactorCarried(t *testing.T) {
	w := &memBarWriter{}
	h := NewKafkaBarsHandler("market.bars", w, testLogger(t))

	payload := []byte(`{"symbol":"NVDA","date":"2025-06-03","close":120,"volume":100,"split_factor":0.1}`)
	require.NoError(t, h.Handle(context.Background(), payload))
	require.Len(t, w.written, 1)
	assert.True(t, w.written[0].Split())
}
