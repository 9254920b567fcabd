package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsEmitted *prometheus.CounterVec
	symbolsSkipped *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	marketZone     *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anchorpull_signals_emitted_total",
				Help: "Total number of trading signals emitted",
			},
			[]string{"kind", "symbol"},
		),
		symbolsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anchorpull_symbols_skipped_total",
				Help: "Symbols skipped during a run, by reason",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anchorpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		marketZone: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "anchorpull_market_zone",
				Help: "Current market zone (1 for the active zone label)",
			},
			[]string{"zone"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anchorpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignal records an emitted signal.
func (r *Recorder) RecordSignal(kind, symbol string) {
	r.signalsEmitted.WithLabelValues(kind, symbol).Inc()
}

// RecordSkip records a skipped symbol by reason.
func (r *Recorder) RecordSkip(reason string) {
	r.symbolsSkipped.WithLabelValues(reason).Inc()
}

// RecordZone marks zone as the active market zone.
func (r *Recorder) RecordZone(zone string) {
	for _, z := range []string{"BULLISH", "BEARISH", "NEUTRAL"} {
		v := 0.0
		if z == zone {
			v = 1.0
		}
		r.marketZone.WithLabelValues(z).Set(v)
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
