package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the engine and consumer collectors. A nil *Metrics is
// valid and records nothing, so call sites need no guards.
type Metrics struct {
	UpdatesApplied      *prometheus.CounterVec
	DecodeSkipped       prometheus.Counter
	SequenceGaps        prometheus.Counter
	ConsumerDisconnects prometheus.Counter
	BookDepth           *prometheus.GaugeVec
	EngineThroughput    prometheus.Gauge
	NotificationLatency prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		UpdatesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l2book_updates_applied_total", Help: "Updates applied to the book by kind",
		}, []string{"kind"}),
		DecodeSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "l2book_decode_skipped_total", Help: "Malformed feed records skipped",
		}),
		SequenceGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "l2book_sequence_gaps_total", Help: "Notifications whose seq was not previous+1",
		}),
		ConsumerDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "l2book_consumer_disconnects_total", Help: "Runs stopped by a consumer disconnect",
		}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "l2book_book_depth", Help: "Distinct non-zero price levels per side",
		}, []string{"side"}),
		EngineThroughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "l2book_engine_throughput", Help: "Updates per second of the last run",
		}),
		NotificationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "l2book_notification_latency_ns",
			Help:    "Engine to consumer latency in nanoseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 20),
		}),
	}
}

// Init creates a registry holding m plus the Go and process collectors.
func Init(m *Metrics, logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		m.UpdatesApplied, m.DecodeSkipped, m.SequenceGaps, m.ConsumerDisconnects,
		m.BookDepth, m.EngineThroughput, m.NotificationLatency,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			logger.Warn().Err(err).Msg("metric registration failed")
		}
	}
	logger.Debug().Msg("prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Applied(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.UpdatesApplied.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) Skipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DecodeSkipped.Add(float64(n))
}

func (m *Metrics) Gap() {
	if m == nil {
		return
	}
	m.SequenceGaps.Inc()
}

func (m *Metrics) Disconnected() {
	if m == nil {
		return
	}
	m.ConsumerDisconnects.Inc()
}

func (m *Metrics) Depth(bids, asks int) {
	if m == nil {
		return
	}
	m.BookDepth.WithLabelValues("bid").Set(float64(bids))
	m.BookDepth.WithLabelValues("ask").Set(float64(asks))
}

func (m *Metrics) Throughput(perSec float64) {
	if m == nil {
		return
	}
	m.EngineThroughput.Set(perSec)
}

func (m *Metrics) Latency(ns uint64) {
	if m == nil {
		return
	}
	m.NotificationLatency.Observe(float64(ns))
}
