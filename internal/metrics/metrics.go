package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the indexing pipeline. All methods
// are nil-safe so call sites don't need to guard on metrics being enabled.
type Metrics struct {
	eventsDecoded  prometheus.Counter
	eventsIndexed  prometheus.Counter
	decodeFailures prometheus.Counter
	indexFailures  prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			eventsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "dotgo_indexer_events_decoded_total",
				Help: "Total number of chain events decoded into canonical form",
			}),
			eventsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "dotgo_indexer_events_indexed_total",
				Help: "Total number of records written to the store",
			}),
			decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "dotgo_indexer_decode_failures_total",
				Help: "Total number of chain events dropped at the decode/normalize boundary",
			}),
			indexFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "dotgo_indexer_index_failures_total",
				Help: "Total number of failed store writes",
			}),
		}
		prometheus.MustRegister(
			metrics.eventsDecoded,
			metrics.eventsIndexed,
			metrics.decodeFailures,
			metrics.indexFailures,
		)
	})
	return metrics
}

// EventDecoded increments the decoded events counter.
func (m *Metrics) EventDecoded() {
	if m != nil {
		m.eventsDecoded.Inc()
	}
}

// EventIndexed increments the indexed events counter.
func (m *Metrics) EventIndexed() {
	if m != nil {
		m.eventsIndexed.Inc()
	}
}

// DecodeFailed increments the dropped-event counter.
func (m *Metrics) DecodeFailed() {
	if m != nil {
		m.decodeFailures.Inc()
	}
}

// IndexFailed increments the failed-write counter.
func (m *Metrics) IndexFailed() {
	if m != nil {
		m.indexFailures.Inc()
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
