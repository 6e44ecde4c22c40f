// Package metrics provides Prometheus metrics for the creatorboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Cycle metrics
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	emissions     *prometheus.CounterVec

	// Ingestion metrics
	postsIngested *prometheus.CounterVec
	mentions      *prometheus.CounterVec
	dailyWinners  prometheus.Counter
	dedupeSize    prometheus.Gauge

	// Outbox and publisher metrics
	outboxSize     prometheus.Gauge
	outboxDropped  prometheus.Counter
	publishes      *prometheus.CounterVec
	publishLatency prometheus.Histogram

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	storeRecords *prometheus.GaugeVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "creatorboard",
		subsystem:        "campaign",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.cycles = m.counterVec("cycles_total", "Ingestion cycles by result", "result")
	m.cycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycle_duration_milliseconds",
		Help:      "Wall time of a fetch and ingest pass",
		Buckets:   m.histogramBuckets,
	})
	m.emissions = m.counterVec("emissions_total", "Scheduled announcements queued by kind", "kind")

	m.postsIngested = m.counterVec("posts_ingested_total", "Campaign posts seen by outcome", "outcome")
	m.mentions = m.counterVec("mentions_total", "Mentions seen by outcome", "outcome")
	m.dailyWinners = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "daily_winners_total",
		Help:      "Daily winners finalized",
	})
	m.dedupeSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dedupe_size",
		Help:      "Mention delivery ids currently remembered",
	})

	m.outboxSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "outbox_size",
		Help:      "Outbound messages waiting to be published",
	})
	m.outboxDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "outbox_dropped_total",
		Help:      "Outbound messages rejected because the outbox was full or closed",
	})
	m.publishes = m.counterVec("publishes_total", "Publish attempts by result", "result")
	m.publishLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_latency_milliseconds",
		Help:      "Latency of outbound publish calls",
		Buckets:   m.histogramBuckets,
	})

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Entity store operation latency", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Entity store failures", "op")
	m.storeRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_records",
		Help:      "Rows per entity table",
	}, []string{"table"})

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")
}

// Manager recorders.

func (m *Manager) RecordCycle(result string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(durationMs)
}

func (m *Manager) RecordEmission(kind string) {
	if m.enabled {
		m.emissions.WithLabelValues(kind).Inc()
	}
}

func (m *Manager) RecordPostIngested(outcome string) {
	if m.enabled {
		m.postsIngested.WithLabelValues(outcome).Inc()
	}
}

func (m *Manager) RecordMention(outcome string) {
	if m.enabled {
		m.mentions.WithLabelValues(outcome).Inc()
	}
}

func (m *Manager) RecordDailyWinner() {
	if m.enabled {
		m.dailyWinners.Inc()
	}
}

func (m *Manager) UpdateDedupeSize(size int64) {
	if m.enabled {
		m.dedupeSize.Set(float64(size))
	}
}

func (m *Manager) UpdateOutboxSize(size int) {
	if m.enabled {
		m.outboxSize.Set(float64(size))
	}
}

func (m *Manager) RecordOutboxDropped() {
	if m.enabled {
		m.outboxDropped.Inc()
	}
}

func (m *Manager) RecordPublish(result string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.publishes.WithLabelValues(result).Inc()
	m.publishLatency.Observe(latencyMs)
}

func (m *Manager) RecordStoreLatency(op string, latencyMs float64) {
	if m.enabled {
		m.storeLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

func (m *Manager) RecordStoreError(op string) {
	if m.enabled {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

func (m *Manager) UpdateStoreRecords(table string, count int) {
	if m.enabled {
		m.storeRecords.WithLabelValues(table).Set(float64(count))
	}
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func (m *Manager) RecordErrorByComponent(component, errorType string) {
	if m.enabled {
		m.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// Global convenience functions.

// GetRegistry returns the registry the global manager publishes to.
func GetRegistry() *prometheus.Registry { return customRegistry }

func RecordCycle(result string, durationMs float64) { globalManager.RecordCycle(result, durationMs) }
func RecordEmission(kind string)                    { globalManager.RecordEmission(kind) }
func RecordPostIngested(outcome string)             { globalManager.RecordPostIngested(outcome) }
func RecordMention(outcome string)                  { globalManager.RecordMention(outcome) }
func RecordDailyWinner()                            { globalManager.RecordDailyWinner() }
func UpdateDedupeSize(size int64)                   { globalManager.UpdateDedupeSize(size) }
func UpdateOutboxSize(size int)                     { globalManager.UpdateOutboxSize(size) }
func RecordOutboxDropped()                          { globalManager.RecordOutboxDropped() }
func RecordPublish(result string, latencyMs float64) {
	globalManager.RecordPublish(result, latencyMs)
}
func RecordStoreLatency(op string, latencyMs float64) { globalManager.RecordStoreLatency(op, latencyMs) }
func RecordStoreError(op string)                      { globalManager.RecordStoreError(op) }
func UpdateStoreRecords(table string, count int)      { globalManager.UpdateStoreRecords(table, count) }
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}
