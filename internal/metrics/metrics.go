// Package metrics bundles Prometheus collectors for catalog traffic and ingestion.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds collectors registered on a dedicated registry.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec
	BooksIngested   prometheus.Counter
	IngestFailures  *prometheus.CounterVec
	SortKeyLookups  *prometheus.CounterVec
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "libris_catalog_requests_total",
			Help: "Total HTTP requests issued against the catalog.",
		},
		[]string{"endpoint"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "libris_catalog_request_duration_seconds",
			Help:    "Catalog request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "libris_catalog_errors_total",
			Help: "Catalog failures by error type.",
		},
		[]string{"error_type"},
	)
	ingested := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "libris_books_ingested_total",
			Help: "Books committed to the library.",
		},
	)
	ingestFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "libris_ingest_failures_total",
			Help: "Rejected or failed ingestions by reason.",
		},
		[]string{"reason"},
	)
	sortLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "libris_sort_key_lookups_total",
			Help: "Sort key resolutions by source (stored or heuristic).",
		},
		[]string{"kind", "source"},
	)

	registry.MustRegister(requests, duration, errorsTotal, ingested, ingestFailures, sortLookups)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: duration,
		ErrorsTotal:     errorsTotal,
		BooksIngested:   ingested,
		IngestFailures:  ingestFailures,
		SortKeyLookups:  sortLookups,
	}
}

// ObserveRequest counts a catalog request and records its latency.
func (m *Metrics) ObserveRequest(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncError increments the error counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncIngested counts a committed book.
func (m *Metrics) IncIngested() {
	if m == nil {
		return
	}
	m.BooksIngested.Inc()
}

// IncIngestFailure counts a failed ingestion.
func (m *Metrics) IncIngestFailure(reason string) {
	if m == nil {
		return
	}
	m.IngestFailures.WithLabelValues(reason).Inc()
}

// IncSortKeyLookup counts where a sort key came from.
func (m *Metrics) IncSortKeyLookup(kind, source string) {
	if m == nil {
		return
	}
	m.SortKeyLookups.WithLabelValues(kind, source).Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
