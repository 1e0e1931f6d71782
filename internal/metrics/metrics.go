// Package metrics tracks Prometheus metrics for the bridge: invocation
// counts and latency, bytes moved across the main channel, and
// deferred-writer (sub-channel) latency and failures.
//
// All metrics use the witrpc_ prefix. Metrics are designed for
// observability into invocation behavior without affecting performance when
// the metrics server is disabled (client/serve/polyfill never construct a
// *Metrics directly; they're always handed one, and a nil *Metrics is a
// valid no-op).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks bridge-wide Prometheus metrics.
type Metrics struct {
	// InvocationsTotal counts completed invocations by instance, function,
	// and outcome ("ok", "error", "timeout").
	InvocationsTotal *prometheus.CounterVec

	// InvocationDuration tracks invocation latency distribution.
	InvocationDuration *prometheus.HistogramVec

	// BytesWritten counts bytes written to the main channel, by direction
	// ("params", "results").
	BytesWritten *prometheus.CounterVec

	// BytesRead counts bytes read from the main channel, by direction.
	BytesRead *prometheus.CounterVec

	// DeferredWritersTotal counts deferred sub-channel writers run, by
	// outcome ("ok", "error").
	DeferredWritersTotal *prometheus.CounterVec

	// DeferredWriterDuration tracks deferred sub-channel writer latency.
	DeferredWriterDuration prometheus.Histogram

	// ResourceTableSize tracks the current number of live entries in a
	// resource.Table.
	ResourceTableSize prometheus.Gauge
}

// New creates bridge metrics and registers them against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "witrpc_invocations_total",
				Help: "Total invocations by instance, function, and outcome",
			},
			[]string{"instance", "function", "outcome"},
		),
		InvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "witrpc_invocation_duration_seconds",
				Help:    "Invocation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"instance", "function"},
		),
		BytesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "witrpc_bytes_written_total",
				Help: "Total bytes written to the main channel",
			},
			[]string{"direction"},
		),
		BytesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "witrpc_bytes_read_total",
				Help: "Total bytes read from the main channel",
			},
			[]string{"direction"},
		),
		DeferredWritersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "witrpc_deferred_writers_total",
				Help: "Total deferred sub-channel writers run, by outcome",
			},
			[]string{"outcome"},
		),
		DeferredWriterDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "witrpc_deferred_writer_duration_seconds",
				Help:    "Deferred sub-channel writer duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ResourceTableSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "witrpc_resource_table_size",
				Help: "Current number of live entries in a resource table",
			},
		),
	}

	reg.MustRegister(
		m.InvocationsTotal,
		m.InvocationDuration,
		m.BytesWritten,
		m.BytesRead,
		m.DeferredWritersTotal,
		m.DeferredWriterDuration,
		m.ResourceTableSize,
	)

	return m
}

// RecordInvocation records one completed invocation.
func (m *Metrics) RecordInvocation(instance, function, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.InvocationsTotal.WithLabelValues(instance, function, outcome).Inc()
	m.InvocationDuration.WithLabelValues(instance, function).Observe(durationSeconds)
}

// RecordBytesWritten records n bytes written in the given direction
// ("params" or "results").
func (m *Metrics) RecordBytesWritten(direction string, n int) {
	if m == nil {
		return
	}
	m.BytesWritten.WithLabelValues(direction).Add(float64(n))
}

// RecordBytesRead records n bytes read in the given direction.
func (m *Metrics) RecordBytesRead(direction string, n int) {
	if m == nil {
		return
	}
	m.BytesRead.WithLabelValues(direction).Add(float64(n))
}

// RecordDeferredWriter records one deferred sub-channel writer completion.
func (m *Metrics) RecordDeferredWriter(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.DeferredWritersTotal.WithLabelValues(outcome).Inc()
	m.DeferredWriterDuration.Observe(durationSeconds)
}

// SetResourceTableSize updates the resource table size gauge.
func (m *Metrics) SetResourceTableSize(n int) {
	if m == nil {
		return
	}
	m.ResourceTableSize.Set(float64(n))
}

// Null returns nil, which acts as a no-op metrics collector; every Metrics
// method handles a nil receiver gracefully.
func Null() *Metrics {
	return nil
}
