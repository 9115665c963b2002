package httpd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects server counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	requests     prometheus.Counter
	overflows    prometheus.Counter
	malformed    prometheus.Counter
	sessions     prometheus.Gauge
	requestSize  prometheus.Histogram
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	writeErrors  prometheus.Counter
}

// NewMetrics registers the server metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ehttpd",
			Name:      "requests_total",
			Help:      "Total number of completed requests handed to the handler",
		}),
		overflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ehttpd",
			Name:      "buffer_overflows_total",
			Help:      "Total number of connections closed for exceeding the request buffer limit",
		}),
		malformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ehttpd",
			Name:      "malformed_requests_total",
			Help:      "Total number of connections closed for a parse error",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ehttpd",
			Name:      "sessions_active",
			Help:      "Number of open client sessions",
		}),
		requestSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ehttpd",
			Name:      "request_buffer_bytes",
			Help:      "Bytes held by the request buffer at completion",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),
		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ehttpd",
			Subsystem: "transport",
			Name:      "read_bytes_total",
			Help:      "Total bytes read from clients",
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ehttpd",
			Subsystem: "transport",
			Name:      "written_bytes_total",
			Help:      "Total bytes written to clients",
		}),
		writeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ehttpd",
			Subsystem: "transport",
			Name:      "write_errors_total",
			Help:      "Total number of failed writes",
		}),
	}
}

func (m *Metrics) requestCompleted(size int) {
	if m == nil {
		return
	}
	m.requests.Inc()
	m.requestSize.Observe(float64(size))
}

func (m *Metrics) overflowed() {
	if m != nil {
		m.overflows.Inc()
	}
}

func (m *Metrics) malformedRequest() {
	if m != nil {
		m.malformed.Inc()
	}
}

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) sessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

// AddBytesRead records bytes received by a transport.
func (m *Metrics) AddBytesRead(n uint64) {
	if m != nil && n > 0 {
		m.bytesRead.Add(float64(n))
	}
}

// AddBytesWritten records bytes sent by a transport.
func (m *Metrics) AddBytesWritten(n uint64) {
	if m != nil && n > 0 {
		m.bytesWritten.Add(float64(n))
	}
}

// WriteFailed records a failed write.
func (m *Metrics) WriteFailed() {
	if m != nil {
		m.writeErrors.Inc()
	}
}
