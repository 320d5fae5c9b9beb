package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Pipeline metrics
	fetchRequests  *prometheus.CounterVec
	fetchRetries   *prometheus.CounterVec
	cycles         prometheus.Counter
	cycleDuration  prometheus.Histogram
	instruments    *prometheus.CounterVec
	cycleSaved     prometheus.Gauge
	lastCycleEpoch prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Pipeline metrics
	r.fetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_fetch_requests_total",
			Help: "Total number of upstream fetches by source and result",
		},
		[]string{"source", "result"},
	)
	r.fetchRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_fetch_retries_total",
			Help: "Total number of retried upstream requests",
		},
		[]string{"source"},
	)
	r.cycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "radar_cycles_total",
			Help: "Total number of fetch cycles completed",
		},
	)
	r.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "radar_cycle_duration_seconds",
			Help:    "Fetch cycle duration in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
		},
	)
	r.instruments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radar_instruments_total",
			Help: "Total number of instruments processed by result",
		},
		[]string{"result"},
	)
	r.cycleSaved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_last_cycle_saved",
			Help: "Rows saved by the last fetch cycle",
		},
	)
	r.lastCycleEpoch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "radar_last_cycle_timestamp_seconds",
			Help: "Unix time the last fetch cycle finished",
		},
	)

	reg.MustRegister(r.fetchRequests)
	reg.MustRegister(r.fetchRetries)
	reg.MustRegister(r.cycles)
	reg.MustRegister(r.cycleDuration)
	reg.MustRegister(r.instruments)
	reg.MustRegister(r.cycleSaved)
	reg.MustRegister(r.lastCycleEpoch)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordFetch records one upstream fetch outcome.
func (r *Registry) RecordFetch(source, result string) {
	r.fetchRequests.WithLabelValues(source, result).Inc()
}

// RecordRetry records a retried upstream request.
func (r *Registry) RecordRetry(source string) {
	r.fetchRetries.WithLabelValues(source).Inc()
}

// RecordCycle records a fetch cycle completion.
func (r *Registry) RecordCycle(duration time.Duration, saved, failed int) {
	r.cycles.Inc()
	r.cycleDuration.Observe(duration.Seconds())
	r.instruments.WithLabelValues("saved").Add(float64(saved))
	r.instruments.WithLabelValues("failed").Add(float64(failed))
	r.cycleSaved.Set(float64(saved))
	r.lastCycleEpoch.SetToCurrentTime()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
