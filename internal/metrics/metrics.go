package metrics

import (
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

	// Business metrics
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	backtestsViewed  *prometheus.CounterVec
	backtestsCreated *prometheus.CounterVec
	selectionChanges *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
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

	// Business metrics
	r.upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhunle_upstream_requests_total",
			Help: "Total number of requests to the backtest service",
		},
		[]string{"endpoint", "status"},
	)
	r.upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zhunle_upstream_request_duration_seconds",
			Help:    "Backtest service request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)
	r.backtestsViewed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhunle_backtests_viewed_total",
			Help: "Total number of backtest page renders",
		},
		[]string{"status"},
	)
	r.backtestsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhunle_backtests_created_total",
			Help: "Total number of submitted backtests",
		},
		[]string{"status"},
	)
	r.selectionChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhunle_selection_changes_total",
			Help: "Total number of selection transitions",
		},
		[]string{"action"},
	)
	r.sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zhunle_sessions_active",
			Help: "Number of live viewer sessions",
		},
	)

	reg.MustRegister(r.upstreamRequests)
	reg.MustRegister(r.upstreamDuration)
	reg.MustRegister(r.backtestsViewed)
	reg.MustRegister(r.backtestsCreated)
	reg.MustRegister(r.selectionChanges)
	reg.MustRegister(r.sessionsActive)

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

// RecordUpstream records a call to the backtest service.
func (r *Registry) RecordUpstream(endpoint, status string, duration float64) {
	r.upstreamRequests.WithLabelValues(endpoint, status).Inc()
	r.upstreamDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordBacktestView records a backtest page render.
func (r *Registry) RecordBacktestView(status string) {
	r.backtestsViewed.WithLabelValues(status).Inc()
}

// RecordBacktestCreated records a backtest submission.
func (r *Registry) RecordBacktestCreated(status string) {
	r.backtestsCreated.WithLabelValues(status).Inc()
}

// RecordSelection records a selection transition.
func (r *Registry) RecordSelection(action string) {
	r.selectionChanges.WithLabelValues(action).Inc()
}

// SetSessionsActive sets the number of live sessions.
func (r *Registry) SetSessionsActive(count int) {
	r.sessionsActive.Set(float64(count))
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
