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
	analysisRuns     *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	modeTransitions  *prometheus.CounterVec
	statusResolved   *prometheus.CounterVec
	actionsBlocked   *prometheus.CounterVec
	cachedSymbols    prometheus.Gauge
	rateLimited      prometheus.Counter
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
	r.analysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compass_analysis_runs_total",
			Help: "Total number of analysis runs",
		},
		[]string{"data_mode", "posture"},
	)
	r.analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compass_analysis_duration_seconds",
			Help:    "Analysis run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	r.modeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compass_mode_transitions_total",
			Help: "Total number of data mode transitions",
		},
		[]string{"from", "to"},
	)
	r.statusResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compass_market_status_resolutions_total",
			Help: "Total number of market status resolutions",
		},
		[]string{"status"},
	)
	r.actionsBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compass_actions_blocked_total",
			Help: "Total number of actions blocked by guardrails",
		},
		[]string{"reason"},
	)
	r.cachedSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "compass_cached_symbols",
			Help: "Number of symbols in the historical cache",
		},
	)
	r.rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "compass_rate_limited_requests_total",
			Help: "Total number of requests rejected by rate limiting",
		},
	)

	reg.MustRegister(r.analysisRuns)
	reg.MustRegister(r.analysisDuration)
	reg.MustRegister(r.modeTransitions)
	reg.MustRegister(r.statusResolved)
	reg.MustRegister(r.actionsBlocked)
	reg.MustRegister(r.cachedSymbols)
	reg.MustRegister(r.rateLimited)

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

// RecordAnalysisRun records a completed analysis run.
func (r *Registry) RecordAnalysisRun(dataMode, posture string, duration float64) {
	r.analysisRuns.WithLabelValues(dataMode, posture).Inc()
	r.analysisDuration.Observe(duration)
}

// RecordModeTransition records a data mode transition.
func (r *Registry) RecordModeTransition(from, to string) {
	r.modeTransitions.WithLabelValues(from, to).Inc()
}

// RecordStatusResolution records a market status resolution.
func (r *Registry) RecordStatusResolution(status string) {
	r.statusResolved.WithLabelValues(status).Inc()
}

// RecordBlockedAction records an action blocked by guardrails.
func (r *Registry) RecordBlockedAction(reason string) {
	r.actionsBlocked.WithLabelValues(reason).Inc()
}

// SetCachedSymbols sets the historical cache symbol count.
func (r *Registry) SetCachedSymbols(count int) {
	r.cachedSymbols.Set(float64(count))
}

// RecordRateLimited records a rate-limited request.
func (r *Registry) RecordRateLimited() {
	r.rateLimited.Inc()
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
