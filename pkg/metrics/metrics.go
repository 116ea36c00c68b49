package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	// OutcomeSkipped marks a refresh that was not attempted because the
	// session is not persistent.
	OutcomeSkipped = "skipped"
)

// Metrics holds the client-side collectors. All methods are safe on a nil
// receiver so components can run without instrumentation.
type Metrics struct {
	Registry *prometheus.Registry

	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	refreshes *prometheus.CounterVec
	waiters   prometheus.Counter
	replays   prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meeple_http_requests_total",
			Help: "API requests by method and final status code (0 = transport error).",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meeple_http_request_duration_seconds",
			Help:    "API request latency, including any refresh-and-replay.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meeple_token_refresh_total",
			Help: "Access token refresh attempts by outcome.",
		}, []string{"outcome"}),
		waiters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meeple_refresh_waiters_total",
			Help: "Requests that queued behind an in-flight refresh.",
		}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meeple_request_replays_total",
			Help: "Requests redispatched with a refreshed token.",
		}),
	}
	m.Registry.MustRegister(m.requests, m.duration, m.refreshes, m.waiters, m.replays)
	return m
}

func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncWaiters() {
	if m == nil {
		return
	}
	m.waiters.Inc()
}

func (m *Metrics) IncReplays() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
