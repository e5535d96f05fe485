// Package metrics exposes Prometheus instrumentation for aggregator calls, selections and statement pulls
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	AggregatorRequests *prometheus.CounterVec
	AggregatorLatency  *prometheus.HistogramVec
	Selections         *prometheus.CounterVec
	StatementLines     *prometheus.CounterVec
	Pulls              *prometheus.CounterVec
	Sessions           prometheus.Gauge
}

// New registers the collectors on reg. Use prometheus.DefaultRegisterer to serve them from promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AggregatorRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banklink_aggregator_requests_total",
			Help: "Total number of requests sent to statement aggregators",
		}, []string{"service", "operation", "outcome"}),
		AggregatorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "banklink_aggregator_request_duration_seconds",
			Help:    "Duration of requests sent to statement aggregators",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		Selections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banklink_institution_selections_total",
			Help: "Total number of institution selections submitted",
		}, []string{"service", "outcome"}),
		StatementLines: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banklink_statement_lines_imported_total",
			Help: "Total number of new statement lines imported",
		}, []string{"source"}),
		Pulls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banklink_statement_pulls_total",
			Help: "Total number of provider statement pulls",
		}, []string{"service", "outcome"}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "banklink_selector_sessions",
			Help: "Current number of open institution selector sessions",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObserveRequest records an aggregator request which started at 'start'
func (m *Metrics) ObserveRequest(service, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.AggregatorRequests.WithLabelValues(service, operation, outcome(err)).Inc()
	m.AggregatorLatency.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}

// ObserveSelection records a submitted institution selection
func (m *Metrics) ObserveSelection(service string, err error) {
	if m == nil {
		return
	}
	m.Selections.WithLabelValues(service, outcome(err)).Inc()
}

// AddStatementLines records newly imported statement lines
func (m *Metrics) AddStatementLines(source string, count int) {
	if m == nil {
		return
	}
	m.StatementLines.WithLabelValues(source).Add(float64(count))
}

// ObservePull records a provider statement pull
func (m *Metrics) ObservePull(service string, err error) {
	if m == nil {
		return
	}
	m.Pulls.WithLabelValues(service, outcome(err)).Inc()
}

// SetSessions sets the number of open selector sessions
func (m *Metrics) SetSessions(count int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(count))
}
