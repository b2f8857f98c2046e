// Package metrics exposes the service's prometheus metrics. It also observes the
// case lifecycle.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/missingalert/missing-alert-api/lifecycle"
	"github.com/missingalert/missing-alert-api/models"
)

const namespace = "missing_alert"

// Metrics holds every collector the service reports
type Metrics struct {
	CasesCreated    prometheus.Counter
	Transitions     *prometheus.CounterVec
	Dismissals      prometheus.Counter
	NumberFallbacks prometheus.Counter
	EmailsSent      *prometheus.CounterVec
	FeedClients     prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CasesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_created_total",
			Help:      "Cases reported.",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "case_transitions_total",
			Help:      "Case status updates by previous and new status.",
		}, []string{"from", "to"}),
		Dismissals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "case_dismissals_total",
			Help:      "Case dismissals.",
		}),
		NumberFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "case_number_fallbacks_total",
			Help:      "Cases numbered with the timestamp fallback.",
		}),
		EmailsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Transactional emails by template and result.",
		}, []string{"template", "result"}),
		FeedClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected live case feed clients.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// EmailSent counts one email attempt
func (m *Metrics) EmailSent(template string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.EmailsSent.WithLabelValues(template, result).Inc()
}

// CaseCreated implements lifecycle.Observer
func (m *Metrics) CaseCreated(context.Context, models.Case) {
	m.CasesCreated.Inc()
}

// StatusChanged implements lifecycle.Observer
func (m *Metrics) StatusChanged(_ context.Context, _ models.Case, change lifecycle.StatusChange) {
	m.Transitions.WithLabelValues(string(change.OldStatus), string(change.NewStatus)).Inc()
}

// CaseDismissed implements lifecycle.Observer
func (m *Metrics) CaseDismissed(context.Context, models.Case, lifecycle.Dismissal) {
	m.Dismissals.Inc()
}

// CaseNumberFallback implements lifecycle.Observer
func (m *Metrics) CaseNumberFallback(context.Context, error) {
	m.NumberFallbacks.Inc()
}
