// Package observability provides Prometheus metrics and health checks for
// the chat server.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for chat turns and generations.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// Trigger labels for session removal.
const (
	TriggerAdmin    = "admin"
	TriggerSchedule = "schedule"
)

const namespace = "jenkinsbot"

// Metrics holds the Prometheus collectors of the chat server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	chatTurnsTotal       *prometheus.CounterVec
	generationDuration   *prometheus.HistogramVec
	promptTokens         prometheus.Histogram
	activeSessions       prometheus.Gauge
	sessionsRemovedTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		chatTurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_turns_total",
				Help:      "Total number of chat turns by outcome",
			},
			[]string{"outcome"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Inference engine latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		promptTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prompt_tokens",
				Help:      "Estimated prompt size in tokens",
				Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of sessions in the store",
			},
		),
		sessionsRemovedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_removed_total",
				Help:      "Total number of expired sessions removed",
			},
			[]string{"trigger"},
		),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.chatTurnsTotal,
		m.generationDuration,
		m.promptTokens,
		m.activeSessions,
		m.sessionsRemovedTotal,
	)
	return m
}

// MetricsHandler returns an HTTP handler exposing the metrics of g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordChatTurn counts a finished chat turn
func (m *Metrics) RecordChatTurn(outcome string) {
	if m == nil {
		return
	}
	m.chatTurnsTotal.WithLabelValues(outcome).Inc()
}

// ObserveGeneration records inference latency
func (m *Metrics) ObserveGeneration(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObservePromptTokens records the estimated size of a prompt
func (m *Metrics) ObservePromptTokens(tokens int) {
	if m == nil {
		return
	}
	m.promptTokens.Observe(float64(tokens))
}

// SetActiveSessions sets the active sessions gauge
func (m *Metrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

// RecordSessionsRemoved adds removed sessions to the counter
func (m *Metrics) RecordSessionsRemoved(trigger string, count int) {
	if m == nil {
		return
	}
	m.sessionsRemovedTotal.WithLabelValues(trigger).Add(float64(count))
}
