package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Confirmation Metrics
	confirmationOutcomesTotal *prometheus.CounterVec
	confirmationAttempts      *prometheus.HistogramVec

	// Token Operation Metrics
	tokenOperationsTotal     *prometheus.CounterVec
	tokenOperationDuration   *prometheus.HistogramVec
	tokenAccountsCreated     *prometheus.CounterVec
	historyFetchesTotal      *prometheus.CounterVec
	historyRecordsPerFetch   prometheus.Histogram
	walletSessionTransitions *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		// Confirmation Metrics
		confirmationOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_confirmation_outcomes_total",
				Help: "Total number of confirmation polls by terminal outcome",
			},
			[]string{"outcome"},
		),
		confirmationAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_confirmation_attempts",
				Help:    "Number of status polls needed to reach a terminal outcome",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		// Token Operation Metrics
		tokenOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_operations_total",
				Help: "Total number of token operations by operation and result kind",
			},
			[]string{"operation", "result"},
		),
		tokenOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "token_operation_duration_seconds",
				Help:    "Duration of token operations in seconds, including confirmation",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		tokenAccountsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_associated_accounts_created_total",
				Help: "Total number of associated token accounts created on demand",
			},
			[]string{"status"},
		),
		historyFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "history_fetches_total",
				Help: "Total number of transaction history fetches",
			},
			[]string{"status"},
		),
		historyRecordsPerFetch: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "history_records_per_fetch",
				Help:    "Number of transactions returned per history fetch",
				Buckets: []float64{0, 1, 2, 5, 10, 25},
			},
		),
		walletSessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_session_transitions_total",
				Help: "Total number of wallet connect/disconnect attempts",
			},
			[]string{"action", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordConfirmation records the terminal outcome of a confirmation poll.
func (m *Metrics) RecordConfirmation(outcome string, attempts int) {
	m.confirmationOutcomesTotal.WithLabelValues(outcome).Inc()
	m.confirmationAttempts.WithLabelValues(outcome).Observe(float64(attempts))
}

// Token operation metric helpers

// RecordTokenOperation records a finished token operation. Result is "success"
// or the error kind that ended it.
func (m *Metrics) RecordTokenOperation(operation, result string, duration float64) {
	m.tokenOperationsTotal.WithLabelValues(operation, result).Inc()
	m.tokenOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordTokenAccountCreated records an on-demand associated account creation.
func (m *Metrics) RecordTokenAccountCreated(status string) {
	m.tokenAccountsCreated.WithLabelValues(status).Inc()
}

// RecordHistoryFetch records a history fetch and how many records it returned.
func (m *Metrics) RecordHistoryFetch(status string, records int) {
	m.historyFetchesTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.historyRecordsPerFetch.Observe(float64(records))
	}
}

// RecordSessionTransition records a wallet connect or disconnect attempt.
func (m *Metrics) RecordSessionTransition(action, status string) {
	m.walletSessionTransitions.WithLabelValues(action, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
