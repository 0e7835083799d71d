// Package metrics 定义了服务的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_assistant_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_assistant_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_assistant_llm_calls_total",
			Help: "Completion model calls by purpose and status.",
		},
		[]string{"purpose", "status"},
	)

	llmCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shop_assistant_llm_call_duration_seconds",
			Help:    "Completion model call latency by purpose.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"purpose"},
	)

	queryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_assistant_query_attempts_total",
			Help: "Generated query execution attempts by result.",
		},
		[]string{"result"},
	)

	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_assistant_chat_turns_total",
			Help: "Completed chat turns by path and outcome.",
		},
		[]string{"path", "outcome"},
	)

	auditIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_assistant_audit_indexed_total",
			Help: "Query audit records consumed from Kafka by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		llmCallsTotal,
		llmCallDurationSeconds,
		queryAttemptsTotal,
		chatTurnsTotal,
		auditIndexedTotal,
	)
}

func ObserveHTTPRequest(method, path, status string, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
}

func ObserveLLMCall(purpose string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	if purpose == "" {
		purpose = "unknown"
	}
	llmCallsTotal.WithLabelValues(purpose, status).Inc()
	llmCallDurationSeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

// ObserveQueryAttempt result: ok | empty | failed
func ObserveQueryAttempt(result string) {
	queryAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveChatTurn path: data | conversation; outcome: table | chart | error | text | cancelled
func ObserveChatTurn(path, outcome string) {
	chatTurnsTotal.WithLabelValues(path, outcome).Inc()
}

func ObserveAuditIndexed(ok bool) {
	if ok {
		auditIndexedTotal.WithLabelValues("ok").Inc()
		return
	}
	auditIndexedTotal.WithLabelValues("error").Inc()
}
