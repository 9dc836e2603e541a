package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LLM provider 调用延迟（毫秒）
	ProviderCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_latency_ms",
			Help:    "LLM provider completion latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"provider", "status"},
	)

	// Collaborator（邮件/日历/CRM）调用延迟（毫秒）
	CollaboratorCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collaborator_call_latency_ms",
			Help:    "External collaborator call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10ms to ~40s
		},
		[]string{"collaborator", "operation", "status"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// 动作执行计数
	ActionDispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "action_dispatch_count",
			Help: "Total number of dispatched actions",
		},
		[]string{"action", "status"}, // status: success, failed
	)

	// 自动化规则执行计数
	RuleExecutionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_rule_execution_count",
			Help: "Total number of automation rule executions",
		},
		[]string{"trigger", "status"}, // status: success, partial, failed, skipped, duplicate
	)
)

// RecordProviderCallLatency 记录 provider 调用延迟
func RecordProviderCallLatency(provider, status string, duration time.Duration) {
	ProviderCallLatency.WithLabelValues(provider, status).Observe(float64(duration.Milliseconds()))
}

// RecordCollaboratorCallLatency 记录 collaborator 调用延迟
func RecordCollaboratorCallLatency(collaborator, operation, status string, duration time.Duration) {
	CollaboratorCallLatency.WithLabelValues(collaborator, operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementActionDispatch 增加动作执行计数
func IncrementActionDispatch(action, status string) {
	ActionDispatchCount.WithLabelValues(action, status).Inc()
}

// IncrementRuleExecution 增加规则执行计数
func IncrementRuleExecution(trigger, status string) {
	RuleExecutionCount.WithLabelValues(trigger, status).Inc()
}
