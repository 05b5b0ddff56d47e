package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

/* ========================================================================
 * Gateway Metrics - 上游网关指标
 * ========================================================================
 * 职责: 上游调用、连接池、熔断、重试、代理的 Prometheus 指标
 * ======================================================================== */

var (
	// UpstreamRequestTotal 上游请求总数
	// outcome: ok, status_4xx, status_5xx, pool_exhausted, timeout, transport, circuit_open, canceled
	UpstreamRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "upstream",
			Name:      "request_total",
			Help:      "Total number of upstream requests by outcome",
		},
		[]string{"host", "method", "outcome"},
	)

	// UpstreamRequestDuration 上游请求延迟（含排队）
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gateway",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"host", "method"},
	)

	// UpstreamInflight 正在进行的上游请求数
	UpstreamInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "upstream",
			Name:      "inflight",
			Help:      "Number of upstream requests holding a pool slot",
		},
	)

	// CircuitBreakerState 熔断器状态 0=closed 1=half-open 2=open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitions 熔断器状态迁移次数
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "circuit_breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// ClientCallTotal 类型化客户端调用结果
	// result: ok, empty
	ClientCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "client",
			Name:      "call_total",
			Help:      "Typed client operations by result",
		},
		[]string{"operation", "result"},
	)

	// RetryAttemptsTotal 重试策略的尝试次数
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Attempts made by the retry policy",
		},
		[]string{"result"}, // success, failure
	)

	// RetryOutcomeTotal 重试策略最终状态
	// outcome: success, absent, fallback, canceled
	RetryOutcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "retry",
			Name:      "outcome_total",
			Help:      "Terminal states reached by the retry policy",
		},
		[]string{"outcome"},
	)

	// ProxyRequestTotal 透传代理请求数
	ProxyRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "proxy",
			Name:      "request_total",
			Help:      "Passthrough proxy requests by target kind and status",
		},
		[]string{"method", "target", "status"},
	)

	// ChallengeTotal 验证码签发 / 校验次数
	ChallengeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "challenge",
			Name:      "total",
			Help:      "Challenge codes issued and verified",
		},
		[]string{"op", "result"},
	)
)
