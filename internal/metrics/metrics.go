package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curriculumhub_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curriculumhub_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 生成调用指标
var (
	// GenerationAttemptsTotal 后端调用次数（含重试）
	GenerationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curriculumhub_ai_generation_attempts_total",
			Help: "AI 后端调用次数（含重试）",
		},
		[]string{"model", "status"}, // status: success, error
	)

	// GenerationOutcomesTotal 生成结果数量
	GenerationOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curriculumhub_ai_generation_outcomes_total",
			Help: "AI 生成结果数量",
		},
		[]string{"result", "reason"}, // result: generated, fallback
	)

	// GenerationDuration 生成总耗时（秒，含重试与退避）
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curriculumhub_ai_generation_duration_seconds",
			Help:    "AI 生成总耗时分布",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"result"},
	)

	// ClassifiedErrorsTotal 分类后的错误数量
	ClassifiedErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curriculumhub_ai_errors_total",
			Help: "按分类统计的 AI 错误数量",
		},
		[]string{"kind", "component"},
	)

	// ErrorPersistFailuresTotal 错误记录持久化失败次数
	ErrorPersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curriculumhub_ai_error_persist_failures_total",
			Help: "错误记录写入失败次数",
		},
	)
)

// 诊断指标
var (
	// DiagnosticsRunsTotal 诊断运行次数
	DiagnosticsRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curriculumhub_diagnostics_runs_total",
			Help: "诊断运行次数",
		},
		[]string{"status"}, // healthy, degraded, critical
	)

	// DiagnosticsProbeSuccess 最近一次探针结果（1 成功，0 失败）
	DiagnosticsProbeSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curriculumhub_diagnostics_probe_success",
			Help: "最近一次诊断探针结果",
		},
		[]string{"probe"},
	)

	// DiagnosticsDuration 诊断耗时（秒）
	DiagnosticsDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curriculumhub_diagnostics_duration_seconds",
			Help:    "诊断运行耗时分布",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

// BoolValue 将布尔值转换为 Gauge 数值
func BoolValue(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// 数据库指标
var (
	// DBQueriesTotal SQL 执行次数
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curriculumhub_db_queries_total",
			Help: "SQL 执行次数",
		},
		[]string{"result"}, // ok, slow, error
	)
)
