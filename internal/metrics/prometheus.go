// Package metrics 实现 Prometheus 指标导出
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus 指标
var (
	// VerdictsTotal 按状态统计的裁决总数
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_verdicts_total",
			Help: "Total number of risk verdicts produced, by status",
		},
		[]string{"status"},
	)

	// ScoringErrors 按错误类型统计的评分失败数
	ScoringErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_scoring_errors_total",
			Help: "Total number of scoring failures, by error type",
		},
		[]string{"type"},
	)

	// ScoringDuration 单次评分耗时
	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_scoring_duration_seconds",
			Help:    "Scoring pipeline duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
	)

	// SamplesIngested 按来源统计的遥测样本数
	SamplesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_samples_ingested_total",
			Help: "Total number of telemetry samples ingested, by source",
		},
		[]string{"source"},
	)

	// RequestsTotal HTTP 请求总数
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration HTTP 请求耗时
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// CriticalAlerts 触发的严重告警数
	CriticalAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_critical_alerts_total",
			Help: "Total number of CRITICAL_FAILURE verdicts that triggered alerts",
		},
	)

	// ActiveStreams 当前活跃的趋势窗口数
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_active_trend_streams",
			Help: "Number of machine streams with a live trend window",
		},
	)
)

// ErrorType 把评分错误归类为指标标签
const (
	ErrorTypeSchema     = "schema"
	ErrorTypeOutOfOrder = "out_of_order"
	ErrorTypeNoModel    = "no_model"
	ErrorTypeInference  = "inference"
)
