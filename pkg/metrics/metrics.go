// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "video_qa"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// 业务指标 - 转写摄取
	IngestVideosTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "videos_total",
			Help:      "Total number of ingested videos by outcome",
		},
		[]string{"status"},
	)

	IngestVideoDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "video_duration_seconds",
			Help:      "Per-video ingestion duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	IngestChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of transcript chunks committed to the index",
		},
	)

	// 业务指标 - 对话
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of chat requests",
		},
		[]string{"status"},
	)

	ChatDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "End-to-end chat handling duration in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// 检索指标
	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Vector retrieval duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"backend"},
	)

	// LLM / Embedding 指标
	LLMCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_total",
			Help:      "Total number of LLM calls",
		},
		[]string{"provider", "status"},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "LLM call duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	EmbeddingCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "call_total",
			Help:      "Total number of embedding calls",
		},
		[]string{"status"},
	)

	// 记忆指标
	MemoryRecordsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "records_evicted_total",
			Help:      "Total number of expired memory records evicted",
		},
	)
)
