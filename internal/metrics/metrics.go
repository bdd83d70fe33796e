// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// バックエンドクライアントやサービス層から利用する。
type MetricsCollector interface {
	RecordBackendRequest(statusCode int)
	RecordBackendLatency(duration time.Duration)
	RecordRealtimeEvent(table string)
	RecordAssistantReply(fallback bool)
	RecordUploadBytes(size int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	backendStatus     *prometheus.CounterVec
	backendLatency    prometheus.Histogram
	realtimeEvents    *prometheus.CounterVec
	assistantReplies  prometheus.Counter
	assistantFallback prometheus.Counter
	uploadBytes       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkup_backend_status_total",
			Help: "HTTPステータスコード別のバックエンドレスポンス数",
		}, []string{"status_code"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkup_backend_latency_seconds",
			Help:    "バックエンドリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linkup_realtime_events_total",
			Help: "テーブル別のリアルタイム変更通知の合計数",
		}, []string{"table"}),
		assistantReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkup_assistant_replies_total",
			Help: "AIアシスタント応答の合計数",
		}),
		assistantFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkup_assistant_fallback_total",
			Help: "固定フォールバック文字列に置き換えられた応答の合計数",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkup_upload_bytes_total",
			Help: "アップロードされた画像の合計バイト数",
		}),
	}

	reg.MustRegister(
		c.backendStatus,
		c.backendLatency,
		c.realtimeEvents,
		c.assistantReplies,
		c.assistantFallback,
		c.uploadBytes,
	)

	return c
}

// RecordBackendRequest はバックエンドレスポンスのステータスコードを記録する。
func (c *Collector) RecordBackendRequest(statusCode int) {
	c.backendStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBackendLatency はバックエンドリクエストのレイテンシを記録する。
func (c *Collector) RecordBackendLatency(duration time.Duration) {
	c.backendLatency.Observe(duration.Seconds())
}

// RecordRealtimeEvent はリアルタイム変更通知を記録する。
func (c *Collector) RecordRealtimeEvent(table string) {
	c.realtimeEvents.WithLabelValues(table).Inc()
}

// RecordAssistantReply はAIアシスタント応答を記録する。
func (c *Collector) RecordAssistantReply(fallback bool) {
	c.assistantReplies.Inc()
	if fallback {
		c.assistantFallback.Inc()
	}
}

// RecordUploadBytes はアップロードされた画像のバイト数を記録する。
func (c *Collector) RecordUploadBytes(size int64) {
	c.uploadBytes.Add(float64(size))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
