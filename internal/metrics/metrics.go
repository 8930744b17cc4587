// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値
const (
	OutcomeSuccess           = "success"
	OutcomeInvalidCredential = "invalid_credential"
	OutcomeError             = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// トラッカークライアント、生成クライアント、パイプラインから利用する。
type MetricsCollector interface {
	// RecordTrackerRequest はLinear APIへの1リクエストの結果と所要時間を記録する。
	// operationはverify, list_completed, get_issueのいずれか。
	RecordTrackerRequest(operation, outcome string, duration time.Duration)
	// RecordGeneration はチャット補完呼び出しの結果と所要時間を記録する。
	RecordGeneration(outcome string, duration time.Duration)
	// RecordUpdateGenerated はアップデート生成の成功をトーン別に記録する。
	RecordUpdateGenerated(tone string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	trackerRequests   *prometheus.CounterVec
	trackerLatency    *prometheus.HistogramVec
	generations       *prometheus.CounterVec
	generationLatency prometheus.Histogram
	updatesGenerated  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		trackerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipnote_tracker_requests_total",
			Help: "Linear APIへのリクエスト数（操作・結果別）",
		}, []string{"operation", "outcome"}),
		trackerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shipnote_tracker_request_duration_seconds",
			Help:    "Linear APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipnote_generation_requests_total",
			Help: "チャット補完呼び出し数（結果別）",
		}, []string{"outcome"}),
		generationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shipnote_generation_duration_seconds",
			Help:    "チャット補完呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		updatesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipnote_updates_generated_total",
			Help: "生成に成功したアップデート数（トーン別）",
		}, []string{"tone"}),
	}

	reg.MustRegister(
		c.trackerRequests,
		c.trackerLatency,
		c.generations,
		c.generationLatency,
		c.updatesGenerated,
	)

	return c
}

// RecordTrackerRequest はLinear APIへのリクエストを記録する。
func (c *Collector) RecordTrackerRequest(operation, outcome string, duration time.Duration) {
	c.trackerRequests.WithLabelValues(operation, outcome).Inc()
	c.trackerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordGeneration はチャット補完呼び出しを記録する。
func (c *Collector) RecordGeneration(outcome string, duration time.Duration) {
	c.generations.WithLabelValues(outcome).Inc()
	c.generationLatency.Observe(duration.Seconds())
}

// RecordUpdateGenerated はアップデート生成の成功を記録する。
func (c *Collector) RecordUpdateGenerated(tone string) {
	c.updatesGenerated.WithLabelValues(tone).Inc()
}

// Nop は何も記録しないMetricsCollector。
// メトリクスを公開しない構成やテストで使用する。
type Nop struct{}

func (Nop) RecordTrackerRequest(string, string, time.Duration) {}
func (Nop) RecordGeneration(string, time.Duration) {}
func (Nop) RecordUpdateGenerated(string) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
