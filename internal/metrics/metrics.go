// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ストアとリモートクライアントから利用する。
type MetricsCollector interface {
	RecordAction(actionType string)
	RecordFavoriteOutcome(outcome string)
	RecordRemoteRequest(method string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	actions        *prometheus.CounterVec
	outcomes       *prometheus.CounterVec
	remoteRequests *prometheus.CounterVec
	remoteLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobfinder_actions_total",
			Help: "ストアに適用されたアクション数（種別ごと）",
		}, []string{"type"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobfinder_favorite_outcomes_total",
			Help: "お気に入り操作の結果数（success, duplicate, failure など）",
		}, []string{"outcome"}),
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobfinder_remote_requests_total",
			Help: "リモートAPIへのリクエスト数（メソッド・ステータス別）",
		}, []string{"method", "status"}),
		remoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobfinder_remote_latency_seconds",
			Help:    "リモートAPIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.actions,
		c.outcomes,
		c.remoteRequests,
		c.remoteLatency,
	)

	return c
}

// RecordAction はストアに適用されたアクションを記録する。
func (c *Collector) RecordAction(actionType string) {
	c.actions.WithLabelValues(actionType).Inc()
}

// RecordFavoriteOutcome はエフェクトが発行した結果アクションの種別を記録する。
func (c *Collector) RecordFavoriteOutcome(outcome string) {
	c.outcomes.WithLabelValues(outcome).Inc()
}

// RecordRemoteRequest はリモートAPIリクエストのステータスとレイテンシを記録する。
// 通信自体に失敗した場合、statusCodeは0として記録される。
func (c *Collector) RecordRemoteRequest(method string, statusCode int, duration time.Duration) {
	c.remoteRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.remoteLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollectorを返す。
func Nop() MetricsCollector {
	return nop{}
}

type nop struct{}

func (nop) RecordAction(string)                            {}
func (nop) RecordFavoriteOutcome(string)                   {}
func (nop) RecordRemoteRequest(string, int, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// middlewaresは指定順に適用される。
func SetupMetricsRoute(gatherer prometheus.Gatherer, middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.Method(http.MethodGet, "/metrics", Handler(gatherer))
	return r
}
