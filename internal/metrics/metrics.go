// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リフレッシュサービスから利用する。
type MetricsCollector interface {
	RecordRefresh(method, status string)
	RecordFetchFailure(method, kind string)
	RecordHistoryAppended()
	RecordCheckLatency(method string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	refreshes       *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
	historyAppended prometheus.Counter
	checkLatency    *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statuswatch_refresh_total",
			Help: "判定結果ステータス別のリフレッシュ回数",
		}, []string{"method", "status"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statuswatch_fetch_failure_total",
			Help: "種別（network / parse）ごとのステータスページ取得失敗数",
		}, []string{"method", "kind"}),
		historyAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statuswatch_history_appended_total",
			Help: "追記された履歴行の合計数",
		}),
		checkLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statuswatch_check_latency_seconds",
			Help:    "ステータスページ取得から判定までのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.refreshes,
		c.fetchFailures,
		c.historyAppended,
		c.checkLatency,
	)

	return c
}

// RecordRefresh はリフレッシュ1回分の判定結果を記録する。
func (c *Collector) RecordRefresh(method, status string) {
	c.refreshes.WithLabelValues(method, status).Inc()
}

// RecordFetchFailure は取得失敗を種別ごとに記録する。
func (c *Collector) RecordFetchFailure(method, kind string) {
	c.fetchFailures.WithLabelValues(method, kind).Inc()
}

// RecordHistoryAppended は履歴の追記を記録する。
func (c *Collector) RecordHistoryAppended() {
	c.historyAppended.Inc()
}

// RecordCheckLatency はチェックのレイテンシを記録する。
func (c *Collector) RecordCheckLatency(method string, duration time.Duration) {
	c.checkLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
