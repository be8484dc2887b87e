// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サーガやサービス層から利用する。
type MetricsCollector interface {
	RecordChargeSuccess()
	RecordChargeFailure(code string)
	RecordChargeRetry()
	RecordGatewayLatency(duration time.Duration)
	RecordSideEffectFailure(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	chargeSuccess     prometheus.Counter
	chargeFail        *prometheus.CounterVec
	chargeRetry       prometheus.Counter
	gatewayLatency    prometheus.Histogram
	sideEffectFailure *prometheus.CounterVec
}

// コンパイル時のインターフェース実装チェック
var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		chargeSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payhub_charge_success_total",
			Help: "決済成功の合計数",
		}),
		chargeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payhub_charge_fail_total",
			Help: "エラーコード別の決済失敗数",
		}, []string{"code"}),
		chargeRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payhub_charge_retry_total",
			Help: "決済リトライの合計数",
		}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payhub_gateway_latency_seconds",
			Help:    "決済ゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sideEffectFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payhub_side_effect_fail_total",
			Help: "種別ごとの副作用失敗数（通知・クーポン・監査・アクティビティ）",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.chargeSuccess,
		c.chargeFail,
		c.chargeRetry,
		c.gatewayLatency,
		c.sideEffectFailure,
	)

	return c
}

// RecordChargeSuccess は決済成功を記録する。
func (c *Collector) RecordChargeSuccess() {
	c.chargeSuccess.Inc()
}

// RecordChargeFailure はエラーコード付きで決済失敗を記録する。
func (c *Collector) RecordChargeFailure(code string) {
	c.chargeFail.WithLabelValues(code).Inc()
}

// RecordChargeRetry は決済のリトライを記録する。
func (c *Collector) RecordChargeRetry() {
	c.chargeRetry.Inc()
}

// RecordGatewayLatency はゲートウェイ呼び出しのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(duration time.Duration) {
	c.gatewayLatency.Observe(duration.Seconds())
}

// RecordSideEffectFailure は副作用の失敗を種別付きで記録する。
func (c *Collector) RecordSideEffectFailure(kind string) {
	c.sideEffectFailure.WithLabelValues(kind).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。テストで使用する。
type NopCollector struct{}

var _ MetricsCollector = (*NopCollector)(nil)

func (NopCollector) RecordChargeSuccess()               {}
func (NopCollector) RecordChargeFailure(string)         {}
func (NopCollector) RecordChargeRetry()                 {}
func (NopCollector) RecordGatewayLatency(time.Duration) {}
func (NopCollector) RecordSideEffectFailure(string)     {}
