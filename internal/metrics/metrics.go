// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// タイマーサービスと永続化レイヤーから利用する。
type MetricsCollector interface {
	RecordTimerStart()
	RecordTimerStop()
	RecordManualAdd()
	RecordReconcileMiss()
	RecordSaveSuccess()
	RecordSaveFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	timerStart    prometheus.Counter
	timerStop     prometheus.Counter
	manualAdd     prometheus.Counter
	reconcileMiss prometheus.Counter
	save          *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		timerStart: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetrackr_timer_start_total",
			Help: "タイマー開始の合計数",
		}),
		timerStop: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetrackr_timer_stop_total",
			Help: "タイマー停止の合計数",
		}),
		manualAdd: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetrackr_manual_add_total",
			Help: "手動後付けセッションの合計数",
		}),
		reconcileMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetrackr_reconcile_miss_total",
			Help: "停止時にオープンセッションを照合できなかった回数",
		}),
		save: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetrackr_save_total",
			Help: "ドキュメントセーブの結果別合計数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetrackr_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.timerStart,
		c.timerStop,
		c.manualAdd,
		c.reconcileMiss,
		c.save,
		c.httpStatus,
	)

	return c
}

// RecordTimerStart はタイマー開始を記録する。
func (c *Collector) RecordTimerStart() {
	c.timerStart.Inc()
}

// RecordTimerStop はタイマー停止を記録する。
func (c *Collector) RecordTimerStop() {
	c.timerStop.Inc()
}

// RecordManualAdd は手動後付けを記録する。
func (c *Collector) RecordManualAdd() {
	c.manualAdd.Inc()
}

// RecordReconcileMiss は照合失敗を記録する。
func (c *Collector) RecordReconcileMiss() {
	c.reconcileMiss.Inc()
}

// RecordSaveSuccess はセーブ成功を記録する。
func (c *Collector) RecordSaveSuccess() {
	c.save.WithLabelValues("success").Inc()
}

// RecordSaveFailure はセーブ失敗（リトライ上限到達）を記録する。
func (c *Collector) RecordSaveFailure() {
	c.save.WithLabelValues("failure").Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// ルーターの /metrics エンドポイントにマウントして使用する。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
