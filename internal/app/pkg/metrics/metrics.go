package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 进程内指标集合，注册到调用方提供的 Registerer
type Metrics struct {
	OrdersSubmitted  prometheus.Counter
	StageTransitions *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	LiveSessions     prometheus.Gauge
	LiveDropped      prometheus.Counter
	Requeued         prometheus.Counter
}

// NewMetrics 创建并注册指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OrdersSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "swapd_orders_submitted_total",
			Help: "Orders accepted by the submission endpoint.",
		}),
		StageTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swapd_stage_transitions_total",
			Help: "Durable stage transitions by target stage.",
		}, []string{"stage"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swapd_pipeline_duration_seconds",
			Help:    "Time from job pickup to terminal stage.",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10, 30},
		}, []string{"outcome"}),
		LiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "swapd_live_sessions",
			Help: "Open live status connections.",
		}),
		LiveDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "swapd_live_events_dropped_total",
			Help: "Status events dropped because a subscriber buffer was full.",
		}),
		Requeued: f.NewCounter(prometheus.CounterOpts{
			Name: "swapd_reconcile_requeued_total",
			Help: "Pending orders re-enqueued by the reconcile sweep.",
		}),
	}
}

// NewNop 使用独立 registry，测试中各自隔离
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
