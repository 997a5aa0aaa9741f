package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ProcessStarted      *prometheus.CounterVec
	AutostartCompleted  *prometheus.CounterVec
	AutostartIncomplete *prometheus.CounterVec
	WorkItemTransitions *prometheus.CounterVec
}

// NewMetrics reg 为 nil 的时候只创建不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProcessStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goflow",
			Name:      "process_started_total",
			Help:      "Process instances started, by process and begin activity dispatch mode.",
		}, []string{"process", "mode"}),
		AutostartCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goflow",
			Name:      "autostart_completed_total",
			Help:      "Autostart work items completed by their application.",
		}, []string{"process"}),
		AutostartIncomplete: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goflow",
			Name:      "autostart_incomplete_total",
			Help:      "Autostart work items left active, by reason.",
		}, []string{"process", "reason"}),
		WorkItemTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goflow",
			Name:      "work_item_transitions_total",
			Help:      "Work item status transitions.",
		}, []string{"status"}),
	}
}
