package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики выполнения flows.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	tasksTotal     *prometheus.CounterVec
	scheduledTotal *prometheus.CounterVec
	recordsWritten *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// В тестах передаётся prometheus.NewRegistry(), в сервисах — DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflows_flow_runs_total",
			Help: "Total finished flow runs by flow and final status",
		}, []string{"flow", "status"}),

		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataflows_flow_run_duration_seconds",
			Help:    "Flow run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		}, []string{"flow"}),

		tasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflows_task_runs_total",
			Help: "Total finished tasks by flow, step and status",
		}, []string{"flow", "step", "status"}),

		scheduledTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflows_scheduler_runs_started_total",
			Help: "Total runs started by the scheduler",
		}, []string{"flow"}),

		recordsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflows_feature_records_written_total",
			Help: "Total records written to feature groups",
		}, []string{"feature_group"}),
	}
}

// ObserveRun учитывает завершённый run.
func (m *Metrics) ObserveRun(flow, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(flow, status).Inc()
	m.runDuration.WithLabelValues(flow).Observe(d.Seconds())
}

// ObserveTask учитывает завершённый task.
func (m *Metrics) ObserveTask(flow, step, status string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(flow, step, status).Inc()
}

// ScheduledRun учитывает run, созданный scheduler'ом.
func (m *Metrics) ScheduledRun(flow string) {
	if m == nil {
		return
	}
	m.scheduledTotal.WithLabelValues(flow).Inc()
}

// RecordWritten учитывает запись, отправленную в feature group.
func (m *Metrics) RecordWritten(group string) {
	if m == nil {
		return
	}
	m.recordsWritten.WithLabelValues(group).Inc()
}
