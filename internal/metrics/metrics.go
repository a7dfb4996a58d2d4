// Package metrics records audit run statistics as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ancients-collective/benchaudit/internal/types"
)

const namespace = "benchaudit"

// Recorder owns a private registry with the audit metrics. A nil Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	tasks           *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	sessionFailures prometheus.Counter
	lastRun         prometheus.Gauge
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Audit tasks completed, by check type and status.",
		}, []string{"check_type", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time to gather evidence for and evaluate one task.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"check_type"}),
		sessionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_setup_failures_total",
			Help:      "Remote sessions that could not be established.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last audit run finished.",
		}),
	}
	r.registry.MustRegister(r.tasks, r.taskDuration, r.sessionFailures, r.lastRun)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveTask records one completed task.
func (r *Recorder) ObserveTask(checkType string, status types.Status, d time.Duration) {
	if r == nil {
		return
	}
	if checkType == "" {
		checkType = "none"
	}
	r.tasks.WithLabelValues(checkType, string(status)).Inc()
	r.taskDuration.WithLabelValues(checkType).Observe(d.Seconds())
}

// SessionFailure records a failed remote session setup.
func (r *Recorder) SessionFailure() {
	if r == nil {
		return
	}
	r.sessionFailures.Inc()
}

// RunFinished stamps the end of a run.
func (r *Recorder) RunFinished(at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
