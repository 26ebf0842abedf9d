package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 매치 코어 수집기. nil 이면 모든 기록이 무시된다.
type Metrics struct {
	registry *prometheus.Registry

	Transitions        *prometheus.CounterVec
	InvitationsCreated *prometheus.CounterVec
	ObserverFailures   *prometheus.CounterVec
	TimerRunDuration   *prometheus.HistogramVec
	TimerSkipped       *prometheus.CounterVec
	BackgroundTasks    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matches",
			Subsystem: "state",
			Name:      "transitions_total",
			Help:      "Persisted match state transitions",
		}, []string{"from", "to"}),
		InvitationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matches",
			Subsystem: "matchmaking",
			Name:      "invitations_created_total",
			Help:      "Invitations created by the matchmaking coordinator",
		}, []string{"origin"}),
		ObserverFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matches",
			Subsystem: "events",
			Name:      "observer_failures_total",
			Help:      "State change observers that returned an error or panicked",
		}, []string{"observer"}),
		TimerRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matches",
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Scheduler timer run duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"timer"}),
		TimerSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matches",
			Subsystem: "scheduler",
			Name:      "skipped_runs_total",
			Help:      "Timer fires skipped because the previous run was still active",
		}, []string{"timer"}),
		BackgroundTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matches",
			Subsystem: "tasks",
			Name:      "completed_total",
			Help:      "Background tasks by outcome",
		}, []string{"task", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Transitions,
		m.InvitationsCreated,
		m.ObserverFailures,
		m.TimerRunDuration,
		m.TimerSkipped,
		m.BackgroundTasks,
	)

	return m
}

// Handler /metrics 핸들러
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) InvitationCreated(origin string) {
	if m == nil {
		return
	}
	m.InvitationsCreated.WithLabelValues(origin).Inc()
}

// ObserverFailed event.FailureRecorder 구현
func (m *Metrics) ObserverFailed(observer string) {
	if m == nil {
		return
	}
	m.ObserverFailures.WithLabelValues(observer).Inc()
}

func (m *Metrics) TimerRun(timer string, d time.Duration) {
	if m == nil {
		return
	}
	m.TimerRunDuration.WithLabelValues(timer).Observe(d.Seconds())
}

func (m *Metrics) TimerSkip(timer string) {
	if m == nil {
		return
	}
	m.TimerSkipped.WithLabelValues(timer).Inc()
}

func (m *Metrics) TaskDone(task string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BackgroundTasks.WithLabelValues(task, outcome).Inc()
}
