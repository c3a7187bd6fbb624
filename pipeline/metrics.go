package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks stage outcomes and notification delivery.
type Metrics struct {
	StageDuration     *prometheus.HistogramVec
	StageRunsTotal    *prometheus.CounterVec
	CandidatesStored  prometheus.Counter
	NotificationsSent prometheus.Counter
	DispatchFailures  prometheus.Counter
	VerdictsTotal     *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)
	stageRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_runs_total",
			Help: "Stage executions by outcome.",
		},
		[]string{"stage", "outcome"},
	)
	candidates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_candidates_stored_total",
		Help: "Listings newly stored as candidates.",
	})
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_notifications_sent_total",
		Help: "Listing notifications delivered and recorded.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_dispatch_failures_total",
		Help: "Listing notifications the transport rejected.",
	})
	verdicts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_verdicts_total",
			Help: "Description classifications by verdict.",
		},
		[]string{"verdict"},
	)

	registry.MustRegister(stageDuration, stageRuns, candidates, sent, failures, verdicts)

	return &Metrics{
		StageDuration:     stageDuration,
		StageRunsTotal:    stageRuns,
		CandidatesStored:  candidates,
		NotificationsSent: sent,
		DispatchFailures:  failures,
		VerdictsTotal:     verdicts,
	}
}

func (m *Metrics) observeStage(stage Stage, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	m.StageRunsTotal.WithLabelValues(string(stage), outcome).Inc()
}

func (m *Metrics) addCandidates(n int) {
	if m == nil {
		return
	}
	m.CandidatesStored.Add(float64(n))
}

func (m *Metrics) incSent() {
	if m == nil {
		return
	}
	m.NotificationsSent.Inc()
}

func (m *Metrics) incDispatchFailure() {
	if m == nil {
		return
	}
	m.DispatchFailures.Inc()
}

func (m *Metrics) incVerdict(v string) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(v).Inc()
}
