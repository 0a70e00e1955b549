package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the engine's operational metrics on its own registry
// so tests can instantiate it without global state collisions.
type Collector struct {
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	riskScores       prometheus.Histogram
	pipelineDuration prometheus.Histogram
	branchTimeouts   *prometheus.CounterVec
	degradedTotal    prometheus.Counter
	alertsTotal      *prometheus.CounterVec
	duplicatesTotal  prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		decisionsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "risk_decisions_total",
			Help: "Decisions produced, by verdict category",
		}, []string{"verdict"}),
		riskScores: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_score_distribution",
			Help:    "Distribution of verdict risk scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		pipelineDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_pipeline_duration_seconds",
			Help:    "End-to-end decision pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
		branchTimeouts: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "risk_branch_timeouts_total",
			Help: "Fan-out branches that exceeded their timeout",
		}, []string{"branch"}),
		degradedTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "risk_degraded_decisions_total",
			Help: "Decisions completed on partial evidence",
		}),
		alertsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "risk_alerts_created_total",
			Help: "Alerts created, by priority",
		}, []string{"priority"}),
		duplicatesTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "risk_duplicate_submissions_total",
			Help: "Submissions answered from the dedup window",
		}),
	}
}

func (c *Collector) RecordDecision(verdict string, score float64, duration time.Duration, degraded bool) {
	c.decisionsTotal.WithLabelValues(verdict).Inc()
	c.riskScores.Observe(score)
	c.pipelineDuration.Observe(duration.Seconds())
	if degraded {
		c.degradedTotal.Inc()
	}
}

func (c *Collector) RecordBranchTimeout(branch string) {
	c.branchTimeouts.WithLabelValues(branch).Inc()
}

func (c *Collector) RecordAlert(priority string) {
	c.alertsTotal.WithLabelValues(priority).Inc()
}

func (c *Collector) RecordDuplicate() {
	c.duplicatesTotal.Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
