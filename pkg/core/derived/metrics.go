package derived

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeWritten   = "written"
	outcomeUnchanged = "unchanged"
	outcomeGuarded   = "guarded"
	outcomeFailed    = "failed"
)

var (
	passesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appraisal_derived_passes_total",
		Help: "Recomputation passes run by derived-field engines",
	})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "appraisal_derived_pass_duration_seconds",
		Help:    "Wall time of one recomputation pass",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	ruleEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appraisal_derived_rule_evaluations_total",
		Help: "Rule evaluations by outcome",
	}, []string{"outcome"})

	undeclaredReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appraisal_derived_undeclared_reads_total",
		Help: "Reads of paths missing from a rule's declared dependencies",
	})
)

func observePass(r PassReport) {
	passesTotal.Inc()
	passDuration.Observe(r.Duration.Seconds())
}
