// Package metrics holds the Prometheus instrumentation for the decision
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shrikectl/shrike/internal/breaker"
	"github.com/shrikectl/shrike/internal/types"
)

// Recorder owns the pipeline collectors. A nil *Recorder is valid and
// records nothing, so instrumentation stays optional in tests and tools.
type Recorder struct {
	decisionsTotal *prometheus.CounterVec
	fallbackTotal  prometheus.Counter
	breakerState   prometheus.Gauge
	evalDuration   prometheus.Histogram
}

// NewRecorder registers the pipeline collectors on reg, or on the default
// registerer when reg is nil.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	r := &Recorder{
		decisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shrike_decisions_total",
			Help: "Evaluations by final action.",
		}, []string{"action"}),
		fallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "shrike_scorer_fallback_total",
			Help: "Evaluations scored by the deterministic fallback.",
		}),
		breakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shrike_breaker_state",
			Help: "Contextual scorer breaker state: 0 closed, 1 half-open, 2 open.",
		}),
		evalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shrike_evaluation_duration_seconds",
			Help:    "Wall time of one pipeline evaluation.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	// Seed the action series so they export as zero before the first
	// decision.
	for _, action := range []string{types.ActionNow, types.ActionLater, types.ActionNever} {
		r.decisionsTotal.WithLabelValues(action)
	}
	return r
}

// ObserveDecision records one finished evaluation.
func (r *Recorder) ObserveDecision(action string, fallbackMode bool, seconds float64) {
	if r == nil {
		return
	}
	r.decisionsTotal.WithLabelValues(action).Inc()
	if fallbackMode {
		r.fallbackTotal.Inc()
	}
	r.evalDuration.Observe(seconds)
}

// SetBreakerState mirrors the breaker state into its gauge.
func (r *Recorder) SetBreakerState(state breaker.State) {
	if r == nil {
		return
	}
	var v float64
	switch state {
	case breaker.StateHalfOpen:
		v = 1
	case breaker.StateOpen:
		v = 2
	}
	r.breakerState.Set(v)
}
