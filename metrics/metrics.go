// Package metrics exports detection pass outcomes to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brunoga/optimistic"
)

const namespace = "optimistic"

// Collector implements optimistic.Recorder with Prometheus vectors.
type Collector struct {
	Passes      *prometheus.CounterVec
	Conflicts   prometheus.Counter
	Resolved    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Diagnostics *prometheus.CounterVec
}

var _ optimistic.Recorder = (*Collector)(nil)

// New creates a Collector and registers it with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "passes_total",
			Help:      "Detection passes by report kind.",
		}, []string{"kind"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "conflicts_total",
			Help:      "Conflicts surfaced to the host.",
		}),
		Resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "resolved_total",
			Help:      "Remote operations applied locally.",
		}, []string{"client"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detector",
			Name:      "pass_duration_seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"kind"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applier",
			Name:      "diagnostics_total",
			Help:      "Skipped steps by diagnostic kind.",
		}, []string{"kind"}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{c.Passes, c.Conflicts, c.Resolved, c.Duration, c.Diagnostics} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObservePass implements optimistic.Recorder.
func (c *Collector) ObservePass(kind optimistic.ReportKind, conflicts, resolved, discarded int, elapsed time.Duration) {
	c.Passes.WithLabelValues(string(kind)).Inc()
	c.Conflicts.Add(float64(conflicts))
	c.Resolved.WithLabelValues("kept").Add(float64(resolved))
	c.Resolved.WithLabelValues("discarded").Add(float64(discarded))
	c.Duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveDiagnostics implements optimistic.Recorder.
func (c *Collector) ObserveDiagnostics(ds optimistic.Diagnostics) {
	for _, d := range ds {
		c.Diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
}
