// Package metrics exposes mission progress as Prometheus metrics.
package metrics

import (
	"github.com/dyluth/sortie/internal/explorer"
	"github.com/dyluth/sortie/pkg/blackboard"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sortie"

// Collector records mission metrics on its own registry. It satisfies the
// observer interfaces of the explorer, coordinator, allocator and scheduler.
type Collector struct {
	registry *prometheus.Registry

	ticks            *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
	replans          *prometheus.CounterVec
	targetsFound     *prometheus.CounterVec
	overlapRatio     prometheus.Gauge
	uniqueTargets    prometheus.Gauge
	assignmentSize   *prometheus.GaugeVec
}

// NewCollector creates a collector with every metric registered.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Deliberation steps taken per agent",
		},
		[]string{"agent"},
	)

	c.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Explorer state transitions",
		},
		[]string{"agent", "from", "to"},
	)

	c.replans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replans_total",
			Help:      "Return paths recomputed after a blocked move",
		},
		[]string{"agent"},
	)

	c.targetsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_found_total",
			Help:      "Targets recorded per explorer",
		},
		[]string{"agent"},
	)

	c.overlapRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "overlap_ratio",
		Help:      "Redundant target discoveries relative to unique targets",
	})

	c.uniqueTargets = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "unique_targets",
		Help:      "Unique targets after merging every world view",
	})

	c.assignmentSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assignment_size",
			Help:      "Targets assigned per recipient",
		},
		[]string{"recipient"},
	)

	c.registry.MustRegister(
		c.ticks,
		c.stateTransitions,
		c.replans,
		c.targetsFound,
		c.overlapRatio,
		c.uniqueTargets,
		c.assignmentSize,
	)
	return c
}

// Registry returns the registry holding the mission metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Tick counts one deliberation step.
func (c *Collector) Tick(agentID string) {
	c.ticks.WithLabelValues(agentID).Inc()
}

// StateChanged counts an explorer state transition.
func (c *Collector) StateChanged(agentID string, from, to explorer.State) {
	c.stateTransitions.WithLabelValues(agentID, string(from), string(to)).Inc()
}

// Replanned counts a return-path recomputation.
func (c *Collector) Replanned(agentID string) {
	c.replans.WithLabelValues(agentID).Inc()
}

// TargetFound counts a newly recorded target.
func (c *Collector) TargetFound(agentID, targetID string) {
	c.targetsFound.WithLabelValues(agentID).Inc()
}

// Synchronized records the outcome of the merge.
func (c *Collector) Synchronized(report blackboard.SyncReport) {
	c.overlapRatio.Set(report.Overlap)
	c.uniqueTargets.Set(float64(report.UniqueTargets))
}

// Assigned records the size of a delivered assignment.
func (c *Collector) Assigned(recipient string, size int) {
	c.assignmentSize.WithLabelValues(recipient).Set(float64(size))
}
