package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors for the engine. The experiment
// manager updates SimulationsRun, SimulationDuration, and CascadeSize;
// SnapshotBuildSeconds is registered but nothing observes it.
// NewMetrics registers them on reg; callers typically pass
// Providers.Registry from Init.
type Metrics struct {
	SimulationsRun      prometheus.Counter
	SimulationDuration   prometheus.Histogram
	CascadeSize          prometheus.Histogram
	SnapshotBuildSeconds prometheus.Histogram
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		SimulationsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cascade",
			Name:      "simulations_run_total",
			Help:      "Number of cascade simulations executed.",
		}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cascade",
			Name:      "simulation_duration_seconds",
			Help:      "Wall-clock duration of a single cascade simulation run.",
			Buckets:   prometheus.DefBuckets,
		}),
		CascadeSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cascade",
			Name:      "cascade_size_projects",
			Help:      "Number of projects failing in a completed simulation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}),
		SnapshotBuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cascade",
			Name:      "snapshot_build_seconds",
			Help:      "Wall-clock duration of materializing a snapshot from the event log.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.SimulationsRun, m.SimulationDuration, m.CascadeSize, m.SnapshotBuildSeconds)
	return m
}
