// Package metrics registers the Prometheus metrics corvusd exposes on its
// operator HTTP surface. Grounded on the promauto-based metrics registry
// pattern: build every collector once at startup via promauto (which
// registers into the default registry as a side effect of construction),
// then hand the struct to every component that needs to record something.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the orchestrator updates.
type Metrics struct {
	DeploymentsTotal      *prometheus.CounterVec
	DeploymentDuration    *prometheus.HistogramVec
	DeploymentsInFlight   prometheus.Gauge
	AdmissionQueueDepth   prometheus.Gauge
	PortAllocationFailure prometheus.Counter
	ProxyReloadsTotal     *prometheus.CounterVec
}

var (
	once   sync.Once
	shared *Metrics
)

// New returns the process-wide Metrics instance, constructing and
// registering its collectors on first call.
func New() *Metrics {
	once.Do(func() {
		shared = &Metrics{
			DeploymentsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "corvus_deployments_total",
					Help: "Total number of deployments processed, by terminal status.",
				},
				[]string{"status", "dockerfile_used"},
			),
			DeploymentDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "corvus_deployment_duration_seconds",
					Help:    "Time from deploying to a terminal status.",
					Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to 2048s (~34min)
				},
				[]string{"status"},
			),
			DeploymentsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "corvus_deployments_in_flight",
					Help: "Number of deployments currently being processed by an admission worker.",
				},
			),
			AdmissionQueueDepth: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "corvus_admission_queue_depth",
					Help: "Number of deployments buffered in the admission queue awaiting a worker.",
				},
			),
			PortAllocationFailure: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "corvus_port_allocation_failures_total",
					Help: "Total number of times the port allocator exhausted its configured range.",
				},
			),
			ProxyReloadsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "corvus_proxy_reloads_total",
					Help: "Total number of proxy configuration reloads, by outcome.",
				},
				[]string{"outcome"},
			),
		}
	})
	return shared
}

// RecordDeployment records a deployment reaching a terminal status.
func (m *Metrics) RecordDeployment(status string, dockerfileUsed string, durationSeconds float64) {
	m.DeploymentsTotal.WithLabelValues(status, dockerfileUsed).Inc()
	m.DeploymentDuration.WithLabelValues(status).Observe(durationSeconds)
}
