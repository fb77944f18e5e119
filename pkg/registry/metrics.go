package registry

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "tabble"
	subsystem = "session_registry"
)

type metrics struct {
	Active       prometheus.Gauge   // Sessions currently holding a tenant connection.
	Opens        prometheus.Counter // Tenant connections opened.
	OpenFailures prometheus.Counter // Tenant connections that failed to open.
	Closes       prometheus.Counter // Tenant connections disposed.
	Switches     prometheus.Counter // Sessions rebound to a different tenant.
	Expired      prometheus.Counter // Sessions disposed by the idle reaper.
}

func newMetrics() *metrics {
	return &metrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_sessions",
			Help:      "Number of sessions currently bound to a tenant connection.",
		}),
		Opens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "opens_total",
			Help:      "Total number of tenant connections opened.",
		}),
		OpenFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "open_failures_total",
			Help:      "Total number of tenant connections that failed to open.",
		}),
		Closes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "closes_total",
			Help:      "Total number of tenant connections disposed.",
		}),
		Switches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "switches_total",
			Help:      "Total number of sessions rebound to a different tenant.",
		}),
		Expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "expired_total",
			Help:      "Total number of sessions disposed after being idle.",
		}),
	}
}

// PrometheusCollectors returns the metrics of the registry for registration
// with a prometheus.Registerer.
func (r *Registry) PrometheusCollectors() []prometheus.Collector {
	m := r.metrics
	return []prometheus.Collector{m.Active, m.Opens, m.OpenFailures, m.Closes, m.Switches, m.Expired}
}
