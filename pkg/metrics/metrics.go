// Package metrics exposes discovery activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"thoreinstein.com/repodash/pkg/discovery"
)

const namespace = "repodash"

// Metrics implements discovery.Observer on top of Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	found        prometheus.Counter
	visited      prometheus.Counter
	probes       *prometheus.CounterVec
	probeLatency prometheus.Histogram
}

var _ discovery.Observer = (*Metrics)(nil)

// New registers the discovery collectors on a fresh registry. Go runtime and
// process collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scan runs by result.",
		}, []string{"result"}),
		found: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repositories_found_total",
			Help:      "Repository roots reported by the walker.",
		}),
		visited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directories_visited_total",
			Help:      "Directories visited by the walker.",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Status probes by outcome.",
		}, []string{"outcome"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Time spent resolving one repository status.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.scans,
		m.found,
		m.visited,
		m.probes,
		m.probeLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterStore adds a gauge over the records held by store.
func (m *Metrics) RegisterStore(store *discovery.Store) {
	m.registry.MustRegister(newStatusCollector(store))
}

// Registry returns the registry holding every repodash collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) DirectoryVisited() { m.visited.Inc() }
func (m *Metrics) RepositoryFound()  { m.found.Inc() }

func (m *Metrics) ProbeFinished(rec discovery.Record, elapsed time.Duration) {
	outcome := "ok"
	if rec.ProbeError != "" {
		outcome = "error"
	}
	m.probes.WithLabelValues(outcome).Inc()
	m.probeLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ScanFinished(summary discovery.Summary) {
	result := "completed"
	if summary.Cancelled {
		result = "cancelled"
	}
	m.scans.WithLabelValues(result).Inc()
}

// statusCollector reports the current number of tracked repositories per
// status at scrape time.
type statusCollector struct {
	store *discovery.Store
	desc  *prometheus.Desc
}

func newStatusCollector(store *discovery.Store) *statusCollector {
	return &statusCollector{
		store: store,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "repositories"),
			"Tracked repositories by status.",
			[]string{"status"}, nil,
		),
	}
}

func (c *statusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *statusCollector) Collect(ch chan<- prometheus.Metric) {
	counts := c.store.Counts()
	for _, status := range discovery.Statuses {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[status]), status.String())
	}
}
