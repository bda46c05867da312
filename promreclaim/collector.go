// Package promreclaim exports the statistics of a reclaim.Reclaimer as
// Prometheus metrics.
package promreclaim

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeebo/reclaim"
)

// StatsSource is implemented by every reclaim.Reclaimer.
type StatsSource interface {
	Stats() reclaim.Stats
}

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(reclaim.Stats) float64
}

// Collector is a prometheus.Collector reading a StatsSource on every scrape.
type Collector struct {
	src     StatsSource
	metrics []metric
}

var _ prometheus.Collector = (*Collector)(nil)

// New returns a Collector for src with every metric name prefixed by
// namespace. constLabels are attached to every metric, which tells apart
// several Reclaimers registered with the same registry.
func New(namespace string, src StatsSource, constLabels prometheus.Labels) *Collector {
	c := &Collector{src: src}

	add := func(name, help string, kind prometheus.ValueType, value func(reclaim.Stats) float64) {
		c.metrics = append(c.metrics, metric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "reclaim", name), help, nil, constLabels),
			kind:  kind,
			value: value,
		})
	}
	gauge := func(name, help string, value func(reclaim.Stats) int64) {
		add(name, help, prometheus.GaugeValue, func(s reclaim.Stats) float64 { return float64(value(s)) })
	}
	counter := func(name, help string, value func(reclaim.Stats) uint64) {
		add(name, help, prometheus.CounterValue, func(s reclaim.Stats) float64 { return float64(value(s)) })
	}

	gauge("contexts", "Number of registered contexts.",
		func(s reclaim.Stats) int64 { return s.Contexts })
	gauge("backlog", "Freed nodes waiting in the backlogs of registered contexts.",
		func(s reclaim.Stats) int64 { return s.Backlog })
	gauge("orphans", "Freed nodes waiting for a context to adopt them.",
		func(s reclaim.Stats) int64 { return s.Orphans })

	counter("allocs_total", "Nodes allocated.",
		func(s reclaim.Stats) uint64 { return s.Allocs })
	counter("frees_total", "Nodes freed.",
		func(s reclaim.Stats) uint64 { return s.Frees })
	counter("scans_total", "Scans of backlogs.",
		func(s reclaim.Stats) uint64 { return s.Scans })
	counter("local_cleans_total", "Clean up passes over a single backlog.",
		func(s reclaim.Stats) uint64 { return s.LocalCleans })
	counter("global_cleans_total", "Clean up passes over every backlog.",
		func(s reclaim.Stats) uint64 { return s.GlobalCleans })
	counter("terminated_total", "Nodes terminated.",
		func(s reclaim.Stats) uint64 { return s.Terminated })
	counter("deferred_total", "Nodes terminated while another context was reading them.",
		func(s reclaim.Stats) uint64 { return s.Deferred })
	counter("released_total", "Nodes returned to the pool.",
		func(s reclaim.Stats) uint64 { return s.Released })
	counter("orphaned_total", "Nodes handed off by closing contexts.",
		func(s reclaim.Stats) uint64 { return s.Orphaned })
	counter("adopted_total", "Orphaned nodes adopted by a scan.",
		func(s reclaim.Stats) uint64 { return s.Adopted })
	counter("backlog_growths_total", "Chunks appended to backlogs.",
		func(s reclaim.Stats) uint64 { return s.RopeGrowths })
	add("generation", "Current quiescence generation.", prometheus.GaugeValue,
		func(s reclaim.Stats) float64 { return float64(s.Generation) })

	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stats))
	}
}
