package pivotal

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CostSource is anything reporting distance evaluations; every Index is one.
type CostSource interface {
	Kind() IndexKind
	Cost() SearchCost
}

// CostCollector exports the distance counters of an index as Prometheus
// counters. Values are read from the index on every scrape.
//
// Example:
//
//	prometheus.MustRegister(NewCostCollector("pivotal", idx))
type CostCollector struct {
	source   CostSource
	internal *prometheus.Desc
	external *prometheus.Desc
}

// Compile-time check to ensure CostCollector implements prometheus.Collector
var _ prometheus.Collector = (*CostCollector)(nil)

// NewCostCollector creates a collector for source. namespace prefixes the
// metric names: <namespace>_internal_distances_total and
// <namespace>_external_distances_total.
func NewCostCollector(namespace string, source CostSource) *CostCollector {
	labels := prometheus.Labels{"kind": string(source.Kind())}
	return &CostCollector{
		source: source,
		internal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "internal_distances_total"),
			"Distance evaluations against pivots and centers",
			nil, labels,
		),
		external: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "external_distances_total"),
			"Distance evaluations against candidate objects",
			nil, labels,
		),
	}
}

func (c *CostCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.internal
	ch <- c.external
}

func (c *CostCollector) Collect(ch chan<- prometheus.Metric) {
	cost := c.source.Cost()
	ch <- prometheus.MustNewConstMetric(c.internal, prometheus.CounterValue, float64(cost.Internal))
	ch <- prometheus.MustNewConstMetric(c.external, prometheus.CounterValue, float64(cost.External))
}
