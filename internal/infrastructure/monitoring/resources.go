package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ResourceCount is the live count of one resource kind.
type ResourceCount struct {
	Kind  string `json:"kind"`
	Live  int    `json:"live"`
	Limit int    `json:"limit"`
}

type resourceCollector struct {
	counts func() []ResourceCount
	live   *prometheus.Desc
	limit  *prometheus.Desc
}

// RegisterResources exports the counts returned by fn at every scrape.
func (m *Metrics) RegisterResources(fn func() []ResourceCount) {
	m.registry.MustRegister(&resourceCollector{
		counts: fn,
		live: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "resources", "live"),
			"Live sandbox resources by kind",
			[]string{"kind"}, nil,
		),
		limit: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "resources", "limit"),
			"Per-computer resource limit by kind, 0 when unlimited",
			[]string{"kind"}, nil,
		),
	})
}

func (c *resourceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.live
	ch <- c.limit
}

func (c *resourceCollector) Collect(ch chan<- prometheus.Metric) {
	for _, rc := range c.counts() {
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(rc.Live), rc.Kind)
		ch <- prometheus.MustNewConstMetric(c.limit, prometheus.GaugeValue, float64(rc.Limit), rc.Kind)
	}
}
