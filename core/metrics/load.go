package metrics

import "github.com/prometheus/client_golang/prometheus"

// loadCollector exposes the 1, 5 and 15 minute system load averages.
// Nothing is emitted when the platform cannot report them.
type loadCollector struct {
	desc *prometheus.Desc
	avg  LoadFunc
}

func newLoadCollector(prefix string, avg LoadFunc) *loadCollector {
	return &loadCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(prefix, "system", "load_average"),
			"System load average over 1, 5 and 15 minutes.",
			[]string{"period"}, nil,
		),
		avg: avg,
	}
}

func (c *loadCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *loadCollector) Collect(ch chan<- prometheus.Metric) {
	stat, err := c.avg()
	if err != nil || stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, stat.Load1, "1m")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, stat.Load5, "5m")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, stat.Load15, "15m")
}
