package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	descHits = prometheus.NewDesc(
		"cache_hits_total", "Total cache hits across both tiers.", nil, nil)
	descMisses = prometheus.NewDesc(
		"cache_misses_total", "Total cache misses.", nil, nil)
	descSets = prometheus.NewDesc(
		"cache_sets_total", "Total cache writes.", nil, nil)
	descDeletes = prometheus.NewDesc(
		"cache_deletes_total", "Total cache deletes.", nil, nil)
	descErrors = prometheus.NewDesc(
		"cache_errors_total", "Total backend errors absorbed by the cache.", nil, nil)
	descHitRate = prometheus.NewDesc(
		"cache_hit_rate", "Hits divided by lookups, 0 with no traffic.", nil, nil)
	descAvgResponse = prometheus.NewDesc(
		"cache_avg_response_seconds", "Mean cache operation latency over the bounded sample window.", nil, nil)
	descEffectiveness = prometheus.NewDesc(
		"cache_effectiveness_score", "Composite 0-100 effectiveness score.", nil, nil)
)

// Describe implements [prometheus.Collector].
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- descHits
	ch <- descMisses
	ch <- descSets
	ch <- descDeletes
	ch <- descErrors
	ch <- descHitRate
	ch <- descAvgResponse
	ch <- descEffectiveness
}

// Collect implements [prometheus.Collector] by exporting a snapshot of the
// counters and derived values.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	s := m.Snapshot()
	ch <- prometheus.MustNewConstMetric(descHits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(descMisses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(descSets, prometheus.CounterValue, float64(s.Sets))
	ch <- prometheus.MustNewConstMetric(descDeletes, prometheus.CounterValue, float64(s.Deletes))
	ch <- prometheus.MustNewConstMetric(descErrors, prometheus.CounterValue, float64(s.Errors))
	ch <- prometheus.MustNewConstMetric(descHitRate, prometheus.GaugeValue, s.HitRate)
	ch <- prometheus.MustNewConstMetric(descAvgResponse, prometheus.GaugeValue, s.AvgResponseTime.Seconds())
	ch <- prometheus.MustNewConstMetric(descEffectiveness, prometheus.GaugeValue, s.Effectiveness)
}
