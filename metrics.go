// Package uid - metrics.go exports generator counters to Prometheus.

package uid

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a CachedGenerator's counters as Prometheus metrics.
// Register it on any registry:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(uid.NewCollector(gen))
type Collector struct {
	gen *CachedGenerator

	mintedDesc        *prometheus.Desc
	clockBackwardDesc *prometheus.Desc
	sequenceWaitsDesc *prometheus.Desc
	reassignmentsDesc *prometheus.Desc
	ringFillDesc      *prometheus.Desc
	ringSizeDesc      *prometheus.Desc
	putRejectsDesc    *prometheus.Desc
	takeRejectsDesc   *prometheus.Desc
}

// NewCollector builds a collector over gen. Metrics carry a constant
// "worker" label so several generators can share a registry.
func NewCollector(gen *CachedGenerator) *Collector {
	labels := prometheus.Labels{"worker": strconv.FormatInt(gen.WorkerID(), 10)}
	return &Collector{
		gen: gen,
		mintedDesc: prometheus.NewDesc(
			"uid_minted_total",
			"IDs minted, including pre-minted batches.",
			nil, labels),
		clockBackwardDesc: prometheus.NewDesc(
			"uid_clock_backward_total",
			"Clock regressions observed by the minter.",
			nil, labels),
		sequenceWaitsDesc: prometheus.NewDesc(
			"uid_sequence_waits_total",
			"Sequence wraps that waited for the next second.",
			nil, labels),
		reassignmentsDesc: prometheus.NewDesc(
			"uid_worker_reassignments_total",
			"Worker identities replaced after intolerable clock regression.",
			nil, labels),
		ringFillDesc: prometheus.NewDesc(
			"uid_ring_fill",
			"Published but unconsumed IDs in the ring buffer.",
			nil, labels),
		ringSizeDesc: prometheus.NewDesc(
			"uid_ring_size",
			"Ring buffer slot count.",
			nil, labels),
		putRejectsDesc: prometheus.NewDesc(
			"uid_ring_put_rejects_total",
			"Puts rejected because the ring was full.",
			nil, labels),
		takeRejectsDesc: prometheus.NewDesc(
			"uid_ring_take_rejects_total",
			"Takes rejected because the ring was empty.",
			nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.mintedDesc
	ch <- c.clockBackwardDesc
	ch <- c.sequenceWaitsDesc
	ch <- c.reassignmentsDesc
	ch <- c.ringFillDesc
	ch <- c.ringSizeDesc
	ch <- c.putRejectsDesc
	ch <- c.takeRejectsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.gen.Stats()
	ring := c.gen.Ring()

	ch <- prometheus.MustNewConstMetric(c.mintedDesc, prometheus.CounterValue, float64(stats.Minted))
	ch <- prometheus.MustNewConstMetric(c.clockBackwardDesc, prometheus.CounterValue, float64(stats.ClockBackward))
	ch <- prometheus.MustNewConstMetric(c.sequenceWaitsDesc, prometheus.CounterValue, float64(stats.SequenceWaits))
	ch <- prometheus.MustNewConstMetric(c.reassignmentsDesc, prometheus.CounterValue, float64(stats.Reassignments))
	ch <- prometheus.MustNewConstMetric(c.ringFillDesc, prometheus.GaugeValue, float64(ring.Fill()))
	ch <- prometheus.MustNewConstMetric(c.ringSizeDesc, prometheus.GaugeValue, float64(ring.Size()))
	ch <- prometheus.MustNewConstMetric(c.putRejectsDesc, prometheus.CounterValue, float64(ring.PutRejects()))
	ch <- prometheus.MustNewConstMetric(c.takeRejectsDesc, prometheus.CounterValue, float64(ring.TakeRejects()))
}
