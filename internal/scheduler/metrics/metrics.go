// Package metrics exposes scheduler state as prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bhhoang/enersched/internal/scheduler/engine"
)

const prefix = "enersched_"

var (
	freeHostsDesc = prometheus.NewDesc(
		prefix+"free_hosts",
		"Number of idle hosts.",
		nil, nil,
	)
	queuedJobsDesc = prometheus.NewDesc(
		prefix+"queued_jobs",
		"Number of jobs in the wait queue.",
		nil, nil,
	)
	runningJobsDesc = prometheus.NewDesc(
		prefix+"running_jobs",
		"Number of running jobs.",
		nil, nil,
	)
	energyAvailableDesc = prometheus.NewDesc(
		prefix+"energy_available_joules",
		"Energy counter of the budget controller.",
		nil, nil,
	)
	energyConsumedDesc = prometheus.NewDesc(
		prefix+"energy_consumed_joules",
		"Cumulative estimated platform energy draw.",
		nil, nil,
	)
	replenishmentRateDesc = prometheus.NewDesc(
		prefix+"replenishment_rate_watts",
		"Current energy replenishment rate.",
		nil, nil,
	)
	launchedDesc = prometheus.NewDesc(
		prefix+"jobs_launched_total",
		"Jobs launched since the simulation began.",
		nil, nil,
	)
	rejectedDesc = prometheus.NewDesc(
		prefix+"jobs_rejected_total",
		"Jobs rejected at submission.",
		nil, nil,
	)
	backfilledDesc = prometheus.NewDesc(
		prefix+"jobs_backfilled_total",
		"Jobs launched out of order by the backfill sweep.",
		nil, nil,
	)
)

// Snapshotter is implemented by the decision engine.
type Snapshotter interface {
	Snapshot() engine.Snapshot
}

// Collector is a prometheus.Collector over an engine snapshot.
type Collector struct {
	snapshotter Snapshotter
}

func NewCollector(snapshotter Snapshotter) *Collector {
	return &Collector{snapshotter: snapshotter}
}

func (c *Collector) Describe(out chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, out)
}

func (c *Collector) Collect(out chan<- prometheus.Metric) {
	snapshot := c.snapshotter.Snapshot()
	out <- prometheus.MustNewConstMetric(freeHostsDesc, prometheus.GaugeValue, float64(snapshot.FreeHosts))
	out <- prometheus.MustNewConstMetric(queuedJobsDesc, prometheus.GaugeValue, float64(snapshot.QueuedJobs))
	out <- prometheus.MustNewConstMetric(runningJobsDesc, prometheus.GaugeValue, float64(snapshot.RunningJobs))
	out <- prometheus.MustNewConstMetric(launchedDesc, prometheus.CounterValue, float64(snapshot.Launched))
	out <- prometheus.MustNewConstMetric(rejectedDesc, prometheus.CounterValue, float64(snapshot.Rejected))
	out <- prometheus.MustNewConstMetric(backfilledDesc, prometheus.CounterValue, float64(snapshot.Backfilled))
	if snapshot.HasEnergyState {
		out <- prometheus.MustNewConstMetric(energyAvailableDesc, prometheus.GaugeValue, snapshot.EnergyAvailable)
		out <- prometheus.MustNewConstMetric(energyConsumedDesc, prometheus.CounterValue, snapshot.EnergyConsumed)
		out <- prometheus.MustNewConstMetric(replenishmentRateDesc, prometheus.GaugeValue, snapshot.ReplenishmentRate)
	}
}
