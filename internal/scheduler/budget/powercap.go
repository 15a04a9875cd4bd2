package budget

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/bhhoang/enersched/internal/scheduler/configuration"
	"github.com/bhhoang/enersched/internal/scheduler/energy"
	"github.com/bhhoang/enersched/internal/scheduler/jobdb"
)

// PowerCap withholds any job whose launch would push estimated platform power
// above a fixed ceiling. The cap is memoryless: no energy is accumulated or
// reserved across ticks.
type PowerCap struct {
	params        energy.Parameters
	platformHosts int
	// pLimit is the power ceiling in watts, derived from the budget fraction.
	pLimit float64
	res    reservation
}

func NewPowerCap(config configuration.SchedulerConfig, params energy.Parameters, platformHosts int) *PowerCap {
	pLimit := config.BudgetFraction * float64(platformHosts) * params.PComp
	log.WithField("pLimitWatts", pLimit).Info("power cap derived from budget fraction")
	return &PowerCap{
		params:        params,
		platformHosts: platformHosts,
		pLimit:        pLimit,
	}
}

func (c *PowerCap) Name() string {
	return "powercap"
}

func (c *PowerCap) EagerSweep() bool {
	return false
}

func (c *PowerCap) Tick(now float64, busy, idle int) {}

func (c *PowerCap) Admit(job *jobdb.Job, now float64, freeHosts int) Admission {
	if freeHosts < job.Width {
		return denied(fmt.Sprintf("%d hosts free, %d requested", freeHosts, job.Width))
	}
	busyAfter := c.platformHosts - freeHosts + job.Width
	idleAfter := freeHosts - job.Width
	projected := c.params.PlatformPower(busyAfter, idleAfter)
	if projected > c.pLimit {
		return denied(fmt.Sprintf("projected power %.2f W exceeds limit %.2f W", projected, c.pLimit))
	}
	return admitted()
}

func (c *PowerCap) OnLaunch(job *jobdb.Job, now float64) {
	if c.res.held && c.res.jobId == job.Id {
		c.res.clear()
	}
}

func (c *PowerCap) OnComplete(job *jobdb.Job, now float64) {}

func (c *PowerCap) PivotNotRunnable(job *jobdb.Job, now, expectedStart float64) {
	if expectedStart <= now {
		return
	}
	c.res = reservation{jobId: job.Id, end: expectedStart, held: true}
}

func (c *PowerCap) PivotRunnable() {
	c.res.clear()
}

func (c *PowerCap) Reservation() (string, float64, bool) {
	return c.res.jobId, c.res.end, c.res.held
}

func (c *PowerCap) EnergyTime(job *jobdb.Job, now float64) (float64, bool) {
	return 0, false
}
