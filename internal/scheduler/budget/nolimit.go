package budget

import (
	"fmt"

	"github.com/bhhoang/enersched/internal/scheduler/jobdb"
)

// NoLimit is the plain EASY-backfilling baseline: admission is constrained by
// host availability only. The reservation window still bounds backfill so the
// pivot is never delayed.
type NoLimit struct {
	res reservation
}

func NewNoLimit() *NoLimit {
	return &NoLimit{}
}

func (c *NoLimit) Name() string {
	return "easy"
}

func (c *NoLimit) EagerSweep() bool {
	return false
}

func (c *NoLimit) Tick(now float64, busy, idle int) {}

func (c *NoLimit) Admit(job *jobdb.Job, now float64, freeHosts int) Admission {
	if freeHosts < job.Width {
		return denied(fmt.Sprintf("%d hosts free, %d requested", freeHosts, job.Width))
	}
	return admitted()
}

func (c *NoLimit) OnLaunch(job *jobdb.Job, now float64) {
	if c.res.held && c.res.jobId == job.Id {
		c.res.clear()
	}
}

func (c *NoLimit) OnComplete(job *jobdb.Job, now float64) {}

func (c *NoLimit) PivotNotRunnable(job *jobdb.Job, now, expectedStart float64) {
	if expectedStart <= now {
		return
	}
	c.res = reservation{jobId: job.Id, end: expectedStart, held: true}
}

func (c *NoLimit) PivotRunnable() {
	c.res.clear()
}

func (c *NoLimit) Reservation() (string, float64, bool) {
	return c.res.jobId, c.res.end, c.res.held
}

func (c *NoLimit) EnergyTime(job *jobdb.Job, now float64) (float64, bool) {
	return 0, false
}
