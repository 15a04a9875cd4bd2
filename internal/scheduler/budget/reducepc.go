package budget

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/bhhoang/enersched/internal/scheduler/configuration"
	"github.com/bhhoang/enersched/internal/scheduler/energy"
	"github.com/bhhoang/enersched/internal/scheduler/jobdb"
)

const (
	// minRateFactorSmallJobs applies when the queue is dominated by small jobs,
	// leaving them more residual replenishment to backfill with.
	minRateFactorSmallJobs = 0.5
	minRateFactorDefault   = 0.3
	// energyTimeHorizon bounds how far into the future an energy shortage may
	// push the expected start. The counter refills continuously, so a short
	// horizon re-evaluated every tick is preferable to a long static hold.
	energyTimeHorizon = 5.0
)

// ReducePCController expresses the EASY reservation as a reduction of the
// replenishment rate: rather than holding the pivot's energy statically, the
// rate is lowered just enough that the pivot's energy is accumulated by its
// expected start, and backfill candidates are admitted against the residual flow.
type ReducePCController struct {
	state energyState
	jobDb *jobdb.JobDb
	// rCurrent is in [m*rNominal, rNominal] while a reservation is active and
	// equals rNominal otherwise.
	rCurrent float64
	res      reservation
}

func NewReducePC(config configuration.SchedulerConfig, params energy.Parameters, platformHosts int, jobDb *jobdb.JobDb) *ReducePCController {
	state := newEnergyState(params, platformHosts, config.BudgetFraction, config.PeriodLengthSeconds, config.MonitoringIntervalSeconds)
	log.WithField("rNominalWatts", state.rNominal).Info("energy budget replenishment rate derived")
	return &ReducePCController{
		state:    state,
		jobDb:    jobDb,
		rCurrent: state.rNominal,
	}
}

func (c *ReducePCController) Name() string {
	return "reducepc"
}

func (c *ReducePCController) EagerSweep() bool {
	return true
}

func (c *ReducePCController) Tick(now float64, busy, idle int) {
	c.state.tick(now, busy, idle, c.rCurrent)
	if c.res.held && now >= c.res.end {
		c.res.clear()
		c.rCurrent = c.state.rNominal
	}
}

func (c *ReducePCController) Admit(job *jobdb.Job, now float64, freeHosts int) Admission {
	if freeHosts < job.Width {
		return denied(fmt.Sprintf("%d hosts free, %d requested", freeHosts, job.Width))
	}
	eJob := c.state.params.JobEnergy(job.Width, job.Walltime)
	if !c.state.lookahead(c.state.eAvailable, c.rCurrent, eJob, job.Walltime) {
		return denied(fmt.Sprintf("job needs %.2f J, %.2f J available at %.2f W", eJob, c.state.eAvailable, c.rCurrent))
	}
	return admitted()
}

func (c *ReducePCController) OnLaunch(job *jobdb.Job, now float64) {
	if c.res.held && c.res.jobId == job.Id {
		c.res.clear()
		c.rCurrent = c.state.rNominal
	}
}

func (c *ReducePCController) OnComplete(job *jobdb.Job, now float64) {}

// PivotNotRunnable lowers the replenishment rate so that the pivot's energy is
// guaranteed available by expectedStart, floored at a fraction of the nominal
// rate that depends on queue composition.
func (c *ReducePCController) PivotNotRunnable(job *jobdb.Job, now, expectedStart float64) {
	deltaT := expectedStart - now
	if deltaT <= 0 {
		return
	}
	eJob := c.state.params.JobEnergy(job.Width, job.Walltime)
	rMin := c.minRateFactor() * c.state.rNominal
	reduced := c.state.rNominal - eJob/deltaT
	if reduced < rMin {
		reduced = rMin
	}
	c.rCurrent = reduced
	c.res = reservation{jobId: job.Id, energy: eJob, end: expectedStart, held: true}
	log.WithFields(log.Fields{
		"jobId":         job.Id,
		"rCurrentWatts": c.rCurrent,
		"until":         expectedStart,
	}).Debug("replenishment rate reduced for pivot reservation")
}

func (c *ReducePCController) PivotRunnable() {
	if c.res.held {
		c.res.clear()
		c.rCurrent = c.state.rNominal
	}
}

func (c *ReducePCController) Reservation() (string, float64, bool) {
	return c.res.jobId, c.res.end, c.res.held
}

func (c *ReducePCController) EnergyTime(job *jobdb.Job, now float64) (float64, bool) {
	eJob := c.state.params.JobEnergy(job.Width, job.Walltime)
	missing := eJob - c.state.eAvailable
	if missing <= 0 || c.state.rNominal <= 0 {
		return 0, false
	}
	t := now + missing/c.state.rNominal*energyTimeSafetyMargin
	if t > now+energyTimeHorizon {
		t = now + energyTimeHorizon
	}
	return t, true
}

// minRateFactor keeps more replenishment flowing when more than half of the
// waiting jobs need less than half of the queue's mean energy, so a large pivot
// cannot starve a queue of small jobs.
func (c *ReducePCController) minRateFactor() float64 {
	queued := c.jobDb.Queued()
	if len(queued) == 0 {
		return minRateFactorDefault
	}
	var total float64
	energies := make([]float64, len(queued))
	for i, job := range queued {
		energies[i] = c.state.params.JobEnergy(job.Width, job.Walltime)
		total += energies[i]
	}
	mean := total / float64(len(queued))
	small := 0
	for _, e := range energies {
		if e < mean/2 {
			small++
		}
	}
	if 2*small > len(queued) {
		return minRateFactorSmallJobs
	}
	return minRateFactorDefault
}

func (c *ReducePCController) EnergyAvailable() float64 {
	return c.state.eAvailable
}

func (c *ReducePCController) EnergyConsumed() float64 {
	return c.state.eConsumed
}

func (c *ReducePCController) ReplenishmentRate() float64 {
	return c.rCurrent
}
