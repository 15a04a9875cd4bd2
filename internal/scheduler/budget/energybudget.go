package budget

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/bhhoang/enersched/internal/scheduler/configuration"
	"github.com/bhhoang/enersched/internal/scheduler/energy"
	"github.com/bhhoang/enersched/internal/scheduler/jobdb"
)

// energyTimeSafetyMargin pads the estimate of when missing energy will have
// accumulated, so reservations are not installed right at the break-even point.
const energyTimeSafetyMargin = 1.1

// EnergyBudgetController replenishes an energy counter at a fixed nominal rate
// and draws it down by the estimated platform consumption. A job is admitted
// when the counter plus the replenishment over the job's own runtime covers its
// estimated energy (the lookahead rule). A reservation for the pivot statically
// withholds the pivot's energy from every other candidate.
type EnergyBudgetController struct {
	state energyState
	res   reservation
}

func NewEnergyBudget(config configuration.SchedulerConfig, params energy.Parameters, platformHosts int) *EnergyBudgetController {
	state := newEnergyState(params, platformHosts, config.BudgetFraction, config.PeriodLengthSeconds, config.MonitoringIntervalSeconds)
	log.WithField("rNominalWatts", state.rNominal).Info("energy budget replenishment rate derived")
	return &EnergyBudgetController{state: state}
}

func (c *EnergyBudgetController) Name() string {
	return "energybudget"
}

func (c *EnergyBudgetController) EagerSweep() bool {
	return true
}

func (c *EnergyBudgetController) Tick(now float64, busy, idle int) {
	c.state.tick(now, busy, idle, c.state.rNominal)
}

func (c *EnergyBudgetController) Admit(job *jobdb.Job, now float64, freeHosts int) Admission {
	if freeHosts < job.Width {
		return denied(fmt.Sprintf("%d hosts free, %d requested", freeHosts, job.Width))
	}
	available := c.state.eAvailable
	if c.res.held && c.res.jobId != job.Id {
		available -= c.res.energy
	}
	eJob := c.state.params.JobEnergy(job.Width, job.Walltime)
	if !c.state.lookahead(available, c.state.rNominal, eJob, job.Walltime) {
		return denied(fmt.Sprintf("job needs %.2f J, %.2f J available", eJob, available))
	}
	return admitted()
}

func (c *EnergyBudgetController) OnLaunch(job *jobdb.Job, now float64) {
	if c.res.held && c.res.jobId == job.Id {
		c.res.clear()
	}
}

func (c *EnergyBudgetController) OnComplete(job *jobdb.Job, now float64) {}

func (c *EnergyBudgetController) PivotNotRunnable(job *jobdb.Job, now, expectedStart float64) {
	if expectedStart <= now {
		return
	}
	c.res = reservation{
		jobId:  job.Id,
		energy: c.state.params.JobEnergy(job.Width, job.Walltime),
		end:    now + job.Walltime,
		held:   true,
	}
}

func (c *EnergyBudgetController) PivotRunnable() {
	c.res.clear()
}

func (c *EnergyBudgetController) Reservation() (string, float64, bool) {
	return c.res.jobId, c.res.end, c.res.held
}

func (c *EnergyBudgetController) EnergyTime(job *jobdb.Job, now float64) (float64, bool) {
	eJob := c.state.params.JobEnergy(job.Width, job.Walltime)
	missing := eJob - c.state.eAvailable
	if missing <= 0 || c.state.rNominal <= 0 {
		return 0, false
	}
	return now + missing/c.state.rNominal*energyTimeSafetyMargin, true
}

// EnergyAvailable exposes the counter for observability.
func (c *EnergyBudgetController) EnergyAvailable() float64 {
	return c.state.eAvailable
}

// EnergyConsumed exposes the cumulative estimated draw for observability.
func (c *EnergyBudgetController) EnergyConsumed() float64 {
	return c.state.eConsumed
}

// ReplenishmentRate exposes the current replenishment rate for observability.
func (c *EnergyBudgetController) ReplenishmentRate() float64 {
	return c.state.rNominal
}
