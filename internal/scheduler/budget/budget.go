// Package budget contains the admission controllers that constrain EASY
// backfilling by an energy or power budget. The decision engine is policy
// agnostic; everything variant-specific lives behind the Controller interface.
package budget

import (
	"github.com/pkg/errors"

	"github.com/bhhoang/enersched/internal/scheduler/configuration"
	"github.com/bhhoang/enersched/internal/scheduler/energy"
	"github.com/bhhoang/enersched/internal/scheduler/jobdb"
)

// Admission is the controller's verdict on launching a job now.
type Admission struct {
	OK bool
	// Reason explains a refusal; empty when OK.
	Reason string
}

func admitted() Admission {
	return Admission{OK: true}
}

func denied(reason string) Admission {
	return Admission{Reason: reason}
}

// Controller gates job admission for one policy variant. All methods are called
// from the single-threaded decision routine; Tick must be called before any
// admissibility query in a tick.
type Controller interface {
	// Name identifies the policy on the wire (EDC hello).
	Name() string
	// EagerSweep reports whether the engine should try to launch every queued
	// job in order before taking a reservation for the pivot.
	EagerSweep() bool
	// Tick advances internal state to the given simulation time. busy and idle
	// are the current host counts.
	Tick(now float64, busy, idle int)
	// Admit reports whether the job may launch now, given the current number of
	// free hosts. For non-reserved jobs the check is tightened by any active
	// reservation.
	Admit(job *jobdb.Job, now float64, freeHosts int) Admission
	// OnLaunch records that a job has been dispatched.
	OnLaunch(job *jobdb.Job, now float64)
	// OnComplete records that a running job has released its resources.
	OnComplete(job *jobdb.Job, now float64)
	// PivotNotRunnable informs the controller that the pivot cannot run now and
	// is expected to start at expectedStart. The controller may install or
	// refresh a reservation. Calls with expectedStart <= now are ignored.
	PivotNotRunnable(job *jobdb.Job, now, expectedStart float64)
	// PivotRunnable clears any active reservation and restores reduced rates.
	PivotRunnable()
	// Reservation returns the reserved job id and the end of the reservation
	// window, if a reservation is held.
	Reservation() (jobId string, end float64, held bool)
	// EnergyTime returns the estimated time at which enough energy will be
	// available for the job, if energy is a binding constraint for it.
	EnergyTime(job *jobdb.Job, now float64) (float64, bool)
}

// New builds the controller selected by the configuration. jobDb is consulted by
// policies whose behaviour depends on queue composition.
func New(
	config configuration.SchedulerConfig,
	params energy.Parameters,
	platformHosts int,
	jobDb *jobdb.JobDb,
) (Controller, error) {
	switch config.Policy {
	case configuration.Easy:
		return NewNoLimit(), nil
	case configuration.PowerCap:
		return NewPowerCap(config, params, platformHosts), nil
	case configuration.EnergyBudget:
		return NewEnergyBudget(config, params, platformHosts), nil
	case configuration.ReducePC:
		return NewReducePC(config, params, platformHosts, jobDb), nil
	default:
		return nil, errors.Errorf("unknown policy %q", config.Policy)
	}
}

// reservation is the pivot reservation held by a controller.
type reservation struct {
	jobId  string
	energy float64
	end    float64
	held   bool
}

func (r *reservation) clear() {
	*r = reservation{}
}
