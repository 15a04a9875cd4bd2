// Package engine implements the EASY-backfilling decision engine. Each call to
// HandleBatch is one tick: events are ingested in order, the budget controller
// is advanced, and launch decisions are taken in well-defined phases.
package engine

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bhhoang/enersched/internal/scheduler/budget"
	"github.com/bhhoang/enersched/internal/scheduler/configuration"
	"github.com/bhhoang/enersched/internal/scheduler/energy"
	"github.com/bhhoang/enersched/internal/scheduler/hostpool"
	"github.com/bhhoang/enersched/internal/scheduler/jobdb"
)

// Version is reported in the EDC hello reply.
const Version = "1.0.0"

// farFuture is how far past now the expected start is placed when no
// completion timeline can free enough hosts for the pivot.
const farFuture = 1e9

// Engine consumes event batches and produces decision batches. It owns the host
// pool, the job registry and the budget controller; concurrent use is not
// supported, matching the simulator's synchronous decision loop.
type Engine struct {
	config configuration.SchedulerConfig
	params energy.Parameters

	began      bool
	hosts      int
	pool       *hostpool.Pool
	jobDb      *jobdb.JobDb
	controller budget.Controller

	decisions []Decision

	launched   uint64
	rejected   uint64
	backfilled uint64
}

func New(config configuration.SchedulerConfig) *Engine {
	return &Engine{
		config: config,
		params: energy.Parameters{PIdle: config.PIdleWatts, PComp: config.PCompWatts},
	}
}

// HandleBatch runs one tick at simulation time now. The returned decisions are
// in the order they were taken. A non-nil error is fatal for the tick and
// instructs the simulator to abort.
func (e *Engine) HandleBatch(now float64, events []Event) ([]Decision, error) {
	e.decisions = nil

	// Phase 1: ingest events in order.
	for _, event := range events {
		if err := e.ingest(now, event); err != nil {
			return nil, err
		}
	}
	if !e.began {
		return e.decisions, nil
	}

	// Phase 2: advance the controller to this tick.
	e.controller.Tick(now, e.pool.BusyCount(), e.pool.FreeCount())

	// Phase 3: eager launch sweep for the counter-based policies, where queued
	// jobs may advance head to tail without any reservation being necessary.
	if e.controller.EagerSweep() {
		for _, job := range e.jobDb.Queued() {
			if adm := e.controller.Admit(job, now, e.pool.FreeCount()); adm.OK {
				if _, err := e.allocateAndLaunch(job, now, false); err != nil {
					return nil, err
				}
			}
		}
	}

	// Phase 4: launch the pivot or install a reservation for it.
	for e.jobDb.QueueLen() > 0 {
		if _, _, held := e.controller.Reservation(); held {
			break
		}
		head := e.jobDb.Head()
		adm := e.controller.Admit(head, now, e.pool.FreeCount())
		if adm.OK {
			launched, err := e.allocateAndLaunch(head, now, false)
			if err != nil {
				return nil, err
			}
			if launched {
				continue
			}
		} else {
			log.WithFields(log.Fields{"jobId": head.Id, "reason": adm.Reason}).Debug("pivot not runnable")
		}
		expectedStart, err := e.expectedStart(head, now)
		if err != nil {
			return nil, err
		}
		e.controller.PivotNotRunnable(head, now, expectedStart)
		break
	}

	// Phase 5: backfill sweep. Candidates must fit the hosts, pass the
	// (reservation-tightened) budget check, and provably free their hosts
	// before the reserved pivot starts.
	reservedId, reservationEnd, held := e.controller.Reservation()
	for _, job := range e.jobDb.Backfill() {
		if held && job.Id == reservedId {
			continue
		}
		if e.pool.FreeCount() < job.Width {
			continue
		}
		if held && now+job.Walltime > reservationEnd {
			continue
		}
		if adm := e.controller.Admit(job, now, e.pool.FreeCount()); !adm.OK {
			continue
		}
		if _, err := e.allocateAndLaunch(job, now, true); err != nil {
			return nil, err
		}
	}

	// Phase 6: recheck the reserved pivot now that backfill has settled.
	if reservedId, _, held := e.controller.Reservation(); held {
		if head := e.jobDb.Head(); head != nil && head.Id == reservedId {
			if adm := e.controller.Admit(head, now, e.pool.FreeCount()); adm.OK {
				launched, err := e.allocateAndLaunch(head, now, false)
				if err != nil {
					return nil, err
				}
				if launched {
					e.controller.PivotRunnable()
				}
			}
		}
	}

	return e.decisions, nil
}

func (e *Engine) ingest(now float64, event Event) error {
	switch ev := event.(type) {
	case Hello:
		e.decisions = append(e.decisions, HelloReply{Name: string(e.config.Policy), Version: Version})
	case SimulationBegins:
		return e.beginSimulation(ev.HostCount)
	case JobSubmitted:
		return e.submit(now, ev)
	case JobCompleted:
		return e.complete(now, ev.Id)
	case AllStaticJobsSubmitted:
		// Informational; the scheduling phases below run regardless.
	default:
		log.WithField("event", event).Warn("ignoring unknown event")
	}
	return nil
}

func (e *Engine) beginSimulation(hostCount int) error {
	if hostCount <= 0 {
		return errors.Errorf("simulation begins with invalid host count %d", hostCount)
	}
	jobDb, err := jobdb.NewJobDb(hostCount)
	if err != nil {
		return err
	}
	controller, err := budget.New(e.config, e.params, hostCount, jobDb)
	if err != nil {
		return err
	}
	e.began = true
	e.hosts = hostCount
	e.pool = hostpool.New(hostCount)
	e.jobDb = jobDb
	e.controller = controller
	log.WithFields(log.Fields{"hosts": hostCount, "policy": e.config.Policy}).Info("simulation begins")
	return nil
}

func (e *Engine) submit(now float64, ev JobSubmitted) error {
	if !e.began {
		log.WithField("jobId", ev.Id).Warn("job submitted before simulation begins, ignoring")
		return nil
	}
	job := &jobdb.Job{Id: ev.Id, Width: ev.Width, Walltime: ev.Walltime, SubmitTime: now}
	if job.Width > e.hosts {
		e.decisions = append(e.decisions, RejectJob{JobId: job.Id})
		e.rejected++
		log.WithFields(log.Fields{"jobId": job.Id, "width": job.Width, "hosts": e.hosts}).
			Info("rejecting job wider than the platform")
		return nil
	}
	return e.jobDb.Enqueue(job)
}

func (e *Engine) complete(now float64, jobId string) error {
	if !e.began {
		return nil
	}
	run, ok, err := e.jobDb.Complete(jobId)
	if err != nil {
		return err
	}
	if !ok {
		log.WithField("jobId", jobId).Warn("completion for unknown job, ignoring")
		return nil
	}
	if err := e.pool.Release(run.Allocation); err != nil {
		return errors.Wrapf(err, "releasing hosts of job %s", jobId)
	}
	e.controller.OnComplete(run.Job, now)
	if reservedId, _, held := e.controller.Reservation(); held && reservedId == jobId {
		e.controller.PivotRunnable()
	}
	log.WithFields(log.Fields{"jobId": jobId, "runId": run.RunId, "hosts": run.Allocation.String()}).
		Debug("job completed, hosts released")
	return nil
}

// allocateAndLaunch promotes a queued job onto freshly allocated hosts. An
// allocation failure is recoverable: the job stays queued and false is returned.
func (e *Engine) allocateAndLaunch(job *jobdb.Job, now float64, backfill bool) (bool, error) {
	allocation, ok := e.pool.TryAllocate(job.Width)
	if !ok {
		return false, nil
	}
	run, err := e.jobDb.Promote(job, allocation, now)
	if err != nil {
		if releaseErr := e.pool.Release(allocation); releaseErr != nil {
			return false, releaseErr
		}
		return false, err
	}
	e.controller.OnLaunch(job, now)
	e.decisions = append(e.decisions, ExecuteJob{JobId: job.Id, Hosts: allocation.String()})
	e.launched++
	if backfill {
		e.backfilled++
	}
	log.WithFields(log.Fields{
		"jobId":    job.Id,
		"runId":    run.RunId,
		"hosts":    allocation.String(),
		"backfill": backfill,
	}).Info("job launched")
	return true, nil
}

// expectedStart estimates when the pivot can start: the earliest time the
// completion timeline frees enough hosts, pushed later if the controller
// reports energy as the binding constraint.
func (e *Engine) expectedStart(job *jobdb.Job, now float64) (float64, error) {
	resourceTime := now
	if e.pool.FreeCount() < job.Width {
		runs, err := e.jobDb.RunsByProjectedEnd()
		if err != nil {
			return 0, err
		}
		resourceTime = now + farFuture
		freed := e.pool.FreeCount()
		for _, run := range runs {
			freed += run.Allocation.Size()
			if freed >= job.Width {
				resourceTime = run.ProjectedEnd
				if resourceTime < now {
					// The freeing job has outlived its walltime; it may end any moment.
					resourceTime = now
				}
				break
			}
		}
	}
	if energyTime, ok := e.controller.EnergyTime(job, now); ok && energyTime > resourceTime {
		return energyTime, nil
	}
	return resourceTime, nil
}
