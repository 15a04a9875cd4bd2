package jobdb

import (
	"github.com/google/uuid"

	"github.com/bhhoang/enersched/internal/scheduler/hostpool"
)

// Job is a job descriptor as received from the simulator. It is immutable after
// submission; scheduling state lives on the Run created at launch.
type Job struct {
	// Id is the simulator's job identifier, unique per simulation.
	Id string
	// Width is the number of hosts requested.
	Width int
	// Walltime is the estimated upper bound on runtime, in seconds. It is a
	// prediction used for reservations, never enforced.
	Walltime float64
	// SubmitTime is the simulation time at which the job was submitted.
	SubmitTime float64
}

// Run is the scheduling state of a launched job.
type Run struct {
	// JobId duplicates Job.Id for indexing.
	JobId string
	// RunId identifies this launch.
	RunId uuid.UUID
	Job   *Job
	// Allocation is the set of hosts the job runs on.
	Allocation hostpool.Allocation
	StartTime  float64
	// ProjectedEnd is StartTime + the job's walltime.
	ProjectedEnd float64
}
