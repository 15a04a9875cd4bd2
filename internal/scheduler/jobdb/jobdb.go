// Package jobdb owns the wait queue and the running set. The wait queue is kept
// strictly in submission order; the running set is stored in an in-memory memdb
// indexed by job id and by projected end time, the latter serving the
// expected-start timeline.
package jobdb

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/bhhoang/enersched/internal/scheduler/hostpool"
)

const (
	runsTable         = "runs"
	idIndex           = "id"
	projectedEndIndex = "projectedEnd"
)

// JobDb holds all jobs known to the scheduler that have not yet terminated.
type JobDb struct {
	platformHosts int
	queue         []*Job
	db            *memdb.MemDB
}

func NewJobDb(platformHosts int) (*JobDb, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			runsTable: {
				Name: runsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "JobId"},
					},
					projectedEndIndex: {
						Name:    projectedEndIndex,
						Unique:  false,
						Indexer: &projectedEndIndexer{},
					},
				},
			},
		},
	}
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &JobDb{platformHosts: platformHosts, db: db}, nil
}

// Enqueue appends a job to the tail of the wait queue. Jobs wider than the
// platform are refused.
func (jobDb *JobDb) Enqueue(job *Job) error {
	if job.Width > jobDb.platformHosts {
		return errors.Errorf(
			"job %s requests %d hosts but the platform has %d",
			job.Id, job.Width, jobDb.platformHosts,
		)
	}
	jobDb.queue = append(jobDb.queue, job)
	return nil
}

// Head returns the pivot job without removing it, or nil if the queue is empty.
func (jobDb *JobDb) Head() *Job {
	if len(jobDb.queue) == 0 {
		return nil
	}
	return jobDb.queue[0]
}

// Queued returns a snapshot of the wait queue in submission order.
func (jobDb *JobDb) Queued() []*Job {
	queued := make([]*Job, len(jobDb.queue))
	copy(queued, jobDb.queue)
	return queued
}

// Backfill returns a snapshot of the wait queue after the head, in submission order.
func (jobDb *JobDb) Backfill() []*Job {
	if len(jobDb.queue) <= 1 {
		return nil
	}
	backfill := make([]*Job, len(jobDb.queue)-1)
	copy(backfill, jobDb.queue[1:])
	return backfill
}

func (jobDb *JobDb) QueueLen() int {
	return len(jobDb.queue)
}

// Promote moves a queued job to the running set with start time now. The queue
// order of the remaining jobs is preserved.
func (jobDb *JobDb) Promote(job *Job, allocation hostpool.Allocation, now float64) (*Run, error) {
	idx := -1
	for i, queued := range jobDb.queue {
		if queued.Id == job.Id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.Errorf("job %s is not queued", job.Id)
	}
	run := &Run{
		JobId:        job.Id,
		RunId:        uuid.New(),
		Job:          job,
		Allocation:   allocation,
		StartTime:    now,
		ProjectedEnd: now + job.Walltime,
	}
	txn := jobDb.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(runsTable, run); err != nil {
		return nil, errors.WithStack(err)
	}
	txn.Commit()
	jobDb.queue = append(jobDb.queue[:idx], jobDb.queue[idx+1:]...)
	return run, nil
}

// Complete removes a running job and returns its run for host release. The
// second return is false if no job with that id is running; duplicate completion
// deliveries are tolerated by the caller.
func (jobDb *JobDb) Complete(jobId string) (*Run, bool, error) {
	txn := jobDb.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(runsTable, idIndex, jobId)
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	if raw == nil {
		return nil, false, nil
	}
	run := raw.(*Run)
	if err := txn.Delete(runsTable, run); err != nil {
		return nil, false, errors.WithStack(err)
	}
	txn.Commit()
	return run, true, nil
}

// RunningCount returns the number of running jobs.
func (jobDb *JobDb) RunningCount() int {
	txn := jobDb.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(runsTable, idIndex)
	if err != nil {
		return 0
	}
	n := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		n++
	}
	return n
}

// RunsByProjectedEnd returns the running jobs ordered by ascending projected end
// time. This is the timeline used to estimate when the pivot's hosts free up.
func (jobDb *JobDb) RunsByProjectedEnd() ([]*Run, error) {
	txn := jobDb.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(runsTable, projectedEndIndex)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var runs []*Run
	for raw := it.Next(); raw != nil; raw = it.Next() {
		runs = append(runs, raw.(*Run))
	}
	return runs, nil
}
