package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhhoang/enersched/internal/scheduler/configuration"
	"github.com/bhhoang/enersched/internal/scheduler/jobdb"
)

func newReducePC(t *testing.T, budgetFraction float64, queued ...*jobdb.Job) (*ReducePCController, *jobdb.JobDb) {
	jobDb, err := jobdb.NewJobDb(4)
	require.NoError(t, err)
	for _, job := range queued {
		require.NoError(t, jobDb.Enqueue(job))
	}
	config := testConfig(configuration.ReducePC, budgetFraction)
	return NewReducePC(config, testParams, 4, jobDb), jobDb
}

func TestReducePCReservationReducesRate(t *testing.T) {
	// 4 hosts at 200 W: rNominal = 800 W.
	pivot := &jobdb.Job{Id: "pivot", Width: 4, Walltime: 100} // needs 80000 J
	c, _ := newReducePC(t, 1.0, pivot)
	c.Tick(0, 0, 4)
	require.Equal(t, 800.0, c.ReplenishmentRate())

	// 80000 J over 50 s wants a 1600 W reduction: the rate hits the floor of
	// 0.3 * 800 = 240 W.
	c.PivotNotRunnable(pivot, 0, 50)
	assert.Equal(t, 240.0, c.ReplenishmentRate())

	jobId, end, held := c.Reservation()
	require.True(t, held)
	assert.Equal(t, "pivot", jobId)
	assert.Equal(t, 50.0, end)
}

func TestReducePCPartialReduction(t *testing.T) {
	// 16000 J over 40 s reduces the rate by 400 W, above the floor.
	pivot := &jobdb.Job{Id: "pivot", Width: 4, Walltime: 20} // needs 16000 J
	c, _ := newReducePC(t, 1.0, pivot)
	c.Tick(0, 0, 4)

	c.PivotNotRunnable(pivot, 0, 40)
	assert.Equal(t, 400.0, c.ReplenishmentRate())
}

func TestReducePCRateFloorDependsOnQueueComposition(t *testing.T) {
	pivot := &jobdb.Job{Id: "pivot", Width: 4, Walltime: 100} // 80000 J
	tests := map[string]struct {
		queue    []*jobdb.Job
		expected float64
	}{
		"pivot alone": {
			queue:    []*jobdb.Job{pivot},
			expected: 240, // m = 0.3
		},
		"small jobs dominate": {
			// Energies 80000, 2000, 2000: mean 28000, two of three jobs are
			// below half the mean, so the floor rises to 0.5 * 800 = 400 W.
			queue: []*jobdb.Job{
				pivot,
				{Id: "s1", Width: 1, Walltime: 10},
				{Id: "s2", Width: 1, Walltime: 10},
			},
			expected: 400,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := newReducePC(t, 1.0, tc.queue...)
			c.Tick(0, 0, 4)
			c.PivotNotRunnable(pivot, 0, 50)
			assert.Equal(t, tc.expected, c.ReplenishmentRate())
		})
	}
}

func TestReducePCTickUsesReducedRateAndRestores(t *testing.T) {
	pivot := &jobdb.Job{Id: "pivot", Width: 4, Walltime: 100}
	c, _ := newReducePC(t, 1.0, pivot)
	c.Tick(0, 0, 4)
	seed := c.EnergyAvailable()

	c.PivotNotRunnable(pivot, 0, 50)
	require.Equal(t, 240.0, c.ReplenishmentRate())

	// 10 s all idle: released at the reduced 240 W, drawn 4 * 100 W.
	c.Tick(10, 0, 4)
	assert.InDelta(t, seed+240*10-4000, c.EnergyAvailable(), 1e-9)
	_, _, held := c.Reservation()
	assert.True(t, held)

	// Reaching the reservation end restores the nominal rate.
	c.Tick(50, 0, 4)
	assert.Equal(t, 800.0, c.ReplenishmentRate())
	_, _, held = c.Reservation()
	assert.False(t, held)
}

func TestReducePCAdmitUsesCurrentRate(t *testing.T) {
	pivot := &jobdb.Job{Id: "pivot", Width: 4, Walltime: 100}
	c, _ := newReducePC(t, 1.0, pivot)
	c.Tick(0, 0, 4)

	// Drain the counter so admission rides on the lookahead term alone.
	c.state.eAvailable = 0

	// 4000 J over 10 s: admitted at 800 W (8000 J lookahead).
	candidate := &jobdb.Job{Id: "c1", Width: 2, Walltime: 10}
	assert.True(t, c.Admit(candidate, 0, 4).OK)

	// At the reduced 240 W the same job no longer fits: 2400 < 4000.
	c.PivotNotRunnable(pivot, 0, 50)
	assert.False(t, c.Admit(candidate, 0, 4).OK)
}

func TestReducePCEnergyTimeIsBounded(t *testing.T) {
	pivot := &jobdb.Job{Id: "pivot", Width: 4, Walltime: 100}
	c, _ := newReducePC(t, 1.0, pivot)
	c.Tick(0, 0, 4)
	c.state.eAvailable = 0

	// Missing 80000 J at 800 W would be 110 s with the margin; the horizon
	// clamps it so reservations are re-evaluated as the counter refills.
	at, binding := c.EnergyTime(pivot, 20)
	require.True(t, binding)
	assert.Equal(t, 25.0, at)
}

func TestReducePCPivotRunnableRestoresRate(t *testing.T) {
	pivot := &jobdb.Job{Id: "pivot", Width: 4, Walltime: 100}
	c, _ := newReducePC(t, 1.0, pivot)
	c.Tick(0, 0, 4)
	c.PivotNotRunnable(pivot, 0, 50)
	require.Equal(t, 240.0, c.ReplenishmentRate())

	c.PivotRunnable()
	assert.Equal(t, 800.0, c.ReplenishmentRate())
	_, _, held := c.Reservation()
	assert.False(t, held)
}
