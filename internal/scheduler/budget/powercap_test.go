package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bhhoang/enersched/internal/scheduler/configuration"
	"github.com/bhhoang/enersched/internal/scheduler/energy"
	"github.com/bhhoang/enersched/internal/scheduler/jobdb"
)

var testParams = energy.Parameters{PIdle: 100, PComp: 200}

func testConfig(policy configuration.Policy, budgetFraction float64) configuration.SchedulerConfig {
	config := configuration.DefaultConfig()
	config.Policy = policy
	config.BudgetFraction = budgetFraction
	config.PIdleWatts = testParams.PIdle
	config.PCompWatts = testParams.PComp
	return config
}

func TestPowerCapAdmitsWithinLimit(t *testing.T) {
	// Full budget on 4 hosts at 200 W/host: the cap is 800 W.
	c := NewPowerCap(testConfig(configuration.PowerCap, 1.0), testParams, 4)

	adm := c.Admit(&jobdb.Job{Id: "j1", Width: 2, Walltime: 10}, 0, 4)
	assert.True(t, adm.OK)

	// Launching all four hosts hits the cap exactly, which is still allowed.
	adm = c.Admit(&jobdb.Job{Id: "j2", Width: 4, Walltime: 10}, 0, 4)
	assert.True(t, adm.OK)
}

func TestPowerCapWithholdsAboveLimit(t *testing.T) {
	// 75% budget: the cap is 600 W, a full-width launch projects 800 W.
	c := NewPowerCap(testConfig(configuration.PowerCap, 0.75), testParams, 4)

	adm := c.Admit(&jobdb.Job{Id: "j1", Width: 4, Walltime: 10}, 0, 4)
	assert.False(t, adm.OK)
	assert.Contains(t, adm.Reason, "projected power")

	// A half-width job projects 2*200 + 2*100 = 600 W, exactly at the cap.
	adm = c.Admit(&jobdb.Job{Id: "j2", Width: 2, Walltime: 10}, 0, 4)
	assert.True(t, adm.OK)
}

func TestPowerCapRequiresFreeHosts(t *testing.T) {
	c := NewPowerCap(testConfig(configuration.PowerCap, 1.0), testParams, 4)
	adm := c.Admit(&jobdb.Job{Id: "j1", Width: 3, Walltime: 10}, 0, 2)
	assert.False(t, adm.OK)
}

func TestPowerCapReservationLifecycle(t *testing.T) {
	c := NewPowerCap(testConfig(configuration.PowerCap, 1.0), testParams, 4)
	pivot := &jobdb.Job{Id: "pivot", Width: 4, Walltime: 100}

	_, _, held := c.Reservation()
	assert.False(t, held)

	c.PivotNotRunnable(pivot, 10, 60)
	jobId, end, held := c.Reservation()
	assert.True(t, held)
	assert.Equal(t, "pivot", jobId)
	assert.Equal(t, 60.0, end)

	// Reservations require a strictly future expected start.
	c.PivotRunnable()
	c.PivotNotRunnable(pivot, 10, 10)
	_, _, held = c.Reservation()
	assert.False(t, held)

	c.PivotNotRunnable(pivot, 10, 60)
	c.OnLaunch(pivot, 20)
	_, _, held = c.Reservation()
	assert.False(t, held)
}
