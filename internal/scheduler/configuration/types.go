package configuration

import (
	"github.com/pkg/errors"
)

// Policy selects which budget controller drives admission decisions.
type Policy string

const (
	// Easy is plain EASY backfilling with no energy constraint.
	Easy Policy = "easy"
	// PowerCap withholds jobs that would push estimated platform power above a fixed ceiling.
	PowerCap Policy = "powercap"
	// EnergyBudget replenishes an energy counter at a fixed rate and admits jobs against it.
	EnergyBudget Policy = "energybudget"
	// ReducePC expresses pivot reservations as a reduced replenishment rate.
	ReducePC Policy = "reducepc"
)

// SchedulerConfig is the configuration accepted by the decision component.
// It is decoded from the opaque init blob passed by the simulator.
type SchedulerConfig struct {
	// Policy to run. Defaults to Easy.
	Policy Policy `mapstructure:"policy"`
	// BudgetFraction is the fraction of the theoretical maximum budget to honour, in (0, 1].
	BudgetFraction float64 `mapstructure:"budgetFraction"`
	// PeriodLengthSeconds is the budget period used to derive the replenishment rate.
	PeriodLengthSeconds float64 `mapstructure:"periodLengthSeconds"`
	// MonitoringIntervalSeconds sizes the initial energy seed for the counter-based policies.
	MonitoringIntervalSeconds float64 `mapstructure:"monitoringIntervalSeconds"`
	// PIdleWatts is the estimated power draw of an idle host.
	PIdleWatts float64 `mapstructure:"pIdleWatts"`
	// PCompWatts is the estimated power draw of a computing host.
	PCompWatts float64 `mapstructure:"pCompWatts"`
}

// DefaultConfig returns the configuration used when the init blob leaves fields unset.
// The power estimates are deliberately conservative over-estimates of common hardware;
// an over-estimate produces conservative schedules.
func DefaultConfig() SchedulerConfig {
	return SchedulerConfig{
		Policy:                    Easy,
		BudgetFraction:            1.0,
		PeriodLengthSeconds:       600,
		MonitoringIntervalSeconds: 600,
		PIdleWatts:                100.0,
		PCompWatts:                203.12,
	}
}

func (c SchedulerConfig) Validate() error {
	switch c.Policy {
	case Easy, PowerCap, EnergyBudget, ReducePC:
	default:
		return errors.Errorf("unknown policy %q", c.Policy)
	}
	if c.BudgetFraction <= 0 || c.BudgetFraction > 1 {
		return errors.Errorf("budgetFraction must be in (0, 1], got %v", c.BudgetFraction)
	}
	if c.PeriodLengthSeconds <= 0 {
		return errors.Errorf("periodLengthSeconds must be positive, got %v", c.PeriodLengthSeconds)
	}
	if c.MonitoringIntervalSeconds <= 0 {
		return errors.Errorf("monitoringIntervalSeconds must be positive, got %v", c.MonitoringIntervalSeconds)
	}
	if c.PIdleWatts < 0 {
		return errors.Errorf("pIdleWatts must be non-negative, got %v", c.PIdleWatts)
	}
	if c.PCompWatts < c.PIdleWatts {
		return errors.Errorf("pCompWatts (%v) must be at least pIdleWatts (%v)", c.PCompWatts, c.PIdleWatts)
	}
	return nil
}
