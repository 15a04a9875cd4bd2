package budget

import (
	"github.com/bhhoang/enersched/internal/scheduler/energy"
)

// energyState is the continuously replenished energy counter shared by the
// EnergyBudget and ReducePC controllers. Units are joules and seconds.
type energyState struct {
	params        energy.Parameters
	platformHosts int
	// rNominal is the nominal replenishment rate in watts.
	rNominal float64
	// seed is the energy granted on the first tick, one monitoring interval's
	// worth of replenishment.
	seed float64

	eAvailable float64
	eConsumed  float64
	lastUpdate float64
	started    bool
}

func newEnergyState(params energy.Parameters, platformHosts int, budgetFraction, periodLength, monitoringInterval float64) energyState {
	// The theoretical maximum budget has every host computing for the whole period.
	eBudget := budgetFraction * float64(platformHosts) * params.PComp * periodLength
	rNominal := eBudget / periodLength
	return energyState{
		params:        params,
		platformHosts: platformHosts,
		rNominal:      rNominal,
		seed:          rNominal * monitoringInterval,
	}
}

// tick integrates replenishment at the given rate and the platform draw since
// the previous update. Time zero is a valid first tick.
func (s *energyState) tick(now float64, busy, idle int, rate float64) {
	if !s.started {
		s.started = true
		s.eAvailable = s.seed
		s.lastUpdate = now
		return
	}
	elapsed := now - s.lastUpdate
	if elapsed <= 0 {
		return
	}
	released := rate * elapsed
	drawn := s.params.PlatformPower(busy, idle) * elapsed
	s.eAvailable += released - drawn
	s.eConsumed += drawn
	s.lastUpdate = now
}

// lookahead reports whether a job needing eJob joules may launch given the
// tightened counter value and the replenishment expected over its own runtime.
func (s *energyState) lookahead(available, rate float64, job float64, walltime float64) bool {
	return available >= 0 && job <= available+rate*walltime
}
