// Package energy contains the pure estimation model shared by all budget
// controllers. Units are watts, seconds and joules throughout.
package energy

// Parameters holds the per-host power estimates. The simulator may use different
// true values; the scheduler only ever sees these estimates, and an over-estimate
// of PComp is safe.
type Parameters struct {
	// PIdle is the estimated power draw of an idle host, in watts.
	PIdle float64
	// PComp is the estimated power draw of a computing host, in watts.
	PComp float64
}

// JobEnergy estimates the energy a job consumes over its full walltime, in joules.
func (p Parameters) JobEnergy(width int, walltime float64) float64 {
	return float64(width) * p.PComp * walltime
}

// JobPower estimates the instantaneous power drawn by a running job, in watts.
func (p Parameters) JobPower(width int) float64 {
	return float64(width) * p.PComp
}

// PlatformPower estimates the instantaneous power drawn by the whole platform
// given the number of computing and idle hosts, in watts.
func (p Parameters) PlatformPower(busy, idle int) float64 {
	return float64(busy)*p.PComp + float64(idle)*p.PIdle
}
