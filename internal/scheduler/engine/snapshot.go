package engine

// Snapshot is a point-in-time view of the engine for observability. All fields
// are zero before SimulationBegins.
type Snapshot struct {
	PlatformHosts int
	FreeHosts     int
	QueuedJobs    int
	RunningJobs   int

	// Energy counter state; meaningful only when HasEnergyState is true.
	HasEnergyState    bool
	EnergyAvailable   float64
	EnergyConsumed    float64
	ReplenishmentRate float64

	Launched   uint64
	Rejected   uint64
	Backfilled uint64
}

// energyStater is implemented by the counter-based budget controllers.
type energyStater interface {
	EnergyAvailable() float64
	EnergyConsumed() float64
	ReplenishmentRate() float64
}

func (e *Engine) Snapshot() Snapshot {
	snapshot := Snapshot{
		Launched:   e.launched,
		Rejected:   e.rejected,
		Backfilled: e.backfilled,
	}
	if !e.began {
		return snapshot
	}
	snapshot.PlatformHosts = e.hosts
	snapshot.FreeHosts = e.pool.FreeCount()
	snapshot.QueuedJobs = e.jobDb.QueueLen()
	snapshot.RunningJobs = e.jobDb.RunningCount()
	if stater, ok := e.controller.(energyStater); ok {
		snapshot.HasEnergyState = true
		snapshot.EnergyAvailable = stater.EnergyAvailable()
		snapshot.EnergyConsumed = stater.EnergyConsumed()
		snapshot.ReplenishmentRate = stater.ReplenishmentRate()
	}
	return snapshot
}
