package swarm

import "time"

// Timing holds every delay and size the earnings loop and activation sequence use.
type Timing struct {
	// Earnings loop: each tick waits a random duration in [TickMin, TickMax].
	TickMin time.Duration
	TickMax time.Duration

	// Activation progress advances by ProgressStep percent every ProgressPause.
	ProgressStep  int
	ProgressPause time.Duration
	// CompletionDelay separates progress reaching 100 from the activation ending.
	CompletionDelay time.Duration
	// AgentsPerActivation agents join the roster on every activation.
	AgentsPerActivation int

	// Burst: batches of BatchMin..BatchMax earnings, UnitPause between earnings,
	// BatchPauseMin..BatchPauseMax between batches, for BurstDuration.
	BurstDuration time.Duration
	BatchMin      int
	BatchMax      int
	UnitPause     time.Duration
	BatchPauseMin time.Duration
	BatchPauseMax time.Duration
}

// DefaultTiming is the production cadence.
func DefaultTiming() Timing {
	return Timing{
		TickMin:             3 * time.Second,
		TickMax:             7 * time.Second,
		ProgressStep:        5,
		ProgressPause:       100 * time.Millisecond,
		CompletionDelay:     time.Second,
		AgentsPerActivation: 100,
		BurstDuration:       60 * time.Second,
		BatchMin:            2,
		BatchMax:            5,
		UnitPause:           200 * time.Millisecond,
		BatchPauseMin:       2 * time.Second,
		BatchPauseMax:       5 * time.Second,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.TickMin <= 0 {
		t.TickMin = d.TickMin
	}
	if t.TickMax < t.TickMin {
		t.TickMax = t.TickMin
	}
	if t.ProgressStep <= 0 {
		t.ProgressStep = d.ProgressStep
	}
	if t.ProgressPause < 0 {
		t.ProgressPause = 0
	}
	if t.AgentsPerActivation <= 0 {
		t.AgentsPerActivation = d.AgentsPerActivation
	}
	if t.BurstDuration <= 0 {
		t.BurstDuration = d.BurstDuration
	}
	if t.BatchMin <= 0 {
		t.BatchMin = d.BatchMin
	}
	if t.BatchMax < t.BatchMin {
		t.BatchMax = t.BatchMin
	}
	if t.BatchPauseMax < t.BatchPauseMin {
		t.BatchPauseMax = t.BatchPauseMin
	}
	return t
}
