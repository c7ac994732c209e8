package env

// poolState is the lifecycle of an Environment's worker pool.
type poolState int

const (
	// stateUninitialized: no workers exist yet.
	stateUninitialized poolState = iota
	// stateLive: every worker is running and none has died.
	stateLive
	// stateCrashed: workers are running but at least one has died.
	stateCrashed
	// stateClosed: terminal.
	stateClosed
)

func (s poolState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateLive:
		return "live"
	case stateCrashed:
		return "crashed"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// needsHardReset reports whether Reset must rebuild the pool first.
// Step never rebuilds.
func (s poolState) needsHardReset() bool {
	return s == stateUninitialized || s == stateCrashed
}

// afterBarrier returns the state implied by the died signal.
func afterBarrier(died bool) poolState {
	if died {
		return stateCrashed
	}
	return stateLive
}
