package types

// StepResult is what one instance reports for one step.
type StepResult struct {
	// State is nil once the episode is done.
	State *State

	Reward float64
	Done   bool

	// Info carries the task metadata plus instance-level details such as
	// "elapsed" and "action_fail".
	Info map[string]any
}

// Attention is a grid of weights laid over the task area, indexed
// [row][col]. A nil Attention means "leave the overlay alone"; a non-nil
// empty one clears it.
type Attention [][]float64

// ClearAttention returns the grid that clears the overlay.
func ClearAttention() Attention {
	return Attention{}
}

// IsClear reports whether a is the clearing grid.
func (a Attention) IsClear() bool {
	return a != nil && len(a) == 0
}

// Dims returns the grid's row and column counts.
func (a Attention) Dims() (rows, cols int) {
	if len(a) == 0 {
		return 0, 0
	}
	return len(a), len(a[0])
}
