package env

import (
	"math/rand"

	"github.com/entrhq/wobenv/pkg/types"
)

// ActionSpace declares the batch shape Step expects: one action (or nil)
// per instance.
type ActionSpace struct {
	NumInstances int
}

// Contains reports whether actions is a valid batch for this space.
func (s ActionSpace) Contains(actions []*types.Action) bool {
	if len(actions) != s.NumInstances {
		return false
	}
	for _, a := range actions {
		if a != nil && a.Validate() != nil {
			return false
		}
	}
	return true
}

// Sample returns one random click per state, aimed at a leaf of the
// state's DOM. Instances without a state or DOM get a nil action.
func (s ActionSpace) Sample(rng *rand.Rand, states []*types.State) []*types.Action {
	actions := make([]*types.Action, s.NumInstances)
	for i := range actions {
		if i >= len(states) || states[i] == nil || states[i].DOM == nil {
			continue
		}
		leaves := states[i].DOM.Leaves()
		if len(leaves) == 0 {
			continue
		}
		actions[i] = types.NewClickElementAction(leaves[rng.Intn(len(leaves))].Ref)
	}
	return actions
}

// ObservationSpace declares the batch shape Reset and Step return: one
// state per instance.
type ObservationSpace struct {
	NumInstances int
}

// Contains reports whether states is a complete batch with no missing entry.
func (s ObservationSpace) Contains(states []*types.State) bool {
	if len(states) != s.NumInstances {
		return false
	}
	for _, st := range states {
		if st == nil {
			return false
		}
	}
	return true
}
