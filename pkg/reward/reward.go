// Package reward turns the metadata a task page reports into a scalar reward.
package reward

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/entrhq/wobenv/pkg/types"
)

// Processor computes the reward for one step from the task's metadata.
type Processor func(types.Metadata) float64

// Original returns the task's own reward, which decays with episode time.
func Original(m types.Metadata) float64 {
	return m.EnvReward
}

// Raw returns the task's undecayed reward.
func Raw(m types.Metadata) float64 {
	return m.RawReward
}

// Binary returns 1 for a successful episode end, -1 for a failed one and
// 0 while the episode is running.
func Binary(m types.Metadata) float64 {
	if !m.Done {
		return 0
	}
	if m.RawReward > 0 {
		return 1
	}
	return -1
}

// Thresholded is like Binary but counts the episode as a success only if
// the raw reward reaches threshold.
func Thresholded(threshold float64) Processor {
	return func(m types.Metadata) float64 {
		if !m.Done {
			return 0
		}
		if m.RawReward >= threshold {
			return 1
		}
		return -1
	}
}

// Parse resolves a processor by name: "original", "raw", "binary" or
// "thresholded:<t>". An empty name selects Original.
func Parse(name string) (Processor, error) {
	switch {
	case name == "", name == "original":
		return Original, nil
	case name == "raw":
		return Raw, nil
	case name == "binary":
		return Binary, nil
	case strings.HasPrefix(name, "thresholded:"):
		t, err := strconv.ParseFloat(strings.TrimPrefix(name, "thresholded:"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reward threshold in %q: %w", name, err)
		}
		return Thresholded(t), nil
	}
	return nil, fmt.Errorf("unknown reward processor: %q", name)
}
