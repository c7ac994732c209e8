package env

import (
	"fmt"
	"time"
)

// RenderModeHuman shows the browser windows; it is the only render mode
// besides the empty default.
const RenderModeHuman = "human"

var renderModes = map[string]bool{
	"":              true,
	RenderModeHuman: true,
}

// DataModeTrain is the default data partition.
const DataModeTrain = "train"

// Config is the construction record shared by every worker of a pool.
// It is copied at construction; only DataMode changes afterwards, through
// Environment.SetDataMode.
type Config struct {
	// Task is the task id, e.g. "click-test".
	Task string `yaml:"task" json:"task"`

	// RenderMode must be empty or "human".
	RenderMode string `yaml:"render_mode" json:"render_mode"`

	// NumInstances is the fixed pool size.
	NumInstances int `yaml:"num_instances" json:"num_instances"`

	// Headless runs browsers without a window.
	Headless bool `yaml:"headless" json:"headless"`

	// BaseURL is where task pages are served from, e.g.
	// http://localhost:8000/ or file:///path/to/html/. Empty means the
	// local html directory.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// CacheState makes steps return the state read at reset instead of
	// reading the page again. Only valid for tasks whose page never changes.
	CacheState bool `yaml:"cache_state" json:"cache_state"`

	// WaitMs pauses a worker after each action.
	WaitMs float64 `yaml:"wait_ms" json:"wait_ms"`

	// BlockOnReset waits for the task page to finish loading on reset.
	BlockOnReset bool `yaml:"block_on_reset" json:"block_on_reset"`

	// RefreshFreq reloads a worker's page at the start of every
	// RefreshFreq-th episode. Zero disables refreshing.
	RefreshFreq int `yaml:"refresh_freq" json:"refresh_freq"`

	// DataMode selects the task-content partition, e.g. "train" or "test".
	DataMode string `yaml:"data_mode" json:"data_mode"`
}

// DefaultConfig returns a single-instance configuration for task.
func DefaultConfig(task string) Config {
	return Config{
		Task:         task,
		NumInstances: 1,
		BlockOnReset: true,
		DataMode:     DataModeTrain,
	}
}

// Validate checks the fields that would otherwise fail on first use.
func (c *Config) Validate() error {
	if !renderModes[c.RenderMode] {
		return fmt.Errorf("%w: %q", ErrInvalidRenderMode, c.RenderMode)
	}
	if c.Task == "" {
		return fmt.Errorf("%w: task is required", ErrInvalidConfig)
	}
	if c.NumInstances < 1 {
		return fmt.Errorf("%w: num_instances must be at least 1, got %d", ErrInvalidConfig, c.NumInstances)
	}
	if c.WaitMs < 0 {
		return fmt.Errorf("%w: wait_ms cannot be negative", ErrInvalidConfig)
	}
	if c.RefreshFreq < 0 {
		return fmt.Errorf("%w: refresh_freq cannot be negative", ErrInvalidConfig)
	}
	if c.DataMode == "" {
		c.DataMode = DataModeTrain
	}
	return nil
}

// WaitDuration returns WaitMs as a duration.
func (c Config) WaitDuration() time.Duration {
	return time.Duration(c.WaitMs * float64(time.Millisecond))
}
