// Package config loads the YAML run configuration of the wobenv CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/wobenv/pkg/env"
	"github.com/entrhq/wobenv/pkg/logging"
	"github.com/entrhq/wobenv/pkg/reward"
)

// Config is a complete run: the environment to build, how to drive it,
// and where results go.
type Config struct {
	// Environment construction settings
	Env env.Config `yaml:"env" json:"env"`

	// Tasks selects several tasks by glob pattern; each is run in turn
	// with Env.Task replaced. Empty runs Env.Task only.
	Tasks TaskSelection `yaml:"tasks" json:"tasks"`

	// Episode loop
	Run RunConfig `yaml:"run" json:"run"`

	// Browser settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Artifacts configuration
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TaskSelection picks task ids from the local task directory.
type TaskSelection struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// Enabled reports whether any pattern was given.
func (t TaskSelection) Enabled() bool {
	return len(t.Include) > 0 || len(t.Exclude) > 0
}

// Policy names how the CLI picks actions.
type Policy string

const (
	// PolicyRandom clicks a random leaf element of each instance's DOM.
	PolicyRandom Policy = "random"
	// PolicyNoop only observes.
	PolicyNoop Policy = "noop"
)

// RunConfig controls the episode loop.
type RunConfig struct {
	Episodes int    `yaml:"episodes" json:"episodes"`
	MaxSteps int    `yaml:"max_steps" json:"max_steps"`
	Seed     int64  `yaml:"seed" json:"seed"`
	Policy   Policy `yaml:"policy" json:"policy"`

	// Reward names a reward processor; see reward.Parse.
	Reward string `yaml:"reward" json:"reward"`

	// RecordScreenshots captures a screenshot with every state.
	RecordScreenshots bool `yaml:"record_screenshots" json:"record_screenshots"`

	// TestEvery switches the data mode to "test" on every n-th episode.
	// Zero keeps Env.DataMode throughout.
	TestEvery int `yaml:"test_every" json:"test_every"`
}

// BrowserConfig tunes the browser each instance launches.
type BrowserConfig struct {
	SkipInstall    bool `yaml:"skip_install" json:"skip_install"`
	ViewportWidth  int  `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int  `yaml:"viewport_height" json:"viewport_height"`
}

// ArtifactConfig defines where the run summary is written.
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// DefaultConfig returns a configuration suitable for a quick local run.
func DefaultConfig() *Config {
	return &Config{
		Env: env.Config{
			Task:         "click-test",
			NumInstances: 1,
			Headless:     true,
			BlockOnReset: true,
			DataMode:     env.DataModeTrain,
		},
		Run: RunConfig{
			Episodes: 10,
			MaxSteps: 20,
			Policy:   PolicyRandom,
			Reward:   "original",
		},
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: ".wobenv/artifacts",
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// Load reads a YAML file over DefaultConfig. Fields absent from the file
// keep their defaults. The result is not validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Env.Validate(); err != nil {
		return err
	}

	if c.Run.Episodes < 1 {
		return fmt.Errorf("episodes must be at least 1")
	}
	if c.Run.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be at least 1")
	}
	if c.Run.TestEvery < 0 {
		return fmt.Errorf("test_every cannot be negative")
	}
	switch c.Run.Policy {
	case PolicyRandom, PolicyNoop:
	case "":
		c.Run.Policy = PolicyRandom
	default:
		return fmt.Errorf("invalid policy: %s (must be 'random' or 'noop')", c.Run.Policy)
	}
	if _, err := reward.Parse(c.Run.Reward); err != nil {
		return err
	}

	if c.Browser.ViewportWidth < 0 || c.Browser.ViewportHeight < 0 {
		return fmt.Errorf("viewport dimensions cannot be negative")
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts output_dir is required when artifacts are enabled")
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	if _, err := logging.ParseVerbosity(c.Logging.Verbosity); err != nil {
		return err
	}

	return nil
}

// RewardProcessor returns the configured reward processor.
func (c *Config) RewardProcessor() reward.Processor {
	p, err := reward.Parse(c.Run.Reward)
	if err != nil {
		return reward.Original
	}
	return p
}
