package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/wobenv/pkg/config"
	"github.com/entrhq/wobenv/pkg/env"
	"github.com/entrhq/wobenv/pkg/instance"
	"github.com/entrhq/wobenv/pkg/report"
	"github.com/entrhq/wobenv/pkg/types"
)

// scriptedWorker finishes every episode after doneAfter steps with reward 1.
type scriptedWorker struct {
	doneAfter int
	failStep  bool
	steps     int
	seeds     []int64
	modes     []string
	mode      string
}

func (w *scriptedWorker) Start() error { return nil }

func (w *scriptedWorker) Reset(seed *int64) (*types.State, error) {
	w.steps = 0
	if seed != nil {
		w.seeds = append(w.seeds, *seed)
	}
	w.modes = append(w.modes, w.mode)
	return &types.State{
		Utterance: "Click the button.",
		DOM: &types.DOMElement{Ref: 1, Tag: "div", Children: []*types.DOMElement{
			{Ref: 2, Tag: "button", Text: "ok"},
		}},
	}, nil
}

func (w *scriptedWorker) Step(action *types.Action) (types.StepResult, error) {
	if w.failStep {
		return types.StepResult{}, errors.New("page crashed")
	}
	w.steps++
	if w.steps >= w.doneAfter {
		return types.StepResult{Reward: 1, Done: true, Info: map[string]any{}}, nil
	}
	return types.StepResult{State: &types.State{}, Info: map[string]any{}}, nil
}

func (w *scriptedWorker) VisualizeAttention(types.Attention) error { return nil }
func (w *scriptedWorker) Close() error                             { return nil }
func (w *scriptedWorker) SetDataMode(mode string)                  { w.mode = mode }
func (w *scriptedWorker) SetRecordScreenshots(bool)                {}

type scriptedFarm struct {
	created []*scriptedWorker
	tasks   []string
	// failFirst makes the first generation's worker 0 crash on Step.
	failFirst bool
}

func (f *scriptedFarm) factory(index int, cfg env.Config) (env.Worker, error) {
	w := &scriptedWorker{doneAfter: index + 1, mode: cfg.DataMode}
	if f.failFirst && len(f.created) == 0 {
		w.failStep = true
	}
	f.created = append(f.created, w)
	f.tasks = append(f.tasks, cfg.Task)
	return w, nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Env.NumInstances = 2
	cfg.Run.Episodes = 3
	cfg.Run.MaxSteps = 5
	cfg.Run.Seed = 100
	cfg.Artifacts.OutputDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func readSummary(t *testing.T, cfg *config.Config) *report.Summary {
	t.Helper()
	runs, err := os.ReadDir(cfg.Artifacts.OutputDir)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	data, err := os.ReadFile(filepath.Join(cfg.Artifacts.OutputDir, runs[0].Name(), "summary.json"))
	require.NoError(t, err)
	var s report.Summary
	require.NoError(t, json.Unmarshal(data, &s))
	return &s
}

func TestEpisodeSeeds(t *testing.T) {
	assert.Equal(t, []int64{100, 101, 102}, episodeSeeds(100, 0, 3))
	assert.Equal(t, []int64{106, 107, 108}, episodeSeeds(100, 2, 3))
}

func TestExecute(t *testing.T) {
	cfg := testConfig(t)
	farm := &scriptedFarm{}
	var out bytes.Buffer

	require.NoError(t, execute(context.Background(), cfg, farm.factory, &out))

	// One pool for the whole task.
	require.Len(t, farm.created, 2)
	assert.Equal(t, []int64{100, 102, 104}, farm.created[0].seeds)
	assert.Equal(t, []int64{101, 103, 105}, farm.created[1].seeds)

	s := readSummary(t, cfg)
	assert.Equal(t, report.StatusSuccess, s.Status)
	require.Len(t, s.Episodes, 6)
	for _, ep := range s.Episodes {
		assert.Equal(t, "click-test", ep.Task)
		assert.True(t, ep.Done)
		assert.Equal(t, 1.0, ep.Reward)
		assert.Equal(t, ep.Instance+1, ep.Steps)
	}
	require.Len(t, s.Tasks, 1)
	assert.Equal(t, 1.0, s.Tasks[0].SuccessRate)

	assert.Contains(t, out.String(), "click-test")
	assert.Contains(t, out.String(), "Artifacts written to")
}

func TestExecute_TestEverySwitchesDataMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.TestEvery = 2
	cfg.Run.Policy = config.PolicyNoop
	cfg.Artifacts.Enabled = false
	farm := &scriptedFarm{}

	require.NoError(t, execute(context.Background(), cfg, farm.factory, &bytes.Buffer{}))
	assert.Equal(t, []string{"train", "test", "train"}, farm.created[0].modes)
}

func TestExecute_RecoversFromDeadInstance(t *testing.T) {
	cfg := testConfig(t)
	farm := &scriptedFarm{failFirst: true}

	require.NoError(t, execute(context.Background(), cfg, farm.factory, &bytes.Buffer{}))

	// The crash in episode 0 forces a hard reset before episode 1.
	assert.Len(t, farm.created, 4)

	s := readSummary(t, cfg)
	require.Len(t, s.Episodes, 6)
	assert.True(t, s.Episodes[0].Died)
	assert.True(t, s.Episodes[1].Died)
	for _, ep := range s.Episodes[2:] {
		assert.False(t, ep.Died)
		assert.True(t, ep.Done)
	}
	assert.Equal(t, 2, s.Tasks[0].Deaths)
}

func TestExecute_FactoryFailureIsReported(t *testing.T) {
	cfg := testConfig(t)
	failing := func(int, env.Config) (env.Worker, error) {
		return nil, errors.New("no browser")
	}

	err := execute(context.Background(), cfg, failing, &bytes.Buffer{})
	require.ErrorContains(t, err, "no browser")

	s := readSummary(t, cfg)
	assert.Equal(t, report.StatusFailed, s.Status)
	assert.Contains(t, s.Error, "no browser")
}

func TestExecute_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Artifacts.Enabled = false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := execute(ctx, cfg, (&scriptedFarm{}).factory, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func writeTaskDir(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "miniwob"), 0755))
	for _, id := range ids {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "miniwob", id+".html"), nil, 0600))
	}
	return dir
}

func TestExecute_TaskPatterns(t *testing.T) {
	dir := writeTaskDir(t, "click-test", "click-button", "enter-text")
	cfg := testConfig(t)
	cfg.Env.BaseURL = "file://" + filepath.ToSlash(dir) + "/"
	cfg.Env.NumInstances = 1
	cfg.Run.Episodes = 1
	cfg.Tasks.Include = []string{"click-*"}
	farm := &scriptedFarm{}

	require.NoError(t, execute(context.Background(), cfg, farm.factory, &bytes.Buffer{}))
	assert.Equal(t, []string{"click-button", "click-test"}, farm.tasks)
}

func TestSelectTasks_NoMatch(t *testing.T) {
	dir := writeTaskDir(t, "enter-text")
	cfg := testConfig(t)
	cfg.Env.BaseURL = "file://" + filepath.ToSlash(dir) + "/"
	cfg.Tasks.Include = []string{"click-*"}

	_, err := selectTasks(cfg)
	assert.ErrorContains(t, err, "no tasks match")
}

func TestSelectTasks_RemoteBaseURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env.BaseURL = "http://localhost:8000/"
	cfg.Tasks.Include = []string{"click-*"}

	_, err := selectTasks(cfg)
	assert.ErrorContains(t, err, "local task directory")
}

// sessionRecorder captures launch options and refuses to start a browser.
type sessionRecorder struct {
	sessions []instance.SessionOptions
}

func (l *sessionRecorder) Launch(opts instance.SessionOptions) (instance.Page, error) {
	l.sessions = append(l.sessions, opts)
	return nil, errors.New("no browser in tests")
}

func TestNewFactory_Viewport(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          *instance.Viewport
	}{
		{"default config keeps launcher default", 0, 0, nil},
		{"configured viewport", 800, 600, &instance.Viewport{Width: 800, Height: 600}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Browser.ViewportWidth = tt.width
			cfg.Browser.ViewportHeight = tt.height
			require.NoError(t, cfg.Validate())

			launcher := &sessionRecorder{}
			w, err := newFactory(cfg, launcher)(0, cfg.Env)
			require.NoError(t, err)
			require.Error(t, w.Start())

			require.Len(t, launcher.sessions, 1)
			assert.Equal(t, tt.want, launcher.sessions[0].Viewport)
			assert.True(t, launcher.sessions[0].Headless)
		})
	}
}
