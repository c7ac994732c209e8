package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/entrhq/wobenv/pkg/config"
	"github.com/entrhq/wobenv/pkg/env"
	"github.com/entrhq/wobenv/pkg/instance"
	"github.com/entrhq/wobenv/pkg/logging"
	"github.com/entrhq/wobenv/pkg/report"
	"github.com/entrhq/wobenv/pkg/tasks"
	"github.com/entrhq/wobenv/pkg/types"
)

// dataModeTest is the partition used for evaluation episodes.
const dataModeTest = "test"

type runFlags struct {
	configFile  string
	task        string
	instances   int
	episodes    int
	steps       int
	seed        int64
	policy      string
	reward      string
	baseURL     string
	output      string
	verbosity   string
	include     []string
	exclude     []string
	headed      bool
	skipInstall bool
	screenshots bool
	noArtifacts bool
}

func newRunCmd() *cobra.Command {
	return runCommand(&runFlags{})
}

func runCommand(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run episodes of one or more tasks",
		Example: `  # Ten episodes of click-test on four browsers
  wobenv run --task click-test --instances 4

  # Every click task from a local checkout, no artifacts
  wobenv run --include 'click-*' --base-url file:///srv/miniwob/html/ --no-artifacts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			launcher := &instance.PlaywrightLauncher{SkipInstall: cfg.Browser.SkipInstall}
			return execute(ctx, cfg, newFactory(cfg, launcher), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "Path to configuration file (YAML)")
	flags.StringVarP(&f.task, "task", "t", "", "Task id, e.g. click-test")
	flags.IntVarP(&f.instances, "instances", "n", 0, "Number of parallel browser instances")
	flags.IntVarP(&f.episodes, "episodes", "e", 0, "Episodes to run per task")
	flags.IntVar(&f.steps, "steps", 0, "Maximum steps per episode")
	flags.Int64Var(&f.seed, "seed", 0, "Base seed; instance i of episode k uses seed+k*instances+i")
	flags.StringVar(&f.policy, "policy", "", "Action policy: random or noop")
	flags.StringVar(&f.reward, "reward", "", "Reward processor: original, raw, binary or thresholded:<t>")
	flags.StringVar(&f.baseURL, "base-url", "", "Where task pages are served from")
	flags.StringVarP(&f.output, "output", "o", "", "Directory for run artifacts")
	flags.StringVarP(&f.verbosity, "verbosity", "v", "", "Log verbosity: quiet, normal, verbose or debug")
	flags.StringSliceVar(&f.include, "include", nil, "Run every task matching these glob patterns")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "Skip tasks matching these glob patterns")
	flags.BoolVar(&f.headed, "headed", false, "Show the browser windows")
	flags.BoolVar(&f.skipInstall, "skip-install", false, "Assume Playwright and Chromium are installed")
	flags.BoolVar(&f.screenshots, "screenshots", false, "Capture a screenshot with every state")
	flags.BoolVar(&f.noArtifacts, "no-artifacts", false, "Do not write run artifacts")
	return cmd
}

// load builds the run configuration: defaults, then the config file, then
// any flag the user set explicitly.
func (f *runFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("task") {
		cfg.Env.Task = f.task
	}
	if changed("instances") {
		cfg.Env.NumInstances = f.instances
	}
	if changed("episodes") {
		cfg.Run.Episodes = f.episodes
	}
	if changed("steps") {
		cfg.Run.MaxSteps = f.steps
	}
	if changed("seed") {
		cfg.Run.Seed = f.seed
	}
	if changed("policy") {
		cfg.Run.Policy = config.Policy(f.policy)
	}
	if changed("reward") {
		cfg.Run.Reward = f.reward
	}
	if changed("base-url") {
		cfg.Env.BaseURL = f.baseURL
	}
	if changed("output") {
		cfg.Artifacts.OutputDir = f.output
	}
	if changed("verbosity") {
		cfg.Logging.Verbosity = f.verbosity
	}
	if changed("include") {
		cfg.Tasks.Include = f.include
	}
	if changed("exclude") {
		cfg.Tasks.Exclude = f.exclude
	}
	if changed("headed") {
		cfg.Env.Headless = !f.headed
		if f.headed {
			cfg.Env.RenderMode = env.RenderModeHuman
		}
	}
	if changed("skip-install") {
		cfg.Browser.SkipInstall = f.skipInstall
	}
	if changed("screenshots") {
		cfg.Run.RecordScreenshots = f.screenshots
	}
	if f.noArtifacts {
		cfg.Artifacts.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := logging.ParseVerbosity(cfg.Logging.Verbosity)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)
	return cfg, nil
}

// newFactory builds browser-backed workers from the run configuration.
// An unset viewport keeps the launcher's default size.
func newFactory(cfg *config.Config, launcher instance.Launcher) env.WorkerFactory {
	opts := []instance.FactoryOption{
		instance.WithLauncher(launcher),
		instance.WithRewardProcessor(cfg.RewardProcessor()),
	}
	if cfg.Browser.ViewportWidth > 0 && cfg.Browser.ViewportHeight > 0 {
		opts = append(opts, instance.WithViewport(cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight))
	}
	return instance.NewFactory(opts...)
}

// selectTasks returns the task ids a run covers.
func selectTasks(cfg *config.Config) ([]string, error) {
	if !cfg.Tasks.Enabled() {
		return []string{cfg.Env.Task}, nil
	}
	sel, err := tasks.NewSelector(cfg.Tasks.Include, cfg.Tasks.Exclude)
	if err != nil {
		return nil, err
	}
	dir, err := tasks.LocalDir(cfg.Env.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("task patterns need a local task directory: %w", err)
	}
	ids, err := sel.List(dir)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no tasks match include %v exclude %v", cfg.Tasks.Include, cfg.Tasks.Exclude)
	}
	return ids, nil
}

// execute runs every selected task, prints the summary and writes the
// artifacts. The summary is reported even when the run fails.
func execute(ctx context.Context, cfg *config.Config, factory env.WorkerFactory, out io.Writer) error {
	rec := report.NewRecorder()
	r := &runner{
		cfg:     cfg,
		factory: factory,
		rec:     rec,
		rng:     rand.New(rand.NewSource(cfg.Run.Seed)),
		log:     debugLog,
	}

	runErr := r.run(ctx)
	if runErr != nil {
		rec.Fail(runErr)
	}

	summary := rec.Summary()
	fmt.Fprintln(out, report.Render(summary))

	if cfg.Artifacts.Enabled {
		dir, err := report.NewArtifactWriter(cfg.Artifacts.OutputDir).WriteAll(summary)
		if err != nil {
			if runErr == nil {
				return err
			}
			debugLog.Errorf("Failed to write artifacts: %v", err)
		} else {
			fmt.Fprintf(out, "Artifacts written to %s\n", dir)
		}
	}
	return runErr
}

type runner struct {
	cfg     *config.Config
	factory env.WorkerFactory
	rec     *report.Recorder
	rng     *rand.Rand
	log     *logging.Logger
}

func (r *runner) run(ctx context.Context) error {
	ids, err := selectTasks(r.cfg)
	if err != nil {
		return err
	}
	for _, task := range ids {
		if err := r.runTask(ctx, task); err != nil {
			return fmt.Errorf("task %s: %w", task, err)
		}
	}
	return nil
}

func (r *runner) runTask(ctx context.Context, task string) error {
	cfg := r.cfg.Env
	cfg.Task = task
	e, err := env.New(cfg, r.factory,
		env.WithLogger(r.log.With(task)),
		env.WithRecordScreenshots(r.cfg.Run.RecordScreenshots),
	)
	if err != nil {
		return err
	}
	defer e.Close()

	for ep := 0; ep < r.cfg.Run.Episodes; ep++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runEpisode(ctx, e, task, ep); err != nil {
			return fmt.Errorf("episode %d: %w", ep, err)
		}
	}
	return nil
}

// episodeSeeds gives every instance of every episode its own seed.
func episodeSeeds(base int64, episode, n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = base + int64(episode*n+i)
	}
	return seeds
}

func (r *runner) dataMode(episode int) string {
	if every := r.cfg.Run.TestEvery; every > 0 && (episode+1)%every == 0 {
		return dataModeTest
	}
	return r.cfg.Env.DataMode
}

func (r *runner) policy(e *env.Environment, states []*types.State) []*types.Action {
	if r.cfg.Run.Policy == config.PolicyNoop {
		return make([]*types.Action, e.NumInstances())
	}
	return e.ActionSpace().Sample(r.rng, states)
}

func (r *runner) runEpisode(ctx context.Context, e *env.Environment, task string, episode int) error {
	n := e.NumInstances()
	seeds := episodeSeeds(r.cfg.Run.Seed, episode, n)
	mode := r.dataMode(episode)

	states, _, err := e.Reset(nil, &env.ResetOptions{CustomSeeds: seeds, DataMode: &mode})
	if err != nil {
		return err
	}

	results := make([]report.Episode, n)
	finished := make([]bool, n)
	for i := range results {
		results[i] = report.Episode{
			Task:     task,
			Episode:  episode,
			Instance: i,
			Seed:     seeds[i],
			DataMode: mode,
		}
	}
	if e.Died() {
		// An instance crashed during reset; the next Reset recovers.
		for i := range results {
			results[i].Died = true
			r.rec.Record(results[i])
		}
		return nil
	}

	remaining := n
	for step := 0; step < r.cfg.Run.MaxSteps && remaining > 0; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		actions := r.policy(e, states)
		for i := range actions {
			if finished[i] {
				actions[i] = nil
			}
		}

		next, rewards, terminated, truncated, info, err := e.Step(actions)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if finished[i] {
				continue
			}
			results[i].Steps++
			results[i].Reward += rewards[i]
			if info.Died {
				results[i].Died = true
			}
			if terminated[i] || truncated[i] || info.Died {
				results[i].Done = terminated[i]
				finished[i] = true
				remaining--
			}
		}
		states = next
		if info.Died {
			r.log.Warnf("Instance died in episode %d of %s at step %d", episode, task, step)
			break
		}
	}

	for _, res := range results {
		r.rec.Record(res)
	}
	return nil
}
