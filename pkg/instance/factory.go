package instance

import (
	"github.com/entrhq/wobenv/pkg/env"
	"github.com/entrhq/wobenv/pkg/logging"
	"github.com/entrhq/wobenv/pkg/reward"
	"github.com/entrhq/wobenv/pkg/tasks"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("instance")
	if err != nil {
		debugLog.Warnf("Failed to initialize instance logger, using stderr fallback: %v", err)
	}
}

// FactoryOption configures the instances a factory creates.
type FactoryOption func(*factory)

type factory struct {
	launcher Launcher
	reward   reward.Processor
	viewport *Viewport
}

// WithLauncher replaces the default Playwright launcher.
func WithLauncher(l Launcher) FactoryOption {
	return func(f *factory) {
		f.launcher = l
	}
}

// WithRewardProcessor sets how task metadata becomes a reward.
// The default is reward.Original.
func WithRewardProcessor(p reward.Processor) FactoryOption {
	return func(f *factory) {
		f.reward = p
	}
}

// WithViewport sets the browser viewport of every instance. A zero or
// negative dimension keeps the launcher's default viewport.
func WithViewport(width, height int) FactoryOption {
	return func(f *factory) {
		if width <= 0 || height <= 0 {
			f.viewport = nil
			return
		}
		f.viewport = &Viewport{Width: width, Height: height}
	}
}

// NewFactory returns an env.WorkerFactory creating browser-backed
// instances. All instances of the factory share one launcher, so
// Playwright is installed at most once.
func NewFactory(opts ...FactoryOption) env.WorkerFactory {
	f := &factory{
		reward: reward.Original,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.launcher == nil {
		f.launcher = NewPlaywrightLauncher()
	}
	return f.create
}

func (f *factory) create(index int, cfg env.Config) (env.Worker, error) {
	url, err := tasks.URL(cfg.BaseURL, cfg.Task)
	if err != nil {
		return nil, err
	}
	return &Instance{
		index:    index,
		cfg:      cfg,
		url:      url,
		launcher: f.launcher,
		reward:   f.reward,
		viewport: f.viewport,
		log:      debugLog.With(cfg.Task),
		mode:     cfg.DataMode,
	}, nil
}
