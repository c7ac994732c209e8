package instance

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/wobenv/pkg/env"
	"github.com/entrhq/wobenv/pkg/reward"
	"github.com/entrhq/wobenv/pkg/types"
)

const taskHTML = `<html><head><title>Click Test</title><script>var x = "hidden";</script></head>
<body><div id="wrap"><div id="query">Click the button.</div>
<div id="area"><button id="subbtn">Click Me!</button><style>.a{}</style></div></div></body></html>`

type evalCall struct {
	expr string
	args []interface{}
}

// fakePage answers the task page protocol from canned values.
type fakePage struct {
	gotos      []string
	reloads    int
	evals      []evalCall
	waits      []string
	clicks     [][2]float64
	typed      []string
	pressed    []string
	closes     int
	screenshot []byte

	metadata map[string]interface{}
	state    map[string]interface{}
	content  string

	clickErr    error
	metadataErr error
}

func newFakePage() *fakePage {
	return &fakePage{
		metadata: map[string]interface{}{"raw_reward": 0.0, "env_reward": 0.0, "done": false, "reason": ""},
		state: map[string]interface{}{
			"utterance": "Click the button.",
			"fields":    map[string]interface{}{"target": "button"},
			"dom": map[string]interface{}{
				"ref": 1, "tag": "body", "left": 0, "top": 0, "width": 160, "height": 210,
				"children": []interface{}{
					map[string]interface{}{"ref": 2, "tag": "button", "text": "Click Me!", "id": "subbtn",
						"left": 20, "top": 60, "width": 60, "height": 20},
				},
			},
		},
		content:    taskHTML,
		screenshot: []byte("png"),
	}
}

func (p *fakePage) Goto(url string) error {
	p.gotos = append(p.gotos, url)
	return nil
}

func (p *fakePage) Reload() error {
	p.reloads++
	return nil
}

func (p *fakePage) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	p.evals = append(p.evals, evalCall{expr: expression, args: arg})
	switch expression {
	case metadataJS:
		if p.metadataErr != nil {
			return nil, p.metadataErr
		}
		return p.metadata, nil
	case stateJS:
		return p.state, nil
	case elementCenterJS:
		return map[string]interface{}{"x": 50.0, "y": 70.0}, nil
	}
	return nil, nil
}

func (p *fakePage) WaitFor(selector, state string, _ float64) error {
	p.waits = append(p.waits, selector+":"+state)
	return nil
}

func (p *fakePage) ClickAt(x, y float64) error {
	if p.clickErr != nil {
		return p.clickErr
	}
	p.clicks = append(p.clicks, [2]float64{x, y})
	return nil
}

func (p *fakePage) Type(text string) error {
	p.typed = append(p.typed, text)
	return nil
}

func (p *fakePage) Press(key string) error {
	p.pressed = append(p.pressed, key)
	return nil
}

func (p *fakePage) Screenshot() ([]byte, error) { return p.screenshot, nil }
func (p *fakePage) Content() (string, error)    { return p.content, nil }

func (p *fakePage) Close() error {
	p.closes++
	return nil
}

func (p *fakePage) exprs() []string {
	out := make([]string, len(p.evals))
	for i, e := range p.evals {
		out[i] = e.expr
	}
	return out
}

// fakeLauncher hands out a fresh fakePage per launch.
type fakeLauncher struct {
	mu       sync.Mutex
	pages    []*fakePage
	sessions []SessionOptions
	err      error
}

func (l *fakeLauncher) Launch(opts SessionOptions) (Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := newFakePage()
	l.pages = append(l.pages, p)
	l.sessions = append(l.sessions, opts)
	return p, nil
}

func newStartedInstance(t *testing.T, cfg env.Config, opts ...FactoryOption) (*Instance, *fakePage) {
	t.Helper()
	launcher := &fakeLauncher{}
	create := NewFactory(append([]FactoryOption{WithLauncher(launcher)}, opts...)...)
	w, err := create(0, cfg)
	require.NoError(t, err)
	in := w.(*Instance)
	require.NoError(t, in.Start())
	require.Len(t, launcher.pages, 1)
	return in, launcher.pages[0]
}

func testConfig() env.Config {
	cfg := env.DefaultConfig("click-test")
	cfg.BaseURL = "http://localhost:8000/"
	return cfg
}

func TestFactory(t *testing.T) {
	create := NewFactory(WithLauncher(&fakeLauncher{}))

	cfg := testConfig()
	cfg.DataMode = "test"
	w, err := create(3, cfg)
	require.NoError(t, err)
	in := w.(*Instance)
	assert.Equal(t, 3, in.Index())
	assert.Equal(t, "http://localhost:8000/miniwob/click-test.html", in.URL())
	assert.Equal(t, "test", in.mode)

	cfg.Task = "../etc/passwd"
	_, err = create(0, cfg)
	assert.ErrorContains(t, err, "invalid task id")
}

func TestInstance_Start(t *testing.T) {
	cfg := testConfig()
	cfg.Headless = true
	launcher := &fakeLauncher{}
	w, err := NewFactory(WithLauncher(launcher), WithViewport(640, 480))(0, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.Len(t, launcher.sessions, 1)
	assert.True(t, launcher.sessions[0].Headless)
	assert.Equal(t, &Viewport{Width: 640, Height: 480}, launcher.sessions[0].Viewport)
	page := launcher.pages[0]
	assert.Equal(t, []string{"http://localhost:8000/miniwob/click-test.html"}, page.gotos)
	assert.Equal(t, []string{"#sync-task-cover:attached"}, page.waits)
}

func TestFactory_UnsetViewportKeepsLauncherDefault(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"zero", 0, 0},
		{"zero width", 0, 480},
		{"negative height", 640, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := &fakeLauncher{}
			w, err := NewFactory(WithLauncher(launcher), WithViewport(tt.width, tt.height))(0, testConfig())
			require.NoError(t, err)
			require.NoError(t, w.Start())

			require.Len(t, launcher.sessions, 1)
			assert.Nil(t, launcher.sessions[0].Viewport)
		})
	}
}

func TestSessionOptions_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		opts SessionOptions
		want Viewport
	}{
		{"unset", SessionOptions{}, Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}},
		{"zero", SessionOptions{Viewport: &Viewport{}}, Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}},
		{"width only", SessionOptions{Viewport: &Viewport{Width: 800}}, Viewport{Width: 800, Height: DefaultViewportHeight}},
		{"set", SessionOptions{Viewport: &Viewport{Width: 800, Height: 600}}, Viewport{Width: 800, Height: 600}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.opts.withDefaults()
			require.NotNil(t, got.Viewport)
			assert.Equal(t, tt.want, *got.Viewport)
			assert.Equal(t, DefaultTimeout, got.Timeout)
		})
	}
}

func TestInstance_StartFailure(t *testing.T) {
	launcher := &fakeLauncher{err: errors.New("chromium missing")}
	w, err := NewFactory(WithLauncher(launcher))(0, testConfig())
	require.NoError(t, err)
	assert.ErrorContains(t, w.Start(), "chromium missing")
	assert.NoError(t, w.Close(), "closing an unstarted instance is a no-op")
}

func TestInstance_Reset(t *testing.T) {
	in, page := newStartedInstance(t, testConfig())
	page.waits = nil

	state, err := in.Reset(env.Seed(42))
	require.NoError(t, err)

	assert.Equal(t, []string{endEpisodeJS, seedJS, setDataModeJS, startEpisodeJS, stateJS}, page.exprs())
	assert.Equal(t, []interface{}{int64(42)}, page.evals[1].args)
	assert.Equal(t, []interface{}{"train"}, page.evals[2].args)
	assert.Equal(t, []string{"#sync-task-cover:hidden"}, page.waits)

	assert.Equal(t, "Click the button.", state.Utterance)
	assert.Equal(t, map[string]string{"target": "button"}, state.Fields)
	require.NotNil(t, state.DOM)
	assert.Equal(t, "body", state.DOM.Tag)
	require.Len(t, state.DOM.Children, 1)
	assert.Equal(t, 2, state.DOM.Children[0].Ref)
	assert.Equal(t, "Click Me!", state.Text)
	assert.Nil(t, state.Screenshot)
}

func TestInstance_ResetWithoutSeedOrBlocking(t *testing.T) {
	cfg := testConfig()
	cfg.BlockOnReset = false
	in, page := newStartedInstance(t, cfg)
	page.waits = nil

	in.SetDataMode("test")
	_, err := in.Reset(nil)
	require.NoError(t, err)

	assert.NotContains(t, page.exprs(), seedJS)
	assert.Empty(t, page.waits)
	for _, e := range page.evals {
		if e.expr == setDataModeJS {
			assert.Equal(t, []interface{}{"test"}, e.args)
		}
	}
}

func TestInstance_RefreshFreq(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshFreq = 2
	in, page := newStartedInstance(t, cfg)

	var reloads []int
	for i := 0; i < 5; i++ {
		_, err := in.Reset(nil)
		require.NoError(t, err)
		reloads = append(reloads, page.reloads)
	}
	assert.Equal(t, []int{0, 1, 1, 2, 2}, reloads)
}

func TestInstance_StepClickElement(t *testing.T) {
	in, page := newStartedInstance(t, testConfig(), WithRewardProcessor(reward.Raw))
	_, err := in.Reset(nil)
	require.NoError(t, err)

	page.metadata = map[string]interface{}{"raw_reward": 1.0, "env_reward": 0.75, "done": true, "reason": "clicked"}
	result, err := in.Step(types.NewClickElementAction(2))
	require.NoError(t, err)

	assert.Equal(t, [][2]float64{{50, 70}}, page.clicks)
	assert.Equal(t, 1.0, result.Reward)
	assert.True(t, result.Done)
	assert.Nil(t, result.State, "no state once the episode is done")
	assert.Equal(t, 0.75, result.Info["env_reward"])
	assert.Equal(t, "clicked", result.Info["reason"])
	assert.Contains(t, result.Info, "elapsed")
	assert.NotContains(t, result.Info, "action_fail")
}

func TestInstance_StepActions(t *testing.T) {
	in, page := newStartedInstance(t, testConfig())
	_, err := in.Reset(nil)
	require.NoError(t, err)

	actions := []*types.Action{
		types.NewClickCoordsAction(10, 20),
		types.NewTypeAction("hello"),
		types.NewFocusAndTypeAction(2, "world"),
		types.NewKeyAction("Enter"),
		nil,
	}
	for _, a := range actions {
		result, err := in.Step(a)
		require.NoError(t, err)
		assert.False(t, result.Done)
		require.NotNil(t, result.State)
		assert.Equal(t, "Click the button.", result.State.Utterance)
	}

	assert.Equal(t, [][2]float64{{10, 20}, {50, 70}}, page.clicks)
	assert.Equal(t, []string{"hello", "world"}, page.typed)
	assert.Equal(t, []string{"Enter"}, page.pressed)
}

func TestInstance_StepActionFailureIsNotFatal(t *testing.T) {
	in, page := newStartedInstance(t, testConfig())
	_, err := in.Reset(nil)
	require.NoError(t, err)

	page.clickErr = errors.New("element detached")
	result, err := in.Step(types.NewClickCoordsAction(1, 1))
	require.NoError(t, err)
	assert.Equal(t, "element detached", result.Info["action_fail"])

	result, err = in.Step(&types.Action{Type: types.ActionTypeKey})
	require.NoError(t, err)
	assert.Equal(t, "key action requires a key", result.Info["action_fail"])
}

func TestInstance_StepMetadataFailure(t *testing.T) {
	in, page := newStartedInstance(t, testConfig())
	_, err := in.Reset(nil)
	require.NoError(t, err)

	page.metadataErr = errors.New("target closed")
	_, err = in.Step(nil)
	assert.ErrorContains(t, err, "target closed")
}

func TestInstance_CacheState(t *testing.T) {
	cfg := testConfig()
	cfg.CacheState = true
	in, page := newStartedInstance(t, cfg)

	first, err := in.Reset(nil)
	require.NoError(t, err)

	page.state["utterance"] = "changed"
	result, err := in.Step(nil)
	require.NoError(t, err)
	assert.Same(t, first, result.State)
}

func TestInstance_RecordScreenshots(t *testing.T) {
	in, _ := newStartedInstance(t, testConfig())
	in.SetRecordScreenshots(true)

	state, err := in.Reset(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), state.Screenshot)
}

func TestInstance_VisualizeAttention(t *testing.T) {
	in, page := newStartedInstance(t, testConfig())
	page.evals = nil

	require.NoError(t, in.VisualizeAttention(nil))
	assert.Empty(t, page.evals)

	grid := types.Attention{{0.2, 0.8}}
	require.NoError(t, in.VisualizeAttention(grid))
	require.NoError(t, in.VisualizeAttention(types.ClearAttention()))
	require.Len(t, page.evals, 2)
	assert.Equal(t, []interface{}{[][]float64{{0.2, 0.8}}}, page.evals[0].args)
	assert.Equal(t, []interface{}{[][]float64{}}, page.evals[1].args)
}

func TestInstance_Close(t *testing.T) {
	in, page := newStartedInstance(t, testConfig())
	require.NoError(t, in.Close())
	require.NoError(t, in.Close())
	assert.Equal(t, 1, page.closes)

	_, err := in.Reset(nil)
	assert.ErrorContains(t, err, "not started")
}

// recordingFactory keeps every instance it creates, indexed by creation
// order within each pool generation.
type recordingFactory struct {
	create    env.WorkerFactory
	instances []*Instance
}

func (f *recordingFactory) factory(index int, cfg env.Config) (env.Worker, error) {
	w, err := f.create(index, cfg)
	if err != nil {
		return nil, err
	}
	f.instances = append(f.instances, w.(*Instance))
	return w, nil
}

// page returns the fake page instance i of generation gen was started with.
func (f *recordingFactory) page(t *testing.T, gen, n, i int) *fakePage {
	t.Helper()
	in := f.instances[gen*n+i]
	require.Equal(t, i, in.Index())
	page, ok := in.page.(*fakePage)
	require.True(t, ok, "instance %d has no fake page", i)
	return page
}

func TestInstance_InPool(t *testing.T) {
	launcher := &fakeLauncher{}
	cfg := testConfig()
	cfg.NumInstances = 3
	rec := &recordingFactory{create: NewFactory(WithLauncher(launcher), WithRewardProcessor(reward.Binary))}
	e, err := env.New(cfg, rec.factory)
	require.NoError(t, err)

	states, _, err := e.Reset(nil, env.WithCustomSeeds(5, 6, 7))
	require.NoError(t, err)
	assert.True(t, e.ObservationSpace().Contains(states))
	require.Len(t, rec.instances, 3)
	firstGen := make([]*fakePage, 3)
	for i := range firstGen {
		firstGen[i] = rec.page(t, 0, 3, i)
		assert.Equal(t, []interface{}{int64(5 + i)}, firstGen[i].evals[1].args)
	}

	firstGen[1].metadata = map[string]interface{}{"raw_reward": 1.0, "env_reward": 0.9, "done": true}
	firstGen[2].metadataErr = errors.New("browser gone")

	_, rewards, terminated, _, info, err := e.Step(e.ActionSpace().Sample(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, env.DefaultPenalty}, rewards)
	assert.Equal(t, []bool{false, true, true}, terminated)
	assert.True(t, info.Died)

	_, _, err = e.Reset(nil, nil)
	require.NoError(t, err)
	require.Len(t, rec.instances, 6, "hard reset relaunches every instance")
	require.Len(t, launcher.pages, 6)
	for _, page := range firstGen {
		assert.Equal(t, 1, page.closes)
	}
	secondGen := make([]*fakePage, 3)
	for i := range secondGen {
		secondGen[i] = rec.page(t, 1, 3, i)
	}

	require.NoError(t, e.Close())
	for _, page := range secondGen {
		assert.Equal(t, 1, page.closes)
	}
}
