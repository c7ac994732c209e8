package instance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/entrhq/wobenv/pkg/env"
	"github.com/entrhq/wobenv/pkg/logging"
	"github.com/entrhq/wobenv/pkg/reward"
	"github.com/entrhq/wobenv/pkg/types"
)

// Instance drives one task page. It implements env.Worker: every method
// but the setters runs on the pool's goroutine for this instance.
type Instance struct {
	index    int
	cfg      env.Config
	url      string
	launcher Launcher
	reward   reward.Processor
	viewport *Viewport
	log      *logging.Logger

	page Page

	// Written by the pool between commands.
	mode              string
	recordScreenshots bool

	episodes     int
	episodeStart time.Time
	cachedState  *types.State
}

var _ env.Worker = (*Instance)(nil)

// Index returns the instance's position in the pool.
func (in *Instance) Index() int {
	return in.index
}

// URL returns the task page the instance loads.
func (in *Instance) URL() string {
	return in.url
}

// Start launches the browser and loads the task page.
func (in *Instance) Start() error {
	page, err := in.launcher.Launch(SessionOptions{
		Headless: in.cfg.Headless,
		Viewport: in.viewport,
	})
	if err != nil {
		return err
	}
	in.page = page

	if err := in.load(); err != nil {
		return err
	}
	in.log.Infof("Instance %d loaded %s", in.index, in.url)
	return nil
}

// load opens the task page and waits for the sync cover, which the page
// shows while no episode is running.
func (in *Instance) load() error {
	if err := in.page.Goto(in.url); err != nil {
		return err
	}
	return in.page.WaitFor(syncCoverSelector, "attached", 0)
}

// Reset ends any running episode and starts a new one.
func (in *Instance) Reset(seed *int64) (*types.State, error) {
	if in.page == nil {
		return nil, fmt.Errorf("instance %d is not started", in.index)
	}
	if _, err := in.page.Evaluate(endEpisodeJS); err != nil {
		return nil, fmt.Errorf("failed to stop episode: %w", err)
	}

	if in.cfg.RefreshFreq > 0 {
		in.episodes++
		if in.episodes%in.cfg.RefreshFreq == 0 {
			in.log.Debugf("Instance %d refreshing page after %d episodes", in.index, in.episodes)
			if err := in.page.Reload(); err != nil {
				return nil, err
			}
			if err := in.page.WaitFor(syncCoverSelector, "attached", 0); err != nil {
				return nil, err
			}
		}
	}

	if err := in.begin(seed); err != nil {
		return nil, err
	}

	state, err := in.readState()
	if err != nil {
		return nil, err
	}
	if in.cfg.CacheState {
		in.cachedState = state
	}
	return state, nil
}

// begin seeds the task, applies the data mode and starts the episode.
func (in *Instance) begin(seed *int64) error {
	if seed != nil {
		if _, err := in.page.Evaluate(seedJS, *seed); err != nil {
			return fmt.Errorf("failed to seed task: %w", err)
		}
	}
	if _, err := in.page.Evaluate(setDataModeJS, in.mode); err != nil {
		return fmt.Errorf("failed to set data mode: %w", err)
	}
	if _, err := in.page.Evaluate(startEpisodeJS); err != nil {
		return fmt.Errorf("failed to start episode: %w", err)
	}
	if in.cfg.BlockOnReset {
		if err := in.page.WaitFor(syncCoverSelector, "hidden", 0); err != nil {
			return err
		}
	}
	in.episodeStart = time.Now()
	return nil
}

// Step performs action and reports the page's outcome. A failed action is
// recorded in the info map as "action_fail"; failing to read the outcome
// is an error.
func (in *Instance) Step(action *types.Action) (types.StepResult, error) {
	if in.page == nil {
		return types.StepResult{}, fmt.Errorf("instance %d is not started", in.index)
	}

	var actionErr error
	if action != nil {
		actionErr = in.perform(action)
		if actionErr != nil {
			in.log.Debugf("Instance %d action %s failed: %v", in.index, action, actionErr)
		}
	}

	metadata, err := in.readMetadata()
	if err != nil {
		return types.StepResult{}, err
	}

	result := types.StepResult{
		Reward: in.reward(metadata),
		Done:   metadata.Done,
		Info:   metadata.Map(),
	}
	if !metadata.Done {
		if in.cfg.CacheState && in.cachedState != nil {
			result.State = in.cachedState
		} else {
			result.State, err = in.readState()
			if err != nil {
				return types.StepResult{}, err
			}
		}
	}
	result.Info["elapsed"] = time.Since(in.episodeStart).Seconds()
	if actionErr != nil {
		result.Info["action_fail"] = actionErr.Error()
	}
	return result, nil
}

// perform executes one action and then pauses for the configured delay.
func (in *Instance) perform(action *types.Action) error {
	if err := action.Validate(); err != nil {
		return err
	}

	var err error
	switch action.Type {
	case types.ActionTypeClickElement:
		err = in.clickElement(action.Ref)
	case types.ActionTypeClickCoords:
		err = in.page.ClickAt(action.Left, action.Top)
	case types.ActionTypeType:
		err = in.page.Type(action.Text)
	case types.ActionTypeFocusAndType:
		if err = in.clickElement(action.Ref); err == nil {
			err = in.page.Type(action.Text)
		}
	case types.ActionTypeKey:
		err = in.page.Press(action.Key)
	}

	if wait := in.cfg.WaitDuration(); wait > 0 {
		time.Sleep(wait)
	}
	return err
}

func (in *Instance) clickElement(ref int) error {
	raw, err := in.page.Evaluate(elementCenterJS, ref)
	if err != nil {
		return fmt.Errorf("failed to locate element %d: %w", ref, err)
	}
	var center struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := decode(raw, &center); err != nil {
		return err
	}
	return in.page.ClickAt(center.X, center.Y)
}

func (in *Instance) readMetadata() (types.Metadata, error) {
	raw, err := in.page.Evaluate(metadataJS)
	if err != nil {
		return types.Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	var m types.Metadata
	if err := decode(raw, &m); err != nil {
		return types.Metadata{}, err
	}
	return m, nil
}

func (in *Instance) readState() (*types.State, error) {
	raw, err := in.page.Evaluate(stateJS)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	var state types.State
	if err := decode(raw, &state); err != nil {
		return nil, err
	}

	content, err := in.page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	state.Text, err = visibleText(content, taskAreaID)
	if err != nil {
		return nil, err
	}

	if in.recordScreenshots {
		state.Screenshot, err = in.page.Screenshot()
		if err != nil {
			return nil, fmt.Errorf("failed to take screenshot: %w", err)
		}
	}
	return &state, nil
}

// VisualizeAttention draws grid over the task area. nil does nothing and
// an empty grid clears the overlay.
func (in *Instance) VisualizeAttention(grid types.Attention) error {
	if grid == nil {
		return nil
	}
	if in.page == nil {
		return fmt.Errorf("instance %d is not started", in.index)
	}
	if _, err := in.page.Evaluate(visualizeAttentionJS, [][]float64(grid)); err != nil {
		return fmt.Errorf("failed to visualize attention: %w", err)
	}
	return nil
}

// Close releases the browser. Closing an instance that never started is a no-op.
func (in *Instance) Close() error {
	if in.page == nil {
		return nil
	}
	err := in.page.Close()
	in.page = nil
	in.cachedState = nil
	return err
}

func (in *Instance) SetDataMode(mode string) {
	in.mode = mode
}

func (in *Instance) SetRecordScreenshots(record bool) {
	in.recordScreenshots = record
}

// decode converts an Evaluate result into v through its JSON form.
func decode(raw interface{}, v interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode page result: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unexpected page result %s: %w", data, err)
	}
	return nil
}
