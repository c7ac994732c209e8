package report

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Episode is the outcome of one instance's episode.
type Episode struct {
	Task     string  `json:"task"`
	Episode  int     `json:"episode"`
	Instance int     `json:"instance"`
	Seed     int64   `json:"seed"`
	DataMode string  `json:"data_mode"`
	Reward   float64 `json:"reward"`
	Steps    int     `json:"steps"`
	Done     bool    `json:"done"`
	Died     bool    `json:"died"`
}

// Success reports whether the episode ended with a positive reward.
func (e Episode) Success() bool {
	return e.Done && !e.Died && e.Reward > 0
}

// TaskMetrics aggregates the episodes of one task.
type TaskMetrics struct {
	Task        string  `json:"task"`
	Episodes    int     `json:"episodes"`
	Successes   int     `json:"successes"`
	Deaths      int     `json:"deaths"`
	MeanReward  float64 `json:"mean_reward"`
	MeanSteps   float64 `json:"mean_steps"`
	SuccessRate float64 `json:"success_rate"`
}

// Summary is the complete record of a run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Tasks     []TaskMetrics `json:"tasks"`
	Episodes  []Episode     `json:"episodes"`
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Recorder accumulates episodes while a run is in progress. It is safe
// for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	runID    string
	start    time.Time
	episodes []Episode
	err      error
	now      func() time.Time
}

// NewRecorder starts a run with a fresh run id.
func NewRecorder() *Recorder {
	r := &Recorder{
		runID: uuid.New().String(),
		now:   time.Now,
	}
	r.start = r.now()
	return r
}

// RunID returns the run's identifier.
func (r *Recorder) RunID() string {
	return r.runID
}

// Record adds a finished episode.
func (r *Recorder) Record(ep Episode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.episodes = append(r.episodes, ep)
}

// Fail marks the run as failed. Only the first error is kept.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// Summary closes the current view of the run. The Recorder can keep
// recording afterwards.
func (r *Recorder) Summary() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	end := r.now()
	s := &Summary{
		RunID:     r.runID,
		Status:    StatusSuccess,
		StartTime: r.start,
		EndTime:   end,
		Duration:  end.Sub(r.start),
		Episodes:  append([]Episode(nil), r.episodes...),
		Tasks:     aggregate(r.episodes),
	}
	if r.err != nil {
		s.Status = StatusFailed
		s.Error = r.err.Error()
	}
	return s
}

// aggregate groups episodes by task, sorted by task id.
func aggregate(episodes []Episode) []TaskMetrics {
	byTask := make(map[string]*TaskMetrics)
	var order []string
	for _, ep := range episodes {
		m, ok := byTask[ep.Task]
		if !ok {
			m = &TaskMetrics{Task: ep.Task}
			byTask[ep.Task] = m
			order = append(order, ep.Task)
		}
		m.Episodes++
		m.MeanReward += ep.Reward
		m.MeanSteps += float64(ep.Steps)
		if ep.Success() {
			m.Successes++
		}
		if ep.Died {
			m.Deaths++
		}
	}

	sort.Strings(order)
	metrics := make([]TaskMetrics, 0, len(order))
	for _, task := range order {
		m := byTask[task]
		n := float64(m.Episodes)
		m.MeanReward /= n
		m.MeanSteps /= n
		m.SuccessRate = float64(m.Successes) / n
		metrics = append(metrics, *m)
	}
	return metrics
}
