package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/step"
)

// RunState represents the lifecycle state of a run.
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// maxTrajectory caps the in-memory path kept per run for plotting.
const maxTrajectory = 10000

// Run is a simulation executing in the background.
type Run struct {
	ID     string     `json:"id"`
	State  RunState   `json:"state"`
	Config sim.Config `json:"config"`

	// CheckpointEvery saves a checkpoint every N steps (0 = only at the end).
	CheckpointEvery int `json:"checkpointEvery,omitempty"`

	Iteration  int         `json:"iteration"`
	Position   step.Vec2   `json:"position"`
	Cost       float64     `json:"cost"`
	BestCost   float64     `json:"bestCost"`
	Gradient   *step.Vec2  `json:"gradient,omitempty"`
	Degenerate bool        `json:"degenerate,omitempty"`
	StartTime  time.Time   `json:"startTime"`
	EndTime    *time.Time  `json:"endTime,omitempty"`
	Error      string      `json:"error,omitempty"`
	Trajectory []step.Vec2 `json:"-"`
}

// IsTerminal reports whether the run has finished in any way.
func (r *Run) IsTerminal() bool {
	return r.State == StateCompleted || r.State == StateFailed || r.State == StateCancelled
}

func (r *Run) clone() *Run {
	c := *r
	c.Trajectory = append([]step.Vec2(nil), r.Trajectory...)
	if r.Gradient != nil {
		g := *r.Gradient
		c.Gradient = &g
	}
	if r.EndTime != nil {
		e := *r.EndTime
		c.EndTime = &e
	}
	return &c
}

func (r *Run) record(f sim.Frame) {
	r.Iteration = f.Iteration
	r.Position = f.Position
	r.Cost = f.Cost
	r.Degenerate = f.Degenerate
	r.Gradient = nil
	if f.HasGradient {
		g := f.Gradient
		r.Gradient = &g
	}
	if f.Cost < r.BestCost {
		r.BestCost = f.Cost
	}
	if len(r.Trajectory) < maxTrajectory {
		r.Trajectory = append(r.Trajectory, f.Position)
	}
}

// RunManager tracks runs and their cancel functions. Accessors return
// copies; mutation goes through UpdateRun.
type RunManager struct {
	mu          sync.RWMutex
	runs        map[string]*Run
	cancels     map[string]*worker
	broadcaster *EventBroadcaster
}

// NewRunManager creates an empty RunManager.
func NewRunManager() *RunManager {
	return &RunManager{
		runs:        make(map[string]*Run),
		cancels:     make(map[string]*worker),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateRun registers a pending run positioned at the config's start.
func (rm *RunManager) CreateRun(cfg sim.Config, checkpointEvery int) *Run {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	run := &Run{
		ID:              uuid.New().String(),
		State:           StatePending,
		Config:          cfg,
		CheckpointEvery: checkpointEvery,
		Position:        cfg.Start,
		StartTime:       time.Now(),
		Trajectory:      []step.Vec2{cfg.Start},
	}
	rm.runs[run.ID] = run
	return run.clone()
}

// AdoptRun registers a run under an existing id, e.g. one restored from a
// checkpoint. It fails if the id is already tracked.
func (rm *RunManager) AdoptRun(id string, cfg sim.Config, checkpointEvery int) (*Run, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.runs[id]; exists {
		return nil, fmt.Errorf("run already exists: %s", id)
	}
	run := &Run{
		ID:              id,
		State:           StatePending,
		Config:          cfg,
		CheckpointEvery: checkpointEvery,
		Position:        cfg.Start,
		StartTime:       time.Now(),
	}
	rm.runs[id] = run
	return run.clone(), nil
}

// GetRun returns a snapshot of the run.
func (rm *RunManager) GetRun(id string) (*Run, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	run, exists := rm.runs[id]
	if !exists {
		return nil, false
	}
	return run.clone(), true
}

// ListRuns returns snapshots of all runs, oldest first.
func (rm *RunManager) ListRuns() []*Run {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	runs := make([]*Run, 0, len(rm.runs))
	for _, run := range rm.runs {
		runs = append(runs, run.clone())
	}
	sortRuns(runs)
	return runs
}

// UpdateRun atomically updates a run using the provided function.
func (rm *RunManager) UpdateRun(id string, updateFn func(*Run)) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	run, exists := rm.runs[id]
	if !exists {
		return fmt.Errorf("run not found: %s", id)
	}
	updateFn(run)
	return nil
}

// GetRunningRuns returns snapshots of runs in the running state.
func (rm *RunManager) GetRunningRuns() []*Run {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	running := make([]*Run, 0)
	for _, run := range rm.runs {
		if run.State == StateRunning {
			running = append(running, run.clone())
		}
	}
	return running
}

// worker is the cancel handle of one background worker.
type worker struct {
	cancel context.CancelFunc
}

// setCancel registers the worker of a run, replacing any previous one.
func (rm *RunManager) setCancel(id string, cancel context.CancelFunc) *worker {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	w := &worker{cancel: cancel}
	rm.cancels[id] = w
	return w
}

// clearCancel drops a finished worker unless it has already been replaced.
func (rm *RunManager) clearCancel(id string, w *worker) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancels[id] == w {
		delete(rm.cancels, id)
	}
}

// CancelRun stops a run's worker. It returns false if the run is unknown or
// has no active worker.
func (rm *RunManager) CancelRun(id string) bool {
	rm.mu.Lock()
	w, ok := rm.cancels[id]
	rm.mu.Unlock()

	if !ok {
		return false
	}
	w.cancel()
	return true
}

// CancelAll stops every active worker.
func (rm *RunManager) CancelAll() {
	rm.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(rm.cancels))
	for _, w := range rm.cancels {
		cancels = append(cancels, w.cancel)
	}
	rm.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}
