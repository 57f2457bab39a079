package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/step"
)

// Checkpoint is the saved state of a run. The moment state is small and is
// saved in full, so resuming continues the exact step sequence.
type Checkpoint struct {
	RunID     string     `json:"runId"`
	Config    sim.Config `json:"config"`
	Position  step.Vec2  `json:"position"`
	State     step.State `json:"state"`
	Iteration int        `json:"iteration"`
	Cost      float64    `json:"cost"`
	BestCost  float64    `json:"bestCost"`
	Timestamp time.Time  `json:"timestamp"`
}

// CheckpointInfo is checkpoint metadata for listings.
type CheckpointInfo struct {
	RunID     string         `json:"runId"`
	Function  string         `json:"function"`
	Algorithm step.Algorithm `json:"algorithm"`
	Iteration int            `json:"iteration"`
	Cost      float64        `json:"cost"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewCheckpoint captures the current state of a simulation.
func NewCheckpoint(runID string, s *sim.Simulation) *Checkpoint {
	return &Checkpoint{
		RunID:     runID,
		Config:    s.Config(),
		Position:  s.Position(),
		State:     s.State(),
		Iteration: s.Iteration(),
		Cost:      s.Cost(),
		BestCost:  s.BestCost(),
		Timestamp: time.Now(),
	}
}

// Validate checks the checkpoint for consistency before it is saved or resumed.
func (c *Checkpoint) Validate() error {
	if c.RunID == "" {
		return fmt.Errorf("runId cannot be empty")
	}
	if c.Iteration < 0 {
		return fmt.Errorf("iteration must be >= 0, got %d", c.Iteration)
	}
	if c.State.T < 0 {
		return fmt.Errorf("optimizer step counter must be >= 0, got %d", c.State.T)
	}
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("checkpoint config: %w", err)
	}
	return nil
}

// ToInfo extracts listing metadata.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		RunID:     c.RunID,
		Function:  c.Config.Function,
		Algorithm: c.Config.Algorithm,
		Iteration: c.Iteration,
		Cost:      c.Cost,
		Timestamp: c.Timestamp,
	}
}

// Resume rebuilds the simulation at the checkpointed position and state.
func (c *Checkpoint) Resume() (*sim.Simulation, error) {
	s, err := sim.New(c.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild simulation: %w", err)
	}
	s.Restore(c.Position, c.State, c.Iteration)
	return s, nil
}
