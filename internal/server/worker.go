package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/store"
)

// runWorker executes a run in the background, one step per update interval.
// If checkpointStore is not nil, the trace is written to the run directory
// and checkpoints are saved every CheckpointEvery steps and at the end.
func runWorker(ctx context.Context, rm *RunManager, checkpointStore store.Store, runID string) error {
	run, exists := rm.GetRun(runID)
	if !exists {
		return fmt.Errorf("run not found: %s", runID)
	}

	s, err := sim.New(run.Config)
	if err != nil {
		markRunFailed(rm, runID, err)
		return err
	}
	if err := resumeRun(s, checkpointStore, runID); err != nil {
		markRunFailed(rm, runID, err)
		return err
	}

	var trace *store.TraceWriter
	if checkpointStore != nil {
		trace, err = openTrace(checkpointStore, runID, s.Iteration() > 0)
		if err != nil {
			markRunFailed(rm, runID, err)
			return err
		}
		defer trace.Close()
	}

	err = rm.UpdateRun(runID, func(r *Run) {
		r.State = StateRunning
		r.Config = s.Config()
		r.Position = s.Position()
		r.Iteration = s.Iteration()
		r.Cost = s.Cost()
		r.BestCost = s.Cost()
	})
	if err != nil {
		return err
	}

	slog.Info("Starting run",
		"run_id", runID,
		"function", run.Config.Function,
		"algorithm", run.Config.Algorithm,
		"interval", s.Config().UpdateInterval,
	)

	ticker := time.NewTicker(s.Config().UpdateInterval)
	defer ticker.Stop()

	maxSteps := s.Config().MaxSteps
	for maxSteps == 0 || s.Iteration() < maxSteps {
		select {
		case <-ctx.Done():
			saveCheckpoint(checkpointStore, runID, s)
			markRunCancelled(rm, runID)
			return ctx.Err()
		case <-ticker.C:
		}

		frame := s.Step()
		if !finiteFrame(frame) {
			err := fmt.Errorf("optimizer diverged at iteration %d", frame.Iteration)
			markRunFailed(rm, runID, err)
			return err
		}

		rm.UpdateRun(runID, func(r *Run) { r.record(frame) })
		rm.broadcaster.Broadcast(StepEvent{
			RunID:     runID,
			State:     StateRunning,
			Frame:     frame,
			Timestamp: time.Now(),
		})

		if trace != nil {
			if err := trace.Write(store.EntryFromFrame(frame)); err != nil {
				slog.Warn("Failed to write trace entry", "run_id", runID, "error", err)
			} else if err := trace.Flush(); err != nil {
				slog.Warn("Failed to flush trace", "run_id", runID, "error", err)
			}
		}

		if run.CheckpointEvery > 0 && frame.Iteration%run.CheckpointEvery == 0 {
			saveCheckpoint(checkpointStore, runID, s)
		}

		if s.Converged(frame) {
			break
		}
	}

	saveCheckpoint(checkpointStore, runID, s)

	endTime := time.Now()
	var final *Run
	rm.UpdateRun(runID, func(r *Run) {
		r.State = StateCompleted
		r.EndTime = &endTime
		final = r.clone()
	})

	slog.Info("Run completed",
		"run_id", runID,
		"iterations", final.Iteration,
		"cost", final.Cost,
		"best_cost", final.BestCost,
		"elapsed", endTime.Sub(final.StartTime),
	)

	rm.broadcaster.Broadcast(StepEvent{
		RunID:     runID,
		State:     StateCompleted,
		Frame:     sim.Frame{Iteration: final.Iteration, Position: final.Position, Cost: final.Cost},
		Timestamp: endTime,
	})
	return nil
}

// resumeRun restores a run from an existing checkpoint of the same id.
func resumeRun(s *sim.Simulation, checkpointStore store.Store, runID string) error {
	if checkpointStore == nil {
		return nil
	}
	cp, err := checkpointStore.LoadCheckpoint(runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	s.Restore(cp.Position, cp.State, cp.Iteration)
	slog.Info("Resumed run from checkpoint", "run_id", runID, "iteration", cp.Iteration)
	return nil
}

func openTrace(checkpointStore store.Store, runID string, appendTrace bool) (*store.TraceWriter, error) {
	dir := checkpointStore.RunDir(runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return store.OpenTraceFile(filepath.Join(dir, "trace.jsonl"), appendTrace)
}

// saveCheckpoint persists the simulation; failures are logged, not fatal.
func saveCheckpoint(checkpointStore store.Store, runID string, s *sim.Simulation) {
	if checkpointStore == nil {
		return
	}
	if err := checkpointStore.SaveCheckpoint(runID, store.NewCheckpoint(runID, s)); err != nil {
		slog.Error("Failed to save checkpoint", "run_id", runID, "error", err)
		return
	}
	slog.Debug("Checkpoint saved", "run_id", runID, "iteration", s.Iteration())
}

func finiteFrame(f sim.Frame) bool {
	for _, v := range []float64{f.Position.X, f.Position.Y, f.Cost} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// markRunFailed marks a run as failed with an error message.
func markRunFailed(rm *RunManager, runID string, err error) {
	endTime := time.Now()
	rm.UpdateRun(runID, func(r *Run) {
		r.State = StateFailed
		r.Error = err.Error()
		r.EndTime = &endTime
	})
	rm.broadcaster.Broadcast(StepEvent{RunID: runID, State: StateFailed, Timestamp: endTime})
	slog.Error("Run failed", "run_id", runID, "error", err)
}

// markRunCancelled marks a run as cancelled.
func markRunCancelled(rm *RunManager, runID string) {
	endTime := time.Now()
	rm.UpdateRun(runID, func(r *Run) {
		r.State = StateCancelled
		r.EndTime = &endTime
	})
	rm.broadcaster.Broadcast(StepEvent{RunID: runID, State: StateCancelled, Timestamp: endTime})
	slog.Info("Run cancelled", "run_id", runID)
}
