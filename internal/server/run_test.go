package server

import (
	"context"
	"testing"
	"time"

	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/step"
)

func TestRunManager_CreateRun(t *testing.T) {
	rm := NewRunManager()
	cfg := sim.DefaultConfig()

	run := rm.CreateRun(cfg, 5)

	if run.ID == "" {
		t.Error("Run ID should not be empty")
	}
	if run.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", run.State)
	}
	if run.Position != cfg.Start {
		t.Errorf("Position should start at %+v, got %+v", cfg.Start, run.Position)
	}
	if run.CheckpointEvery != 5 {
		t.Errorf("CheckpointEvery = %d", run.CheckpointEvery)
	}
}

func TestRunManager_GetRunReturnsCopy(t *testing.T) {
	rm := NewRunManager()
	run := rm.CreateRun(sim.DefaultConfig(), 0)

	got, exists := rm.GetRun(run.ID)
	if !exists {
		t.Fatal("Run should exist")
	}
	got.State = StateFailed
	got.Trajectory[0] = step.Vec2{X: -1, Y: -1}

	again, _ := rm.GetRun(run.ID)
	if again.State != StatePending || again.Trajectory[0] == (step.Vec2{X: -1, Y: -1}) {
		t.Error("Mutating a snapshot must not affect the manager")
	}

	if _, exists := rm.GetRun("nonexistent"); exists {
		t.Error("Should not find nonexistent run")
	}
}

func TestRunManager_ListRunsOrdered(t *testing.T) {
	rm := NewRunManager()
	if len(rm.ListRuns()) != 0 {
		t.Error("Should start with no runs")
	}

	first := rm.CreateRun(sim.DefaultConfig(), 0)
	time.Sleep(time.Millisecond)
	rm.CreateRun(sim.DefaultConfig(), 0)

	runs := rm.ListRuns()
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != first.ID {
		t.Error("Runs should be ordered by start time")
	}
}

func TestRunManager_UpdateRun(t *testing.T) {
	rm := NewRunManager()
	run := rm.CreateRun(sim.DefaultConfig(), 0)

	err := rm.UpdateRun(run.ID, func(r *Run) {
		r.State = StateRunning
		r.BestCost = 10
		r.record(sim.Frame{Iteration: 1, Position: step.Vec2{X: 1, Y: 2}, Cost: 3, HasGradient: true, Gradient: step.Vec2{X: 0.5}})
	})
	if err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	got, _ := rm.GetRun(run.ID)
	if got.Iteration != 1 || got.Cost != 3 || got.BestCost != 3 {
		t.Errorf("record not applied: %+v", got)
	}
	if got.Gradient == nil || got.Gradient.X != 0.5 {
		t.Errorf("gradient = %v", got.Gradient)
	}
	if len(got.Trajectory) != 2 {
		t.Errorf("trajectory length = %d, want 2", len(got.Trajectory))
	}

	if err := rm.UpdateRun("nonexistent", func(*Run) {}); err == nil {
		t.Error("Expected error for nonexistent run")
	}
	if len(rm.GetRunningRuns()) != 1 {
		t.Error("Expected one running run")
	}
}

func TestRunManager_AdoptRun(t *testing.T) {
	rm := NewRunManager()
	if _, err := rm.AdoptRun("saved-run", sim.DefaultConfig(), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := rm.AdoptRun("saved-run", sim.DefaultConfig(), 0); err == nil {
		t.Error("Adopting an existing id should fail")
	}
}

func TestRunManager_CancelRun(t *testing.T) {
	rm := NewRunManager()
	run := rm.CreateRun(sim.DefaultConfig(), 0)

	if rm.CancelRun(run.ID) {
		t.Error("No worker registered yet")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := rm.setCancel(run.ID, cancel)
	if !rm.CancelRun(run.ID) {
		t.Error("CancelRun should find the worker")
	}
	if ctx.Err() == nil {
		t.Error("Context should be cancelled")
	}

	// a stale handle does not clear its replacement
	rm.setCancel(run.ID, func() {})
	rm.clearCancel(run.ID, h)
	if !rm.CancelRun(run.ID) {
		t.Error("Replacement worker should still be registered")
	}
}
