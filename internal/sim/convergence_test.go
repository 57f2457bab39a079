package sim

import (
	"math"
	"testing"
)

func TestConvergenceTracker_BasicConvergence(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 3, Threshold: 0.01})

	if tracker.BestCost() != math.Inf(1) {
		t.Errorf("Expected initial best cost to be Inf, got %v", tracker.BestCost())
	}
	if tracker.Update(1.0) {
		t.Error("Should not converge on first update")
	}
	if tracker.Update(0.8) {
		t.Error("Should not converge after improvement")
	}
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count 0, got %v", tracker.StaleCount())
	}
	if tracker.Update(0.795) || tracker.Update(0.796) {
		t.Error("Should not converge before patience is exhausted")
	}
	if !tracker.Update(0.797) {
		t.Error("Should converge after patience exceeded (3/3)")
	}
	if tracker.BestCost() != 0.795 {
		t.Errorf("Expected best cost 0.795, got %v", tracker.BestCost())
	}
}

func TestConvergenceTracker_NegativeCosts(t *testing.T) {
	tracker := NewConvergenceTracker(ConvergenceConfig{Enabled: true, Patience: 2, Threshold: 0.01})

	tracker.Update(-1.0)
	if tracker.Update(-1.2) {
		t.Error("Decrease into negative costs is progress")
	}
	if tracker.StaleCount() != 0 {
		t.Errorf("Expected stale count 0, got %d", tracker.StaleCount())
	}
}

func TestConvergenceTracker_Disabled(t *testing.T) {
	tracker := NewConvergenceTracker(DisabledConvergenceConfig())
	for i := 0; i < 100; i++ {
		if tracker.Update(1.0) {
			t.Fatal("Disabled tracker should never converge")
		}
	}
	if len(tracker.History()) != 100 {
		t.Errorf("Expected 100 history entries, got %d", len(tracker.History()))
	}
}

func TestConvergenceTracker_Reset(t *testing.T) {
	tracker := NewConvergenceTracker(DefaultConvergenceConfig())
	tracker.Update(3)
	tracker.Update(3)
	tracker.Reset()

	if tracker.StaleCount() != 0 || len(tracker.History()) != 0 || tracker.BestCost() != math.Inf(1) {
		t.Error("Reset should clear all state")
	}
}
