package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/step"
)

func newSim(t *testing.T, alg step.Algorithm) *sim.Simulation {
	t.Helper()
	cfg := sim.DefaultConfig()
	cfg.Algorithm = alg
	cfg.Params = step.Params{}
	cfg.UpdateInterval = 0
	s, err := sim.New(cfg)
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	return s
}

func TestFSStore_SaveLoad(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	s := newSim(t, step.AlgAdam)
	for i := 0; i < 7; i++ {
		s.Step()
	}
	cp := NewCheckpoint("run-1", s)

	if err := fs.SaveCheckpoint("run-1", cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	loaded, err := fs.LoadCheckpoint("run-1")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if loaded.Position != cp.Position || loaded.State != cp.State || loaded.Iteration != 7 {
		t.Errorf("loaded %+v, saved %+v", loaded, cp)
	}
	if loaded.Config.Algorithm != step.AlgAdam || loaded.Config.UpdateInterval != cp.Config.UpdateInterval {
		t.Errorf("config not preserved: %+v", loaded.Config)
	}

	if _, err := os.Stat(filepath.Join(fs.RunDir("run-1"), "checkpoint.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestFSStore_NotFound(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())

	if _, err := fs.LoadCheckpoint("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadCheckpoint: expected ErrNotFound, got %v", err)
	}
	if err := fs.DeleteCheckpoint("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteCheckpoint: expected ErrNotFound, got %v", err)
	}
	if _, err := NewTraceReader(fs.BaseDir(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("NewTraceReader: expected ErrNotFound, got %v", err)
	}
}

func TestFSStore_RejectsInvalid(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())

	if err := fs.SaveCheckpoint("", &Checkpoint{}); err == nil {
		t.Error("expected error for empty run id")
	}
	if err := fs.SaveCheckpoint("x", nil); err == nil {
		t.Error("expected error for nil checkpoint")
	}
	if err := fs.SaveCheckpoint("x", &Checkpoint{RunID: "x", Iteration: -1}); err == nil {
		t.Error("expected error for negative iteration")
	}
}

func TestFSStore_ListAndDelete(t *testing.T) {
	fs, _ := NewFSStore(t.TempDir())

	infos, err := fs.ListCheckpoints()
	if err != nil || len(infos) != 0 {
		t.Fatalf("empty store: %v, %v", infos, err)
	}

	for _, id := range []string{"a", "b"} {
		if err := fs.SaveCheckpoint(id, NewCheckpoint(id, newSim(t, step.AlgGradient))); err != nil {
			t.Fatal(err)
		}
	}
	// corrupted checkpoint is skipped
	os.MkdirAll(fs.RunDir("c"), 0755)
	os.WriteFile(filepath.Join(fs.RunDir("c"), "checkpoint.json"), []byte("{"), 0644)

	infos, err = fs.ListCheckpoints()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(infos))
	}
	if infos[0].Function != "ackley" {
		t.Errorf("info = %+v", infos[0])
	}

	if err := fs.DeleteCheckpoint("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.LoadCheckpoint("a"); !errors.Is(err, ErrNotFound) {
		t.Error("checkpoint should be deleted")
	}
}

func TestCheckpointResumeContinuesExactly(t *testing.T) {
	ref := newSim(t, step.AlgNadam)
	var want []step.Vec2
	for i := 0; i < 10; i++ {
		want = append(want, ref.Step().Position)
	}

	s := newSim(t, step.AlgNadam)
	for i := 0; i < 4; i++ {
		s.Step()
	}

	fs, _ := NewFSStore(t.TempDir())
	if err := fs.SaveCheckpoint("r", NewCheckpoint("r", s)); err != nil {
		t.Fatal(err)
	}
	cp, err := fs.LoadCheckpoint("r")
	if err != nil {
		t.Fatal(err)
	}

	resumed, err := cp.Resume()
	if err != nil {
		t.Fatal(err)
	}
	for i := 4; i < 10; i++ {
		if got := resumed.Step().Position; got != want[i] {
			t.Fatalf("step %d: %+v != %+v", i, got, want[i])
		}
	}
}

func TestTraceRoundTrip(t *testing.T) {
	base := t.TempDir()
	tw, err := NewTraceWriter(base, "run", false)
	if err != nil {
		t.Fatal(err)
	}

	s := newSim(t, step.AlgNewton)
	for i := 0; i < 3; i++ {
		if err := tw.Write(EntryFromFrame(s.Step())); err != nil {
			t.Fatal(err)
		}
	}
	tw.Write(EntryFromFrame(sim.Frame{Iteration: 4, Degenerate: true}))
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	tr, err := NewTraceReader(base, "run")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Iteration != 1 || entries[0].Gradient == nil {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[3].Gradient != nil || !entries[3].Degenerate {
		t.Errorf("degenerate entry = %+v", entries[3])
	}
	if len(Positions(entries)) != 4 {
		t.Error("Positions length mismatch")
	}
}

func TestTraceAppend(t *testing.T) {
	base := t.TempDir()
	for i := 0; i < 2; i++ {
		tw, err := NewTraceWriter(base, "run", true)
		if err != nil {
			t.Fatal(err)
		}
		tw.Write(TraceEntry{Iteration: i + 1})
		tw.Close()
	}

	tr, _ := NewTraceReader(base, "run")
	defer tr.Close()
	entries, _ := tr.ReadAll()
	if len(entries) != 2 {
		t.Errorf("expected 2 appended entries, got %d", len(entries))
	}
}
