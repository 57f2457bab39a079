package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/store"
)

func TestSelectCheckpointsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)}, // 10 days old
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},  // 5 days old
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},  // 1 day old
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)}, // 30 days old
	}

	toDelete := selectCheckpointsForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}
	ids := idSet(toDelete)
	if !ids["run1"] || !ids["run4"] {
		t.Error("Expected run1 and run4 to be selected for deletion")
	}
}

func TestSelectCheckpointsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 2, 0)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}
	ids := idSet(toDelete)
	if !ids["run4"] || !ids["run1"] {
		t.Error("Expected run4 and run1 to be selected for deletion (oldest)")
	}
	if infos[0].RunID != "run1" {
		t.Error("Input slice must not be reordered")
	}
}

func TestSelectCheckpointsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
		{RunID: "run5", Timestamp: now.AddDate(0, 0, -2)},
	}

	// run4 and run1 go by age; keeping 3 also removes exactly those two.
	toDelete := selectCheckpointsForDeletion(infos, 3, 7)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 checkpoints to delete without duplicates, got %d", len(toDelete))
	}
}

func TestSelectCheckpointsForDeletion_NothingToDo(t *testing.T) {
	infos := []store.CheckpointInfo{{RunID: "run1", Timestamp: time.Now()}}
	if got := selectCheckpointsForDeletion(infos, 5, 7); len(got) != 0 {
		t.Errorf("Expected nothing to delete, got %v", got)
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}
	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

// testCommand returns a command whose output is captured in the buffer.
func testCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetIn(strings.NewReader(""))
	return cmd, &buf
}

func saveTestCheckpoint(t *testing.T, dir, runID string, age time.Duration) {
	t.Helper()
	checkpointStore, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	s, err := sim.New(sim.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s.Step()

	checkpoint := store.NewCheckpoint(runID, s)
	checkpoint.Timestamp = time.Now().Add(-age)
	if err := checkpointStore.SaveCheckpoint(runID, checkpoint); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
}

func withDataDir(t *testing.T, dir string) {
	t.Helper()
	original := checkpointDataDir
	checkpointDataDir = dir
	t.Cleanup(func() { checkpointDataDir = original })
}

func TestCheckpointsListCommand_NoCheckpoints(t *testing.T) {
	withDataDir(t, t.TempDir())

	cmd, out := testCommand()
	if err := runListCheckpoints(cmd, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No checkpoints found") {
		t.Errorf("Unexpected output: %q", out.String())
	}
}

func TestCheckpointsListCommand_WithCheckpoints(t *testing.T) {
	tmpDir := t.TempDir()
	saveTestCheckpoint(t, tmpDir, "test-run-id", 0)
	withDataDir(t, tmpDir)

	cmd, out := testCommand()
	if err := runListCheckpoints(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, want := range []string{"test-run-id", "ackley", "gradient", "Total checkpoints: 1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Output missing %q:\n%s", want, out.String())
		}
	}
}

func TestCheckpointsCleanCommand_NoFlags(t *testing.T) {
	withDataDir(t, t.TempDir())
	keepLast = 0
	olderThanDays = 0

	cmd, _ := testCommand()
	if err := runCleanCheckpoints(cmd, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestCheckpointsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()
	saveTestCheckpoint(t, tmpDir, "old-run", 30*24*time.Hour)
	saveTestCheckpoint(t, tmpDir, "new-run", 0)
	withDataDir(t, tmpDir)

	keepLast = 0
	olderThanDays = 7
	forceClean = true
	t.Cleanup(func() { olderThanDays, forceClean = 0, false })

	cmd, _ := testCommand()
	if err := runCleanCheckpoints(cmd, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	checkpointStore, _ := store.NewFSStore(tmpDir)
	if _, err := checkpointStore.LoadCheckpoint("old-run"); err == nil {
		t.Error("Expected old checkpoint to be deleted")
	}
	if _, err := checkpointStore.LoadCheckpoint("new-run"); err != nil {
		t.Errorf("Recent checkpoint should survive: %v", err)
	}
}

func TestCheckpointsCleanCommand_Aborted(t *testing.T) {
	tmpDir := t.TempDir()
	saveTestCheckpoint(t, tmpDir, "old-run", 30*24*time.Hour)
	withDataDir(t, tmpDir)

	keepLast = 0
	olderThanDays = 7
	forceClean = false
	t.Cleanup(func() { olderThanDays = 0 })

	cmd, out := testCommand()
	cmd.SetIn(strings.NewReader("n\n"))
	if err := runCleanCheckpoints(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("Expected abort, got %q", out.String())
	}

	checkpointStore, _ := store.NewFSStore(tmpDir)
	if _, err := checkpointStore.LoadCheckpoint("old-run"); err != nil {
		t.Error("Checkpoint should survive an aborted clean")
	}
}

func idSet(infos []store.CheckpointInfo) map[string]bool {
	ids := make(map[string]bool, len(infos))
	for _, info := range infos {
		ids[info.RunID] = true
	}
	return ids
}
