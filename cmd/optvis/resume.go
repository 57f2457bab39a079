package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/store"
)

var (
	resumeDataDir string
	resumeSteps   int
	resumePNG     string
	resumeQuiet   bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Continue a checkpointed run locally",
	Long: `Loads a run's checkpoint, restores its position and optimizer state,
and keeps stepping. The trace is appended and the checkpoint updated.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().IntVar(&resumeSteps, "steps", 0, "New step limit (0 = keep the saved one)")
	resumeCmd.Flags().StringVar(&resumePNG, "png", "", "Write a heat map with the full trajectory to this path")
	resumeCmd.Flags().BoolVarP(&resumeQuiet, "quiet", "q", false, "Print only the summary")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	id := args[0]

	fs, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	cp, err := fs.LoadCheckpoint(id)
	if err != nil {
		return err
	}
	if resumeSteps > 0 {
		cp.Config.MaxSteps = resumeSteps
	}

	s, err := cp.Resume()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if limit := s.Config().MaxSteps; limit > 0 && s.Iteration() >= limit {
		fmt.Fprintf(out, "Run %s already reached %d steps; raise --steps to continue\n", id, limit)
		return nil
	}

	trace, err := store.NewTraceWriter(resumeDataDir, id, true)
	if err != nil {
		return err
	}
	defer trace.Close()

	slog.Info("Resuming run", "run_id", id, "iteration", s.Iteration(), "max_steps", s.Config().MaxSteps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !resumeQuiet {
		printFrameHeader(out)
	}
	_, err = s.Run(ctx, func(f sim.Frame) {
		if !resumeQuiet {
			printFrame(out, f)
		}
		if err := trace.Write(store.EntryFromFrame(f)); err != nil {
			slog.Warn("Failed to write trace entry", "iteration", f.Iteration, "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		slog.Warn("Interrupted", "iteration", s.Iteration())
	} else if err != nil {
		return err
	}
	if err := trace.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace: %w", err)
	}

	if err := fs.SaveCheckpoint(id, store.NewCheckpoint(id, s)); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	fmt.Fprintf(out, "Run %s at step %d: (%.6f, %.6f), cost %.6f\n",
		id, s.Iteration(), s.Position().X, s.Position().Y, s.Cost())

	if resumePNG != "" {
		path, err := tracedPath(resumeDataDir, id, cp.Config.Start)
		if err != nil {
			return err
		}
		caption := fmt.Sprintf("%s / %s  step %d  cost %.4f", cp.Config.Function, cp.Config.Algorithm, s.Iteration(), s.Cost())
		if err := writeHeatmap(resumePNG, s.Landscape(), path, caption); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", resumePNG)
	}
	return nil
}
