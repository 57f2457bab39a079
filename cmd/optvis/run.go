package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/optvis/internal/landscape"
	"github.com/cwbudde/optvis/internal/opt"
	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/step"
	"github.com/cwbudde/optvis/internal/store"
)

// frameInterval is the display refresh used by --realtime.
const frameInterval = 16 * time.Millisecond

var (
	runFlags     simFlags
	runPNG       string
	runTrace     string
	runDataDir   string
	runID        string
	runReference bool
	runRealtime  bool
	runQuiet     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation locally",
	Long: `Steps an optimizer over a cost landscape and prints one row per step.
Optionally writes a heat-map PNG with the trajectory, a JSONL trace and a
checkpoint that 'optvis resume' can continue.`,
	RunE: runSimulation,
}

func init() {
	runFlags.register(runCmd)
	runCmd.Flags().StringVar(&runPNG, "png", "", "Write a heat map with the trajectory to this path")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Write a JSONL trace to this path")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Save a checkpoint and trace under this directory")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run id for the checkpoint (default: random)")
	runCmd.Flags().BoolVar(&runReference, "reference", false, "Report the gap to the mayfly reference minimum")
	runCmd.Flags().BoolVar(&runRealtime, "realtime", false, "Pace steps at the update interval")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Print only the summary")
	rootCmd.AddCommand(runCmd)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := runFlags.config()
	if err != nil {
		return err
	}

	s, err := sim.New(cfg)
	if err != nil {
		return err
	}

	id := runID
	if id == "" {
		id = uuid.New().String()
	}

	trace, err := openRunTrace(id)
	if err != nil {
		return err
	}
	if trace != nil {
		defer trace.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("Starting simulation",
		"function", cfg.Function,
		"algorithm", cfg.Algorithm,
		"start_x", cfg.Start.X,
		"start_y", cfg.Start.Y,
		"max_steps", cfg.MaxSteps,
	)

	out := cmd.OutOrStdout()
	if !runQuiet {
		printFrameHeader(out)
	}

	path := []step.Vec2{s.Position()}
	onFrame := func(f sim.Frame) {
		path = append(path, f.Position)
		if !runQuiet {
			printFrame(out, f)
		}
		if trace != nil {
			if err := trace.Write(store.EntryFromFrame(f)); err != nil {
				slog.Warn("Failed to write trace entry", "iteration", f.Iteration, "error", err)
			}
		}
	}

	start := time.Now()
	if runRealtime {
		_, err = runPaced(ctx, s, onFrame)
	} else {
		_, err = s.Run(ctx, onFrame)
	}
	if errors.Is(err, context.Canceled) {
		slog.Warn("Interrupted", "iteration", s.Iteration())
	} else if err != nil {
		return err
	}

	slog.Info("Simulation finished",
		"iterations", s.Iteration(),
		"cost", s.Cost(),
		"best_cost", s.BestCost(),
		"elapsed", time.Since(start),
	)
	fmt.Fprintf(out, "Finished %d steps at (%.6f, %.6f), cost %.6f (best %.6f)\n",
		s.Iteration(), s.Position().X, s.Position().Y, s.Cost(), s.BestCost())

	if runReference {
		reportReference(cmd, s)
	}

	if runDataDir != "" {
		if err := saveLocalCheckpoint(runDataDir, id, s); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved checkpoint %s\n", id)
	}

	if runPNG != "" {
		caption := fmt.Sprintf("%s / %s  step %d  cost %.4f", cfg.Function, cfg.Algorithm, s.Iteration(), s.Cost())
		if err := writeHeatmap(runPNG, s.Landscape(), path, caption); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", runPNG)
	}
	return nil
}

// openRunTrace opens --trace, or the run's trace in --data-dir; nil if neither.
func openRunTrace(id string) (*store.TraceWriter, error) {
	switch {
	case runTrace != "":
		return store.OpenTraceFile(runTrace, false)
	case runDataDir != "":
		return store.NewTraceWriter(runDataDir, id, false)
	}
	return nil, nil
}

// runPaced feeds wall-clock frame deltas to Advance, so steps fire once per
// update interval regardless of the refresh rate. Random-step previews are
// logged but not reported as frames.
func runPaced(ctx context.Context, s *sim.Simulation, onFrame func(sim.Frame)) (sim.Frame, error) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	var last sim.Frame
	prev := time.Now()
	maxSteps := s.Config().MaxSteps
	for maxSteps == 0 || s.Iteration() < maxSteps {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case now := <-ticker.C:
			f, stepped := s.Advance(now.Sub(prev))
			prev = now
			if !stepped {
				continue
			}
			if f.Preview {
				slog.Debug("Random step neighbours", "iteration", f.Iteration, "neighbors", len(f.Neighbors))
				continue
			}
			last = f
			onFrame(f)
			if s.Converged(f) {
				return last, nil
			}
		}
	}
	return last, nil
}

func reportReference(cmd *cobra.Command, s *sim.Simulation) {
	m := landscape.FindMinimum(s.Landscape(), opt.NewMayfly(referenceIters, referencePop, referenceSeed))
	d := s.Position().Sub(m.Position)
	fmt.Fprintf(cmd.OutOrStdout(), "Reference minimum (%.6f, %.6f), cost %.6f; gap %.6f, distance %.6f\n",
		m.Position.X, m.Position.Y, m.Cost, s.Cost()-m.Cost, d.Len())
}

func saveLocalCheckpoint(dataDir, id string, s *sim.Simulation) error {
	fs, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	if err := fs.SaveCheckpoint(id, store.NewCheckpoint(id, s)); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
