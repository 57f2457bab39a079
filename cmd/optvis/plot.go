package main

import (
	"errors"
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optvis/internal/landscape"
	"github.com/cwbudde/optvis/internal/plot"
	"github.com/cwbudde/optvis/internal/step"
	"github.com/cwbudde/optvis/internal/store"
)

var (
	plotFunction string
	plotOut      string
	plotWidth    int
	plotHeight   int
	plotRun      string
	plotDataDir  string
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render a landscape heat map",
	Long: `Writes a PNG heat map of a cost landscape. With --run, the function is
taken from the run's checkpoint and its traced trajectory is drawn on top.`,
	RunE: runPlot,
}

func init() {
	plotCmd.Flags().StringVar(&plotFunction, "function", "ackley", "Cost landscape")
	plotCmd.Flags().StringVar(&plotOut, "out", "landscape.png", "Output PNG path")
	plotCmd.Flags().IntVar(&plotWidth, "width", plot.DefaultOptions().Width, "Image width in pixels")
	plotCmd.Flags().IntVar(&plotHeight, "height", plot.DefaultOptions().Height, "Image height in pixels")
	plotCmd.Flags().StringVar(&plotRun, "run", "", "Overlay the trace of this run")
	plotCmd.Flags().StringVar(&plotDataDir, "data-dir", "./data", "Base directory for checkpoints and traces")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	name := plotFunction
	caption := ""
	var path []step.Vec2

	if plotRun != "" {
		fs, err := store.NewFSStore(plotDataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		cp, err := fs.LoadCheckpoint(plotRun)
		if err != nil {
			return err
		}
		name = cp.Config.Function
		caption = fmt.Sprintf("%s / %s  step %d  cost %.4f", name, cp.Config.Algorithm, cp.Iteration, cp.Cost)

		path, err = tracedPath(plotDataDir, plotRun, cp.Config.Start)
		if err != nil {
			return err
		}
	}

	l, err := landscape.Lookup(name)
	if err != nil {
		return err
	}
	if caption == "" {
		caption = l.Name
	}

	if err := writeHeatmapSized(plotOut, l, path, caption, plotWidth, plotHeight); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", plotOut)
	return nil
}

// tracedPath reads a run's trace as a polyline beginning at start. A run
// without a trace yields just the start point.
func tracedPath(dataDir, runID string, start step.Vec2) ([]step.Vec2, error) {
	tr, err := store.NewTraceReader(dataDir, runID)
	if errors.Is(err, store.ErrNotFound) {
		return []step.Vec2{start}, nil
	} else if err != nil {
		return nil, err
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	return append([]step.Vec2{start}, store.Positions(entries)...), nil
}

func writeHeatmap(path string, l landscape.Landscape, trajectory []step.Vec2, caption string) error {
	def := plot.DefaultOptions()
	return writeHeatmapSized(path, l, trajectory, caption, def.Width, def.Height)
}

func writeHeatmapSized(path string, l landscape.Landscape, trajectory []step.Vec2, caption string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", width, height)
	}
	img := plot.Heatmap(l, plot.Options{
		Width:      width,
		Height:     height,
		Trajectory: trajectory,
		Caption:    caption,
	})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
