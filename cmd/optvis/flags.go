package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optvis/internal/server"
	"github.com/cwbudde/optvis/internal/sim"
)

// simFlags are the run parameters shared by the local commands. They are
// funnelled through the same request type the HTTP API uses, so validation
// and preset defaults match.
type simFlags struct {
	function  string
	algorithm string
	startX    float64
	startY    float64
	stepSize  float64
	beta1     float64
	beta2     float64
	interval  float64
	steps     int
	converge  bool
	patience  int
}

func (f *simFlags) register(cmd *cobra.Command) {
	def := sim.DefaultConfig()
	fl := cmd.Flags()
	fl.StringVar(&f.function, "function", def.Function, "Cost landscape (see 'optvis functions')")
	fl.StringVar(&f.algorithm, "algorithm", string(def.Algorithm), "Algorithm: gradient, random, newton, adam, nadam")
	fl.Float64Var(&f.startX, "start-x", def.Start.X, "Start position x")
	fl.Float64Var(&f.startY, "start-y", def.Start.Y, "Start position y")
	fl.Float64Var(&f.stepSize, "step-size", 0, "Step size or learning rate (0 = preset default)")
	fl.Float64Var(&f.beta1, "beta1", 0, "Adam/Nadam first-moment decay (0 = preset default)")
	fl.Float64Var(&f.beta2, "beta2", 0, "Adam/Nadam second-moment decay (0 = preset default)")
	fl.Float64Var(&f.interval, "interval", 0, "Update interval in seconds, used with --realtime (0 = preset default)")
	fl.IntVar(&f.steps, "steps", def.MaxSteps, "Maximum number of steps")
	fl.BoolVar(&f.converge, "converge", false, "Stop early once the cost stops improving")
	fl.IntVar(&f.patience, "patience", sim.DefaultConvergenceConfig().Patience, "Stale steps before stopping (with --converge)")
}

func (f *simFlags) config() (sim.Config, error) {
	req := server.RunRequest{
		Function:       f.function,
		Algorithm:      f.algorithm,
		StartX:         &f.startX,
		StartY:         &f.startY,
		StepSize:       f.stepSize,
		Beta1:          f.beta1,
		Beta2:          f.beta2,
		UpdateInterval: f.interval,
		MaxSteps:       f.steps,
	}
	if f.converge {
		conv := sim.DefaultConvergenceConfig()
		conv.Patience = f.patience
		req.Convergence = &conv
	}
	return req.Config()
}

// printFrame writes one step as a table row.
func printFrame(w io.Writer, fr sim.Frame) {
	grad := "-"
	if fr.HasGradient {
		g := fr.DisplayGradient()
		grad = fmt.Sprintf("(%.4f, %.4f)", g.X, g.Y)
	}
	note := ""
	if fr.Degenerate {
		note = "  degenerate hessian"
	}
	fmt.Fprintf(w, "%6d  %10.4f  %10.4f  %14.6f  %s%s\n", fr.Iteration, fr.Position.X, fr.Position.Y, fr.Cost, grad, note)
}

func printFrameHeader(w io.Writer) {
	fmt.Fprintf(w, "%6s  %10s  %10s  %14s  %s\n", "STEP", "X", "Y", "COST", "GRADIENT")
}
