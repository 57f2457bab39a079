package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optvis/internal/landscape"
	"github.com/cwbudde/optvis/internal/opt"
)

// Reference search defaults, shared with 'run --reference'.
const (
	referenceIters = 200
	referencePop   = 40
	referenceSeed  = 42
)

var (
	minIters int
	minPop   int
	minSeed  int64
)

var minimumCmd = &cobra.Command{
	Use:   "minimum [function...]",
	Short: "Find reference global minima with the mayfly optimizer",
	Long: `Searches each landscape's bounds with the mayfly metaheuristic and prints
the best point found. With no arguments every landscape is searched.`,
	RunE: runMinimum,
}

func init() {
	minimumCmd.Flags().IntVar(&minIters, "iters", referenceIters, "Max iterations")
	minimumCmd.Flags().IntVar(&minPop, "pop", referencePop, "Population size (>= 20)")
	minimumCmd.Flags().Int64Var(&minSeed, "seed", referenceSeed, "Random seed")
	rootCmd.AddCommand(minimumCmd)
}

func runMinimum(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = landscape.Names()
	}
	if minPop < 20 {
		return fmt.Errorf("population size must be >= 20, got %d", minPop)
	}

	optimizer := opt.NewMayfly(minIters, minPop, minSeed)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FUNCTION\tX\tY\tCOST")
	for _, name := range names {
		l, err := landscape.Lookup(name)
		if err != nil {
			return err
		}
		m := landscape.FindMinimum(l, optimizer)
		fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%.6f\n", l.Name, m.Position.X, m.Position.Y, m.Cost)
	}
	return w.Flush()
}
