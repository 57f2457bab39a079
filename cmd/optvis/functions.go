package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optvis/internal/landscape"
	"github.com/cwbudde/optvis/internal/sim"
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the available cost landscapes",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tBOUNDS\tDESCRIPTION")
		for _, l := range landscape.All() {
			fmt.Fprintf(w, "%s\t[%g, %g]\t%s\n", l.Name, l.Bounds.Min, l.Bounds.Max, l.Description)
		}
		return w.Flush()
	},
}

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List the algorithms and their parameter presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ALGORITHM\tNAME\tPARAMETERS")
		for _, p := range sim.Presets() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Algorithm, p.Name, formatParams(p.Params))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(functionsCmd)
	rootCmd.AddCommand(algorithmsCmd)
}

// formatParams renders preset values as "key=value [min, max]", sorted by key.
func formatParams(params map[string]sim.ParamSpec) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		p := params[k]
		parts[i] = fmt.Sprintf("%s=%g [%g, %g]", k, p.Value, p.Min, p.Max)
	}
	return strings.Join(parts, " ")
}
