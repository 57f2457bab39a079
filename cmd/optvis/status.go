package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query server status or a specific run",
	Long: `Queries the server for run status information.
If no run-id is provided, lists all runs.
If run-id is provided, shows detailed status for that run.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// runSummary is the subset of a run the status command prints.
type runSummary struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Iteration int    `json:"iteration"`
	Position  struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"position"`
	Cost     float64 `json:"cost"`
	BestCost float64 `json:"bestCost"`
	Config   struct {
		Function  string `json:"function"`
		Algorithm string `json:"algorithm"`
		MaxSteps  int    `json:"maxSteps"`
		Params    struct {
			StepSize float64 `json:"stepSize"`
			Beta1    float64 `json:"beta1"`
			Beta2    float64 `json:"beta2"`
		} `json:"params"`
	} `json:"config"`
	Gradient *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"gradient"`
	Degenerate     bool    `json:"degenerate"`
	Elapsed        float64 `json:"elapsed"`
	StepsPerSecond float64 `json:"stepsPerSecond"`
	Error          string  `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	if len(args) == 0 {
		return listRuns(w, fmt.Sprintf("%s/api/v1/runs", serverURL))
	}
	runID := args[0]
	return getRunStatus(w, fmt.Sprintf("%s/api/v1/runs/%s/status", serverURL, runID), runID)
}

func listRuns(w io.Writer, url string) error {
	var runs []runSummary
	if err := getJSON(url, &runs); err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	fmt.Fprintf(w, "Found %d run(s):\n\n", len(runs))
	for _, run := range runs {
		fmt.Fprintf(w, "Run ID: %s\n", run.ID)
		fmt.Fprintf(w, "  State: %s\n", run.State)
		fmt.Fprintf(w, "  Function: %s\n", run.Config.Function)
		fmt.Fprintf(w, "  Algorithm: %s\n", run.Config.Algorithm)
		fmt.Fprintf(w, "  Step %d at (%.4f, %.4f), cost %.6f\n", run.Iteration, run.Position.X, run.Position.Y, run.Cost)
		fmt.Fprintln(w)
	}
	return nil
}

func getRunStatus(w io.Writer, url, runID string) error {
	var status runSummary
	if err := getJSON(url, &status); err != nil {
		if errors.Is(err, errNotFound) {
			return fmt.Errorf("run not found: %s", runID)
		}
		return err
	}

	fmt.Fprintf(w, "Run: %s\n", status.ID)
	fmt.Fprintf(w, "State: %s\n", status.State)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Function: %s\n", status.Config.Function)
	fmt.Fprintf(w, "  Algorithm: %s\n", status.Config.Algorithm)
	fmt.Fprintf(w, "  Step Size: %g\n", status.Config.Params.StepSize)
	if status.Config.Algorithm == "adam" || status.Config.Algorithm == "nadam" {
		fmt.Fprintf(w, "  Beta1: %g\n", status.Config.Params.Beta1)
		fmt.Fprintf(w, "  Beta2: %g\n", status.Config.Params.Beta2)
	}
	fmt.Fprintf(w, "  Max Steps: %d\n", status.Config.MaxSteps)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	fmt.Fprintf(w, "  Step: %d\n", status.Iteration)
	fmt.Fprintf(w, "  Position: (%.6f, %.6f)\n", status.Position.X, status.Position.Y)
	fmt.Fprintf(w, "  Cost: %.6f (best %.6f)\n", status.Cost, status.BestCost)
	if status.Gradient != nil {
		fmt.Fprintf(w, "  Gradient: (%.6f, %.6f)\n", status.Gradient.X, status.Gradient.Y)
	}
	if status.Degenerate {
		fmt.Fprintln(w, "  Last step: degenerate Hessian, position unchanged")
	}

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(w, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.StepsPerSecond > 0 {
		fmt.Fprintf(w, "  Throughput: %.1f steps/sec\n", status.StepsPerSecond)
	}

	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}
	return nil
}

var errNotFound = errors.New("not found")

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
