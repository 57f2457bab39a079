package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/optvis/internal/landscape"
	"github.com/cwbudde/optvis/internal/plot"
	"github.com/cwbudde/optvis/internal/sim"
	"github.com/cwbudde/optvis/internal/store"
)

// Server exposes runs over HTTP.
type Server struct {
	runManager *RunManager
	store      store.Store
	addr       string
	server     *http.Server
	workers    sync.WaitGroup
}

// NewServer creates a server. checkpointStore may be nil to disable traces
// and checkpoints.
func NewServer(addr string, checkpointStore store.Store) *Server {
	return &Server{
		runManager: NewRunManager(),
		store:      checkpointStore,
		addr:       addr,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/v1/functions", s.handleFunctions)
	mux.HandleFunc("/api/v1/algorithms", s.handleAlgorithms)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunsWithID)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown cancels running workers, waits for them, and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_runs", len(s.runManager.GetRunningRuns()))
	s.runManager.CancelAll()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// startWorker launches the background worker of a run.
func (s *Server) startWorker(runID string) {
	ctx, cancel := context.WithCancel(context.Background())
	handle := s.runManager.setCancel(runID, cancel)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer cancel()
		defer s.runManager.clearCancel(runID, handle)
		runWorker(ctx, s.runManager, s.store, runID)
	}()
}

// handleRuns handles /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunsWithID handles /api/v1/runs/:id/*
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	runID := parts[0]
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch {
	case sub == "cancel" || sub == "resume":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if sub == "cancel" {
			s.handleCancelRun(w, r, runID)
		} else {
			s.handleResumeRun(w, r, runID)
		}
	case r.Method != http.MethodGet:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	case sub == "" || sub == "status":
		s.handleGetRunStatus(w, r, runID)
	case sub == "stream":
		s.handleRunStream(w, r, runID)
	case sub == "trace":
		s.handleGetTrace(w, r, runID)
	case sub == "plot.png":
		s.handleGetPlot(w, r, runID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateRun handles POST /api/v1/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	cfg, err := req.Config()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run := s.runManager.CreateRun(cfg, req.CheckpointEvery)
	s.startWorker(run.ID)

	writeJSON(w, http.StatusCreated, run)
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runManager.ListRuns())
}

// handleGetRunStatus handles GET /api/v1/runs/:id/status
func (s *Server) handleGetRunStatus(w http.ResponseWriter, r *http.Request, runID string) {
	run, exists := s.runManager.GetRun(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if run.EndTime != nil {
		elapsed = run.EndTime.Sub(run.StartTime)
	} else {
		elapsed = time.Since(run.StartTime)
	}

	stepsPerSecond := float64(0)
	if elapsed.Seconds() > 0 {
		stepsPerSecond = float64(run.Iteration) / elapsed.Seconds()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":             run.ID,
		"state":          run.State,
		"config":         run.Config,
		"iteration":      run.Iteration,
		"position":       run.Position,
		"cost":           run.Cost,
		"bestCost":       run.BestCost,
		"gradient":       run.Gradient,
		"degenerate":     run.Degenerate,
		"elapsed":        elapsed.Seconds(),
		"stepsPerSecond": stepsPerSecond,
		"startTime":      run.StartTime,
		"endTime":        run.EndTime,
		"error":          run.Error,
	})
}

// handleCancelRun handles POST /api/v1/runs/:id/cancel
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, exists := s.runManager.GetRun(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if run.IsTerminal() || !s.runManager.CancelRun(runID) {
		http.Error(w, fmt.Sprintf("Run is %s", run.State), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleResumeRun handles POST /api/v1/runs/:id/resume. The run continues
// from its checkpoint; an optional {"maxSteps": N} body extends the budget.
func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request, runID string) {
	if s.store == nil {
		http.Error(w, "Checkpointing is disabled", http.StatusConflict)
		return
	}

	var body struct {
		MaxSteps int `json:"maxSteps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	cp, err := s.store.LoadCheckpoint(runID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Checkpoint not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cfg := cp.Config
	if body.MaxSteps > 0 {
		cfg.MaxSteps = body.MaxSteps
	}

	if existing, ok := s.runManager.GetRun(runID); ok {
		if !existing.IsTerminal() {
			http.Error(w, fmt.Sprintf("Run is %s", existing.State), http.StatusConflict)
			return
		}
		s.runManager.UpdateRun(runID, func(r *Run) {
			r.State = StatePending
			r.Config = cfg
			r.EndTime = nil
			r.Error = ""
		})
	} else if _, err := s.runManager.AdoptRun(runID, cfg, 0); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	s.runManager.UpdateRun(runID, func(r *Run) {
		r.Position = cp.Position
		r.Iteration = cp.Iteration
		r.Cost = cp.Cost
	})
	s.runManager.broadcaster.CleanupRun(runID)
	s.startWorker(runID)

	run, _ := s.runManager.GetRun(runID)
	writeJSON(w, http.StatusAccepted, run)
}

// handleGetTrace handles GET /api/v1/runs/:id/trace
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, runID string) {
	if _, exists := s.runManager.GetRun(runID); !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if s.store == nil {
		http.Error(w, "Tracing is disabled", http.StatusNotFound)
		return
	}

	f, err := os.Open(filepath.Join(s.store.RunDir(runID), "trace.jsonl"))
	if os.IsNotExist(err) {
		http.Error(w, "No trace yet", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, f); err != nil {
		slog.Error("Failed to stream trace", "run_id", runID, "error", err)
	}
}

// handleGetPlot handles GET /api/v1/runs/:id/plot.png
func (s *Server) handleGetPlot(w http.ResponseWriter, r *http.Request, runID string) {
	run, exists := s.runManager.GetRun(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	l, err := landscape.Lookup(run.Config.Function)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	opts := plot.Options{
		Width:      intQuery(r, "width", 512, 2048),
		Height:     intQuery(r, "height", 512, 2048),
		Trajectory: run.Trajectory,
		Caption:    fmt.Sprintf("%s / %s  step %d  cost %.4f", l.Name, run.Config.Algorithm, run.Iteration, run.Cost),
	}
	writePNG(w, plot.Heatmap(l, opts))
}

// handleFunctions handles GET /api/v1/functions
func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, landscape.All())
}

// handleAlgorithms handles GET /api/v1/algorithms
func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, sim.Presets())
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
