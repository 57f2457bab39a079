package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwbudde/optvis/internal/sim"
)

// StepEvent is one SSE message: the run's state plus its latest frame.
type StepEvent struct {
	RunID     string    `json:"runId"`
	State     RunState  `json:"state"`
	Frame     sim.Frame `json:"frame"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBroadcaster fans step events out to SSE subscribers per run.
type EventBroadcaster struct {
	mu        sync.Mutex
	clients   map[string]map[chan StepEvent]bool // runID -> set of client channels
	lastEvent map[string]StepEvent               // runID -> last event for new clients
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan StepEvent]bool),
		lastEvent: make(map[string]StepEvent),
	}
}

// Subscribe registers a client and replays the last event, if any.
func (eb *EventBroadcaster) Subscribe(runID string) chan StepEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan StepEvent, 16)
	if eb.clients[runID] == nil {
		eb.clients[runID] = make(map[chan StepEvent]bool)
	}
	eb.clients[runID][ch] = true

	if last, ok := eb.lastEvent[runID]; ok {
		select {
		case ch <- last:
		default:
		}
	}

	slog.Debug("SSE client subscribed", "run_id", runID, "total_clients", len(eb.clients[runID]))
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (eb *EventBroadcaster) Unsubscribe(runID string, ch chan StepEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	clients, ok := eb.clients[runID]
	if !ok || !clients[ch] {
		return
	}
	delete(clients, ch)
	close(ch)
	if len(clients) == 0 {
		delete(eb.clients, runID)
	}
	slog.Debug("SSE client unsubscribed", "run_id", runID)
}

// Broadcast delivers an event to every subscriber of its run. Slow clients
// drop events rather than block the worker. Only running events are kept
// for replay; a terminal event clears the cache, and late subscribers read
// the final state from the run itself.
func (eb *EventBroadcaster) Broadcast(event StepEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if event.State == StateRunning {
		eb.lastEvent[event.RunID] = event
	} else {
		delete(eb.lastEvent, event.RunID)
	}

	for ch := range eb.clients[event.RunID] {
		select {
		case ch <- event:
		default:
			slog.Warn("SSE channel full, skipping event", "run_id", event.RunID)
		}
	}
}

// CleanupRun drops the cached event of a run so a new lifecycle of the
// same id does not replay the previous one.
func (eb *EventBroadcaster) CleanupRun(runID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	delete(eb.lastEvent, runID)
	slog.Debug("Cleaned up SSE cache", "run_id", runID)
}

// cached reports the replay event held for a run.
func (eb *EventBroadcaster) cached(runID string) (StepEvent, bool) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ev, ok := eb.lastEvent[runID]
	return ev, ok
}

// handleRunStream handles GET /api/v1/runs/:id/stream.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request, runID string) {
	if _, exists := s.runManager.GetRun(runID); !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.runManager.broadcaster.Subscribe(runID)
	defer s.runManager.broadcaster.Unsubscribe(runID, events)

	// Snapshot after subscribing so a completion in between is either in
	// the snapshot or in the channel.
	run, _ := s.runManager.GetRun(runID)
	initial := StepEvent{
		RunID: run.ID,
		State: run.State,
		Frame: sim.Frame{
			Iteration: run.Iteration,
			Position:  run.Position,
			Cost:      run.Cost,
		},
		Timestamp: time.Now(),
	}
	if err := writeSSEEvent(w, initial); err != nil {
		slog.Error("Failed to write initial SSE event", "error", err)
		return
	}
	flusher.Flush()

	if run.IsTerminal() {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("SSE client disconnected", "run_id", runID)
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()
			if event.State != StateRunning {
				return
			}

		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an event in SSE "data:" framing.
func writeSSEEvent(w http.ResponseWriter, event StepEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
