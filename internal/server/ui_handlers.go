package server

import (
	"net/http"

	"github.com/cwbudde/optvis/internal/ui"
)

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	runs := s.runManager.ListRuns()
	items := make([]ui.RunListItem, len(runs))
	for i, run := range runs {
		items[i] = ui.RunListItem{
			ID:        run.ID,
			State:     string(run.State),
			Function:  run.Config.Function,
			Algorithm: string(run.Config.Algorithm),
			Iteration: run.Iteration,
			X:         run.Position.X,
			Y:         run.Position.Y,
			Cost:      run.Cost,
			StartTime: run.StartTime,
			EndTime:   run.EndTime,
			Error:     run.Error,
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.RunList(items).Render(r.Context(), w); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
