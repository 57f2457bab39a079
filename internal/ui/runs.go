// Package ui holds the HTML components served at the root of the server.
//
// Components are written in .templ files; run `templ generate` after
// editing them.
package ui

import "time"

// RunListItem is the view model for one row of the run table.
type RunListItem struct {
	ID        string
	State     string
	Function  string
	Algorithm string
	Iteration int
	X, Y      float64
	Cost      float64
	StartTime time.Time
	EndTime   *time.Time
	Error     string
}

func plotURL(id string) string {
	return "/api/v1/runs/" + id + "/plot.png"
}

func stateLabel(it RunListItem) string {
	if it.Error != "" {
		return it.State + ": " + it.Error
	}
	return it.State
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
