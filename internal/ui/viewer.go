package ui

import "ctp/internal/storage"

// Viewer displays a run summary in an interactive TUI.
type Viewer interface {
	View(summary *storage.RunSummary) error
}
