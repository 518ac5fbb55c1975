package config

import (
	"time"

	"ctp/internal/report"
)

const (
	// DefaultDebounce is the quiet period coalescing bursts of file-watch
	// events into one rebuild.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultResultsFile is where the last run summary is persisted,
	// relative to the runner's output directory.
	DefaultResultsFile = "ctp-results.json"
)

// DefaultReportFormats is the report set requested when none is
// configured.
var DefaultReportFormats = []report.Format{report.FormatJUnit}
