package storage

// RunFailure is one failed node of the last run.
type RunFailure struct {
	Name    string `json:"name"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// RunMeta contains metadata about one run.
type RunMeta struct {
	Total           int     `json:"total"`
	Passed          int     `json:"passed"`
	Failed          int     `json:"failed"`
	Skipped         int     `json:"skipped"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// RunSummary is the persisted outcome of the last run (e.g. for the
// failures viewer).
type RunSummary struct {
	Meta     RunMeta      `json:"meta"`
	Failures []RunFailure `json:"failures"`
}

// Storage persists and loads run summaries.
type Storage interface {
	Save(summary *RunSummary) error
	Load() (*RunSummary, error)
}
