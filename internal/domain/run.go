package domain

import "context"

// Status is the per-run lifecycle state of a node. Every node touched by a
// run moves not-started → started → one of the terminal states.
type Status int

const (
	StatusNotStarted Status = iota
	StatusStarted
	StatusPassed
	StatusFailed
	StatusSkipped
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusStarted:
		return "started"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final per-run state.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// RunScope selects the tree nodes for one run request. Ctx carries the
// request's cancellation signal; cancellation takes effect at defined
// checkpoints only (before spawn and via the process-kill path).
type RunScope struct {
	NodeIDs []string
	Ctx     context.Context
}

// RunSink is the boundary to the host UI. The core only pushes events
// through it and never reads state back, so implementations are free to
// render, buffer or discard as they see fit.
type RunSink interface {
	NodeCreated(n *TestNode)
	NodeRemoved(n *TestNode)
	Started(n *TestNode)
	Passed(n *TestNode)
	Failed(n *TestNode, message string)
	Skipped(n *TestNode)
	AppendOutput(text string)
	RunFinished()
}
