package ui

import (
	"io"
	"sync"
	"time"

	"ctp/internal/domain"
	"ctp/internal/storage"
)

// ConsoleSink is the host-UI boundary for terminal sessions. It forwards
// runner output verbatim, tracks method-level counters for the progress
// bar and accumulates the run summary that gets persisted afterwards.
type ConsoleSink struct {
	out  io.Writer
	echo bool

	mu        sync.Mutex
	progress  *ProgressBar
	statuses  map[string]domain.Status
	completed int
	passed    int
	failed    int
	skipped   int
	failures  []storage.RunFailure
}

// NewConsoleSink creates a sink writing runner output to out when echo is
// set.
func NewConsoleSink(out io.Writer, echo bool) *ConsoleSink {
	return &ConsoleSink{out: out, echo: echo, statuses: make(map[string]domain.Status)}
}

// SetEcho toggles forwarding of runner output.
func (s *ConsoleSink) SetEcho(echo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echo = echo
}

// SetProgress attaches a progress bar updated on method outcomes.
func (s *ConsoleSink) SetProgress(p *ProgressBar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

// NodeCreated implements domain.RunSink.
func (s *ConsoleSink) NodeCreated(n *domain.TestNode) {}

// NodeRemoved implements domain.RunSink.
func (s *ConsoleSink) NodeRemoved(n *domain.TestNode) {}

// Started implements domain.RunSink.
func (s *ConsoleSink) Started(n *domain.TestNode) {}

// Passed implements domain.RunSink.
func (s *ConsoleSink) Passed(n *domain.TestNode) {
	s.complete(n, domain.StatusPassed)
}

// Failed implements domain.RunSink.
func (s *ConsoleSink) Failed(n *domain.TestNode, message string) {
	s.mu.Lock()
	if message != "" {
		s.failures = append(s.failures, storage.RunFailure{
			Name:    n.Label,
			File:    n.Location.Path,
			Line:    n.Location.Line,
			Message: message,
		})
	}
	s.mu.Unlock()
	s.complete(n, domain.StatusFailed)
}

// Skipped implements domain.RunSink.
func (s *ConsoleSink) Skipped(n *domain.TestNode) {
	s.complete(n, domain.StatusSkipped)
}

// AppendOutput implements domain.RunSink.
func (s *ConsoleSink) AppendOutput(text string) {
	s.mu.Lock()
	echo := s.echo
	s.mu.Unlock()
	if echo && s.out != nil {
		io.WriteString(s.out, text)
	}
}

// RunFinished implements domain.RunSink.
func (s *ConsoleSink) RunFinished() {}

// complete counts terminal outcomes at method granularity; dataset and
// ancestor outcomes roll up into their method. A later record can upgrade
// a method's status (passed → failed), which moves it between counters
// instead of counting it twice.
func (s *ConsoleSink) complete(n *domain.TestNode, st domain.Status) {
	if n.Kind != domain.KindMethod {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.statuses[n.ID]
	if prev == st {
		return
	}
	if prev.Terminal() {
		s.bump(prev, -1)
	} else {
		s.completed++
	}
	s.statuses[n.ID] = st
	s.bump(st, 1)
	if s.progress != nil {
		s.progress.Update(s.completed, s.passed, s.failed)
	}
}

func (s *ConsoleSink) bump(st domain.Status, d int) {
	switch st {
	case domain.StatusPassed:
		s.passed += d
	case domain.StatusFailed:
		s.failed += d
	case domain.StatusSkipped:
		s.skipped += d
	}
}

// Summary snapshots the accumulated run outcome.
func (s *ConsoleSink) Summary(duration time.Duration) *storage.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	failures := make([]storage.RunFailure, len(s.failures))
	copy(failures, s.failures)
	return &storage.RunSummary{
		Meta: storage.RunMeta{
			Total:           s.completed,
			Passed:          s.passed,
			Failed:          s.failed,
			Skipped:         s.skipped,
			Duration:        duration.String(),
			DurationSeconds: duration.Seconds(),
			Timestamp:       time.Now().Format(time.RFC3339),
		},
		Failures: failures,
	}
}
