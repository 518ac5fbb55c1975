package execution

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// ExitCancelled is the sentinel exit code reported when a run was
	// stopped by its cancellation signal (the conventional "terminated by
	// interrupt" value).
	ExitCancelled = 130

	// exitSpawnFailure is reported when the process cannot be started at
	// all, so the caller's control flow stays uniform.
	exitSpawnFailure = 1

	// killGracePeriod is how long a cancelled process gets to exit after
	// SIGTERM before the whole group is SIGKILLed.
	killGracePeriod = 2 * time.Second
)

// Runner spawns the external test runner in its own process group,
// streams its combined output and resolves with the exit code.
type Runner struct {
	log *logrus.Entry
}

// NewRunner creates a new Runner.
func NewRunner(log *logrus.Entry) *Runner {
	return &Runner{log: log}
}

// Run executes command with args in dir, inheriting the ambient
// environment. Combined stdout+stderr is forwarded incrementally to
// onOutput with line endings normalized to "\n" (the consuming panel
// renders literally). The returned exit code is never accompanied by an
// error: spawn failures map to a generic non-zero code and cancellation
// to ExitCancelled.
func (r *Runner) Run(ctx context.Context, command string, args []string, dir string, onOutput func(string)) int {
	if ctx.Err() != nil {
		return ExitCancelled
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	// Own process group so cancellation reaches the runner's children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw, err := os.Pipe()
	if err != nil {
		r.log.WithError(err).Warn("could not create output pipe")
		return exitSpawnFailure
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		r.log.WithError(err).WithField("command", command).Warn("could not start test runner")
		return exitSpawnFailure
	}
	pw.Close()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer pr.Close()
		var norm crlfNormalizer
		buf := make([]byte, 4096)
		for {
			n, err := pr.Read(buf)
			if n > 0 && onOutput != nil {
				if chunk := norm.normalize(string(buf[:n])); chunk != "" {
					onOutput(chunk)
				}
			}
			if err != nil {
				if tail := norm.flush(); tail != "" && onOutput != nil {
					onOutput(tail)
				}
				return
			}
		}
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var cancelled bool
	var werr error
	select {
	case werr = <-waitErr:
	case <-ctx.Done():
		cancelled = true
		r.signalGroup(cmd, syscall.SIGTERM)
		select {
		case werr = <-waitErr:
		case <-time.After(killGracePeriod):
			r.signalGroup(cmd, syscall.SIGKILL)
			werr = <-waitErr
		}
	}
	<-readDone

	if cancelled {
		return ExitCancelled
	}
	if werr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(werr, &exitErr) {
		return exitErr.ExitCode()
	}
	r.log.WithError(werr).Warn("test runner did not resolve cleanly")
	return exitSpawnFailure
}

func (r *Runner) signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		cmd.Process.Signal(sig)
		return
	}
	syscall.Kill(-pgid, sig)
}

// crlfNormalizer rewrites \r\n and bare \r to \n across chunk boundaries.
type crlfNormalizer struct {
	pendingCR bool
}

func (c *crlfNormalizer) normalize(chunk string) string {
	if chunk == "" {
		return ""
	}
	var b strings.Builder
	if c.pendingCR {
		b.WriteByte('\n')
		c.pendingCR = false
		if chunk[0] == '\n' {
			chunk = chunk[1:]
		}
	}
	if strings.HasSuffix(chunk, "\r") {
		c.pendingCR = true
		chunk = chunk[:len(chunk)-1]
	}
	chunk = strings.ReplaceAll(chunk, "\r\n", "\n")
	chunk = strings.ReplaceAll(chunk, "\r", "\n")
	b.WriteString(chunk)
	return b.String()
}

// flush emits the newline for a trailing \r once the stream ends.
func (c *crlfNormalizer) flush() string {
	if c.pendingCR {
		c.pendingCR = false
		return "\n"
	}
	return ""
}
