package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log.WithField("component", "watch")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestMatches(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/ws/tests/unit.suite.yml", true},
		{"/ws/tests/unit/UserTest.php", true},
		{"/ws/tests/acceptance/LoginCest.php", true},
		{"/ws/tests/unit/Helper.php", false},
		{"/ws/tests/_output/report.xml", false},
		{"/ws/src/UserTest.php.bak", false},
	}
	for _, tc := range tests {
		if got := matches(tc.path); got != tc.want {
			t.Errorf("matches(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestWatcher_RebuildOnTestFileChange(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "tests", "unit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create tests dir: %v", err)
	}

	var rebuilds atomic.Int32
	w, err := New(50*time.Millisecond, func() { rebuilds.Add(1) }, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch([]string{root}); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "UserTest.php"), []byte("<?php"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if !waitFor(t, 3*time.Second, func() bool { return rebuilds.Load() >= 1 }) {
		t.Fatal("expected a rebuild after a test file change")
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "tests", "unit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create tests dir: %v", err)
	}

	var rebuilds atomic.Int32
	w, err := New(50*time.Millisecond, func() { rebuilds.Add(1) }, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch([]string{root}); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := rebuilds.Load(); got != 0 {
		t.Errorf("expected no rebuild for unrelated file, got %d", got)
	}
}

func TestWatcher_DebounceCoalescesBursts(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "tests", "unit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create tests dir: %v", err)
	}

	var rebuilds atomic.Int32
	w, err := New(200*time.Millisecond, func() { rebuilds.Add(1) }, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch([]string{root}); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "Burst"+string(rune('A'+i))+"Test.php")
		if err := os.WriteFile(name, []byte("<?php"), 0o644); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if !waitFor(t, 3*time.Second, func() bool { return rebuilds.Load() >= 1 }) {
		t.Fatal("expected a rebuild after the burst")
	}
	time.Sleep(400 * time.Millisecond)
	if got := rebuilds.Load(); got != 1 {
		t.Errorf("expected the burst to coalesce into one rebuild, got %d", got)
	}
}

func TestWatcher_WatchesNewSuiteDirectory(t *testing.T) {
	root := t.TempDir()
	testsDir := filepath.Join(root, "tests")
	if err := os.MkdirAll(testsDir, 0o755); err != nil {
		t.Fatalf("failed to create tests dir: %v", err)
	}

	var rebuilds atomic.Int32
	w, err := New(50*time.Millisecond, func() { rebuilds.Add(1) }, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()
	if err := w.Watch([]string{root}); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	newDir := filepath.Join(testsDir, "api")
	if err := os.Mkdir(newDir, 0o755); err != nil {
		t.Fatalf("failed to create suite dir: %v", err)
	}
	if !waitFor(t, 3*time.Second, func() bool { return rebuilds.Load() >= 1 }) {
		t.Fatal("expected a rebuild after a new suite directory appeared")
	}

	// Files inside the new directory are now watched too.
	before := rebuilds.Load()
	if err := os.WriteFile(filepath.Join(newDir, "PingCest.php"), []byte("<?php"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if !waitFor(t, 3*time.Second, func() bool { return rebuilds.Load() > before }) {
		t.Fatal("expected a rebuild for a file in the new directory")
	}
}
