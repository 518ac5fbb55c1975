package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"ctp/internal/discovery"
)

// patterns select the file-system events worth a rebuild: suite
// definitions and test sources.
var patterns = []string{
	"**/*" + discovery.SuiteFileSuffix,
	"**/*Test.php",
	"**/*Cest.php",
}

// Watcher watches workspace tests trees and schedules a debounced rebuild
// on matching changes. The deferred rebuild is single-slot: scheduling
// while one is pending cancels and replaces it, so a burst of events (one
// save-all touching many files) coalesces into one rebuild after the
// quiet period.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	log      *logrus.Entry

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a Watcher that invokes onChange after debounce of quiet.
func New(debounce time.Duration, onChange func(), log *logrus.Entry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fsw,
		debounce: debounce,
		onChange: onChange,
		log:      log,
	}
	go w.loop()
	return w, nil
}

// Watch registers the tests directory of each workspace root,
// recursively. Roots without one are skipped.
func (w *Watcher) Watch(roots []string) error {
	for _, root := range roots {
		testsDir := filepath.Join(root, discovery.TestsDir)
		if info, err := os.Stat(testsDir); err != nil || !info.IsDir() {
			continue
		}
		err := filepath.WalkDir(testsDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				return w.fs.Add(path)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close stops the watcher and cancels any pending rebuild.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	return w.fs.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("file watch error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// New suite directory: watch it and rebuild.
			if err := w.fs.Add(ev.Name); err != nil {
				w.log.WithError(err).WithField("dir", ev.Name).Warn("could not watch new directory")
			}
			w.schedule()
			return
		}
	}
	if !matches(ev.Name) {
		return
	}
	w.schedule()
}

func matches(path string) bool {
	p := filepath.ToSlash(path)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

// schedule resets the single-slot deferred rebuild.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}
