package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ctp/internal/config"
	"ctp/internal/controller"
	"ctp/internal/watch"
)

// WatchCommand handles the watch command.
type WatchCommand struct {
	cfg  *config.Config
	ctrl *controller.Controller
	log  *logrus.Entry
}

// NewWatchCommand creates a new WatchCommand.
func NewWatchCommand(cfg *config.Config, ctrl *controller.Controller, log *logrus.Entry) *WatchCommand {
	return &WatchCommand{cfg: cfg, ctrl: ctrl, log: log}
}

// Execute runs the command until interrupted.
func (wc *WatchCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := wc.ctrl.Activate(ctx); err != nil {
		return err
	}

	watcher, err := watch.New(wc.cfg.Debounce, func() {
		if err := wc.ctrl.Rebuild(context.Background()); err != nil {
			wc.log.WithError(err).Warn("rebuild failed")
			return
		}
		wc.log.Info("test tree rebuilt")
	}, wc.log)
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Watch(wc.cfg.WorkspaceRoots); err != nil {
		return err
	}

	color.White("Watching for test changes. Press Ctrl+C to stop.")
	<-ctx.Done()
	return nil
}
