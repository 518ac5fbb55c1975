package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ctp/internal/config"
	"ctp/internal/controller"
	"ctp/internal/domain"
	"ctp/internal/storage"
	"ctp/internal/ui"
)

// RunCommand handles the run command.
type RunCommand struct {
	cfg       *config.Config
	ctrl      *controller.Controller
	sink      *ui.ConsoleSink
	formatter *ui.Formatter
}

// NewRunCommand creates a new RunCommand.
func NewRunCommand(cfg *config.Config, ctrl *controller.Controller, sink *ui.ConsoleSink, formatter *ui.Formatter) *RunCommand {
	return &RunCommand{
		cfg:       cfg,
		ctrl:      ctrl,
		sink:      sink,
		formatter: formatter,
	}
}

// Execute runs the command. Ctrl+C cancels the run; the external process
// group gets SIGTERM and started nodes resolve skipped.
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rc.ctrl.Activate(ctx); err != nil {
		return err
	}
	ids, err := rc.ctrl.ResolveSelector(args)
	if err != nil {
		return err
	}

	showOutput, _ := cmd.Flags().GetBool("output")
	rc.sink.SetEcho(showOutput)
	var bar *ui.ProgressBar
	if !showOutput {
		if total := rc.countMethods(ids); total > 0 {
			bar = ui.NewProgressBar(total)
			rc.sink.SetProgress(bar)
		}
	}

	start := time.Now()
	if err := rc.ctrl.Run(domain.RunScope{NodeIDs: ids, Ctx: ctx}); err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
	}

	summary := rc.sink.Summary(time.Since(start))
	st := storage.NewJSONStorage(rc.cfg.ResultsPath(rc.cfg.WorkspaceRoots[0]))
	if err := st.Save(summary); err != nil {
		logrus.WithError(err).Warn("could not persist run summary")
	}
	rc.formatter.PrintSummary(summary)

	if summary.Meta.Failed > 0 {
		return fmt.Errorf("%d test(s) failed", summary.Meta.Failed)
	}
	return nil
}

func (rc *RunCommand) countMethods(ids []string) int {
	total := 0
	for _, id := range ids {
		node := rc.ctrl.NodeByID(id)
		if node == nil {
			continue
		}
		node.Walk(func(n *domain.TestNode) {
			if n.Kind == domain.KindMethod {
				total++
			}
		})
	}
	return total
}
