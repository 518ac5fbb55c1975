package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"ctp/internal/config"
	"ctp/internal/controller"
	"ctp/internal/domain"
	"ctp/internal/storage"
	"ctp/internal/ui"
)

// ListCommand handles the list command.
type ListCommand struct {
	cfg       *config.Config
	ctrl      *controller.Controller
	formatter *ui.Formatter

	suiteFilter string
	showFailed  bool
}

// NewListCommand creates a new ListCommand.
func NewListCommand(cfg *config.Config, ctrl *controller.Controller, formatter *ui.Formatter) *ListCommand {
	return &ListCommand{
		cfg:       cfg,
		ctrl:      ctrl,
		formatter: formatter,
	}
}

// Execute runs the command.
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	if err := lc.ctrl.Activate(context.Background()); err != nil {
		return err
	}
	forest := lc.ctrl.Forest()
	if lc.suiteFilter != "" && !hasSuite(forest, lc.suiteFilter) {
		return fmt.Errorf("no suite named %q", lc.suiteFilter)
	}
	lc.formatter.PrintTree(forest, lc.suiteFilter, lc.lastRunFailures())
	return nil
}

// lastRunFailures marks methods failed in the persisted last run. A
// missing or unreadable summary simply disables the markers.
func (lc *ListCommand) lastRunFailures() map[string]bool {
	if !lc.showFailed {
		return nil
	}
	st := storage.NewJSONStorage(lc.cfg.ResultsPath(lc.cfg.WorkspaceRoots[0]))
	summary, err := st.Load()
	if err != nil {
		return nil
	}
	failed := make(map[string]bool, len(summary.Failures))
	for _, f := range summary.Failures {
		failed[filepath.Base(f.File)+"::"+f.Name] = true
	}
	return failed
}

func hasSuite(forest []*domain.TestNode, suite string) bool {
	for _, project := range forest {
		for _, s := range project.Children() {
			if s.Label == suite {
				return true
			}
		}
	}
	return false
}
