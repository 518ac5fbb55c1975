package commands

import (
	"github.com/spf13/cobra"

	"ctp/internal/config"
	"ctp/internal/storage"
	"ctp/internal/ui"
)

// FailuresCommand handles the failures command.
type FailuresCommand struct {
	cfg    *config.Config
	viewer ui.Viewer
}

// NewFailuresCommand creates a new FailuresCommand.
func NewFailuresCommand(cfg *config.Config, viewer ui.Viewer) *FailuresCommand {
	return &FailuresCommand{cfg: cfg, viewer: viewer}
}

// Execute runs the command.
func (fc *FailuresCommand) Execute(cmd *cobra.Command, args []string) error {
	st := storage.NewJSONStorage(fc.cfg.ResultsPath(fc.cfg.WorkspaceRoots[0]))
	summary, err := st.Load()
	if err != nil {
		return err
	}
	return fc.viewer.View(summary)
}
