package cli

import (
	"path/filepath"

	"ctp/internal/config"
)

// Flags holds command-line flags shared across commands.
type Flags struct {
	Root          string
	CodeceptPath  string
	ReportPath    string
	ReportFormats []string
	ShowOutput    bool
	Verbose       bool
}

// Apply copies parsed flags onto the config.
func (f *Flags) Apply(cfg *config.Config) error {
	if f.Root != "" {
		root := f.Root
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		cfg.WorkspaceRoots = []string{root}
	}
	if f.CodeceptPath != "" {
		cfg.CodeceptPath = f.CodeceptPath
	}
	if f.ReportPath != "" {
		cfg.ReportPath = f.ReportPath
	}
	if len(f.ReportFormats) > 0 {
		formats, err := config.ParseFormats(f.ReportFormats)
		if err != nil {
			return err
		}
		cfg.ReportFormats = formats
	}
	return nil
}
