package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"ctp/internal/report"
)

// Config holds all configuration for the controller, scoped to the
// workspace roots it was created for.
type Config struct {
	// WorkspaceRoots are the directories whose tests trees are discovered.
	WorkspaceRoots []string

	// CodeceptPath overrides the resolved executable; empty means prefer
	// the vendored binary, then PATH.
	CodeceptPath string

	// ReportPath overrides the resolved XML result file.
	ReportPath string

	// ReportFormats are the formats requested from the runner; only junit
	// and phpunit are machine-parsed.
	ReportFormats []report.Format

	// Debounce is the file-watch quiet period before a rebuild.
	Debounce time.Duration
}

type envOverrides struct {
	CodeceptPath  string   `envconfig:"CODECEPT_PATH"`
	ReportPath    string   `envconfig:"REPORT_PATH"`
	ReportFormats []string `envconfig:"REPORT_FORMATS"`
}

// New creates a Config with defaults, rooted at the current directory.
func New() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	formats := make([]report.Format, len(DefaultReportFormats))
	copy(formats, DefaultReportFormats)
	return &Config{
		WorkspaceRoots: []string{cwd},
		ReportFormats:  formats,
		Debounce:       DefaultDebounce,
	}
}

// Load builds a Config from defaults, an optional .env file and CTP_*
// environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()
	var env envOverrides
	if err := envconfig.Process("ctp", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if env.CodeceptPath != "" {
		cfg.CodeceptPath = env.CodeceptPath
	}
	if env.ReportPath != "" {
		cfg.ReportPath = env.ReportPath
	}
	if len(env.ReportFormats) > 0 {
		formats, err := ParseFormats(env.ReportFormats)
		if err != nil {
			return nil, err
		}
		cfg.ReportFormats = formats
	}
	return cfg, nil
}

// ParseFormats converts format names into report formats, rejecting
// unknown ones.
func ParseFormats(names []string) ([]report.Format, error) {
	var formats []report.Format
	for _, name := range names {
		switch report.Format(name) {
		case report.FormatJUnit, report.FormatPHPUnit, report.FormatHTML:
			formats = append(formats, report.Format(name))
		default:
			return nil, fmt.Errorf("unknown report format %q (want junit, phpunit or html)", name)
		}
	}
	return formats, nil
}

// ResultsPath returns where the last run summary is stored for a
// workspace root (under the runner's output directory so run and
// failures always share the same file).
func (c *Config) ResultsPath(root string) string {
	p := filepath.Join(root, "tests", "_output", DefaultResultsFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
