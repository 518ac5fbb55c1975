package report

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Format is one of the runner's report output formats. Only JUnit and
// PHPUnit reports are machine-parsed; HTML is pass-through for humans.
type Format string

const (
	FormatJUnit   Format = "junit"
	FormatPHPUnit Format = "phpunit"
	FormatHTML    Format = "html"
)

// Flag returns the runner CLI flag enabling the format, or "" for an
// unknown one.
func (f Format) Flag() string {
	switch f {
	case FormatJUnit:
		return "--xml"
	case FormatPHPUnit:
		return "--phpunit-xml"
	case FormatHTML:
		return "--html"
	default:
		return ""
	}
}

const (
	defaultOutputDir  = "tests/_output"
	junitReportFile   = "report.xml"
	phpunitReportFile = "phpunit-report.xml"
	projectConfigFile = "codeception.yml"
)

// Locate resolves the XML report path for a workspace root. An explicit
// override wins (joined to root when relative); otherwise the project
// configuration's declared output directory (default tests/_output) plus
// the conventional file name for the first machine-parseable format. An
// empty result means no XML report is expected and the run resolves on
// exit code alone.
func Locate(root, override string, formats []Format) string {
	if override != "" {
		if filepath.IsAbs(override) {
			return override
		}
		return filepath.Join(root, override)
	}
	out := outputDir(root)
	for _, f := range formats {
		switch f {
		case FormatJUnit:
			return filepath.Join(out, junitReportFile)
		case FormatPHPUnit:
			return filepath.Join(out, phpunitReportFile)
		}
	}
	return ""
}

// Read returns the report body when the file exists and is fresh. A
// report whose modification time predates the run start is stale output
// from an earlier run and is treated exactly like a missing one.
func Read(path string, runStart time.Time) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if info.ModTime().Before(runStart) {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// outputDir reads paths.output from the project configuration file,
// falling back to the conventional default when the file is missing or
// unparseable.
func outputDir(root string) string {
	out := defaultOutputDir
	if data, err := os.ReadFile(filepath.Join(root, projectConfigFile)); err == nil {
		var cfg struct {
			Paths struct {
				Output string `yaml:"output"`
			} `yaml:"paths"`
		}
		if err := yaml.Unmarshal(data, &cfg); err == nil && cfg.Paths.Output != "" {
			out = cfg.Paths.Output
		}
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(root, out)
}
