package ui

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"

	"ctp/internal/domain"
	"ctp/internal/storage"
)

// Formatter renders the test tree and run summaries on the console.
type Formatter struct{}

// NewFormatter creates a new Formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// PrintTree prints the discovered forest, one project per block. A
// non-empty suiteFilter restricts output to suites with that label.
// Methods whose key (file basename + "::" + label) appears in failed are
// marked.
func (f *Formatter) PrintTree(forest []*domain.TestNode, suiteFilter string, failed map[string]bool) {
	for _, project := range forest {
		color.White("%s", project.Label)
		suites := project.Children()
		if suiteFilter != "" {
			var kept []*domain.TestNode
			for _, suite := range suites {
				if suite.Label == suiteFilter {
					kept = append(kept, suite)
				}
			}
			suites = kept
		}
		for i, suite := range suites {
			last := i == len(suites)-1
			label := suite.Label
			if suite.Description != "" {
				label = fmt.Sprintf("%s (%s)", suite.Label, suite.Description)
			}
			color.Cyan("%s%s", branch("", last), label)
			f.printFiles(suite, childPrefix("", last), failed)
		}
	}
}

func (f *Formatter) printFiles(suite *domain.TestNode, prefix string, failed map[string]bool) {
	files := suite.Children()
	for i, file := range files {
		last := i == len(files)-1
		color.Yellow("%s%s", branch(prefix, last), file.Label)
		methods := file.Children()
		for j, method := range methods {
			lastMethod := j == len(methods)-1
			line := branch(childPrefix(prefix, last), lastMethod)
			if failed[filepath.Base(file.Location.Path)+"::"+method.Label] {
				fmt.Printf("%s%s %s\n", line, method.Label, color.RedString("✗"))
				continue
			}
			fmt.Printf("%s%s\n", line, method.Label)
		}
	}
}

func branch(prefix string, last bool) string {
	if last {
		return prefix + "└── "
	}
	return prefix + "├── "
}

func childPrefix(prefix string, last bool) string {
	if last {
		return prefix + "    "
	}
	return prefix + "│   "
}

// PrintSummary prints the outcome of a finished run.
func (f *Formatter) PrintSummary(summary *storage.RunSummary) {
	meta := summary.Meta
	fmt.Println()
	if meta.Failed == 0 {
		color.Green("✓ %d passed, %d skipped (%s)", meta.Passed, meta.Skipped, meta.Duration)
		return
	}
	color.Red("✗ %d failed, %d passed, %d skipped (%s)", meta.Failed, meta.Passed, meta.Skipped, meta.Duration)
	for _, failure := range summary.Failures {
		fmt.Println()
		if failure.Line > 0 {
			color.Red("  %s (%s:%d)", failure.Name, failure.File, failure.Line)
		} else if failure.File != "" {
			color.Red("  %s (%s)", failure.Name, failure.File)
		} else {
			color.Red("  %s", failure.Name)
		}
		if failure.Message != "" {
			fmt.Printf("    %s\n", failure.Message)
		}
	}
}
