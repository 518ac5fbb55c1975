package ui

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"ctp/internal/storage"
)

// FailureViewer displays the last run's failures in an interactive TUI:
// failed tests on the left, the selected failure's message on the right.
type FailureViewer struct{}

// NewFailureViewer creates a new FailureViewer.
func NewFailureViewer() *FailureViewer {
	return &FailureViewer{}
}

// View displays the summary's failures. A clean run prints a one-liner
// instead of opening the TUI.
func (v *FailureViewer) View(summary *storage.RunSummary) error {
	if len(summary.Failures) == 0 {
		color.Green("✓ No test failures in the last run")
		return nil
	}

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	list.SetBorder(true).SetTitle(fmt.Sprintf(" Failures (%d) ", len(summary.Failures)))
	list.SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan)

	details := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)
	details.SetBorder(true).SetTitle(" Details ")

	show := func(index int) {
		if index < 0 || index >= len(summary.Failures) {
			return
		}
		failure := summary.Failures[index]
		location := failure.File
		if failure.Line > 0 {
			location = fmt.Sprintf("%s:%d", failure.File, failure.Line)
		}
		details.SetText(fmt.Sprintf("[yellow]%s[white]\n[gray]%s[white]\n\n%s",
			tview.Escape(failure.Name), tview.Escape(location), tview.Escape(failure.Message)))
		details.ScrollToBeginning()
	}

	for i, failure := range summary.Failures {
		list.AddItem(fmt.Sprintf("[yellow]%d.[white] %s", i+1, tview.Escape(failure.Name)), "", 0, nil)
	}
	list.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		show(index)
	})
	show(0)

	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(details, 0, 2, false)

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch {
		case ev.Key() == tcell.KeyEscape, ev.Rune() == 'q':
			app.Stop()
			return nil
		case ev.Key() == tcell.KeyTab:
			if list.HasFocus() {
				app.SetFocus(details)
			} else {
				app.SetFocus(list)
			}
			return nil
		}
		return ev
	})

	return app.SetRoot(flex, true).Run()
}
