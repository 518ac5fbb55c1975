package commands

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ctp/internal/cli"
	"ctp/internal/config"
	"ctp/internal/controller"
	"ctp/internal/discovery"
	"ctp/internal/execution"
	"ctp/internal/ui"
)

// Commands holds all CLI commands.
type Commands struct {
	Run      *RunCommand
	List     *ListCommand
	Watch    *WatchCommand
	Failures *FailuresCommand
}

// NewCommands creates all commands with dependencies.
func NewCommands(cfg *config.Config) *Commands {
	scanner := discovery.NewScanner()
	builder := discovery.NewBuilder(scanner)
	resolver := execution.NewResolver()
	runner := execution.NewRunner(logrus.WithField("component", "runner"))
	sink := ui.NewConsoleSink(os.Stdout, false)
	ctrl := controller.New(cfg, builder, resolver, runner, sink, logrus.WithField("component", "controller"))
	formatter := ui.NewFormatter()
	viewer := ui.NewFailureViewer()

	return &Commands{
		Run:      NewRunCommand(cfg, ctrl, sink, formatter),
		List:     NewListCommand(cfg, ctrl, formatter),
		Watch:    NewWatchCommand(cfg, ctrl, logrus.WithField("component", "watch")),
		Failures: NewFailuresCommand(cfg, viewer),
	}
}

// Register registers all commands with cobra.
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	applyFlags := func(cmd *cobra.Command, args []string) error {
		return flags.Apply(cfg)
	}

	runCmd := &cobra.Command{
		Use:     "run [suite [file[:method]]]",
		Short:   "Run tests and reconcile the report onto the tree",
		Long:    "Discover the test tree, run the selected scope through the codecept binary and reconcile the XML report back onto the originating nodes.",
		Args:    cobra.MaximumNArgs(2),
		RunE:    c.Run.Execute,
		PreRunE: applyFlags,
	}
	runCmd.Flags().BoolVarP(&flags.ShowOutput, "output", "o", false, "Echo the runner's output instead of showing a progress bar")
	runCmd.Flags().StringVar(&flags.ReportPath, "report-path", "", "Override the XML report file the runner produces")
	runCmd.Flags().StringSliceVar(&flags.ReportFormats, "report-formats", nil, "Report formats to request (junit, phpunit, html)")
	rootCmd.AddCommand(runCmd)

	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List the discovered test tree",
		Long:    "Discover suites, test files and methods and print them as a tree without executing anything.",
		RunE:    c.List.Execute,
		PreRunE: applyFlags,
	}
	listCmd.Flags().StringVarP(&c.List.suiteFilter, "suite", "s", "", "Only print the suite with this name")
	listCmd.Flags().BoolVar(&c.List.showFailed, "failed", false, "Mark methods that failed in the last run")
	rootCmd.AddCommand(listCmd)

	watchCmd := &cobra.Command{
		Use:     "watch",
		Short:   "Rebuild the test tree on file changes",
		Long:    "Watch suite definitions and test sources, coalescing bursts of changes into one debounced rebuild.",
		RunE:    c.Watch.Execute,
		PreRunE: applyFlags,
	}
	rootCmd.AddCommand(watchCmd)

	failuresCmd := &cobra.Command{
		Use:     "failures",
		Short:   "View the last run's failures interactively",
		RunE:    c.Failures.Execute,
		PreRunE: applyFlags,
	}
	rootCmd.AddCommand(failuresCmd)

	rootCmd.PersistentFlags().StringVarP(&flags.Root, "root", "r", "", "Workspace root (defaults to the current directory)")
	rootCmd.PersistentFlags().StringVar(&flags.CodeceptPath, "codecept-path", "", "Override the codecept executable")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")
}
