package controller

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ctp/internal/config"
	"ctp/internal/discovery"
	"ctp/internal/domain"
	"ctp/internal/execution"
	"ctp/internal/reconcile"
	"ctp/internal/report"
)

// Controller owns the single in-memory forest for its lifetime and
// serializes everything that touches it: rebuilds replace the whole
// structure (old nodes removed before new ones appear) and queued run
// roots execute strictly one after another, each fully started, executed
// and reconciled before the next begins.
type Controller struct {
	cfg      *config.Config
	builder  *discovery.Builder
	resolver *execution.Resolver
	runner   *execution.Runner
	sink     domain.RunSink
	log      *logrus.Entry

	mu     sync.Mutex
	forest []*domain.TestNode
}

// New creates a Controller. It owns no tree until Activate.
func New(cfg *config.Config, builder *discovery.Builder, resolver *execution.Resolver, runner *execution.Runner, sink domain.RunSink, log *logrus.Entry) *Controller {
	return &Controller{
		cfg:      cfg,
		builder:  builder,
		resolver: resolver,
		runner:   runner,
		sink:     sink,
		log:      log,
	}
}

// Activate builds the initial tree.
func (c *Controller) Activate(ctx context.Context) error {
	return c.Rebuild(ctx)
}

// Rebuild discards and reconstructs the whole forest. Dataset nodes are
// preserved across rebuilds: they are collected by method id beforehand
// and re-attached to methods that still exist afterwards, so results of
// parameterized runs survive a source save.
func (c *Controller) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	preserved := c.collectDatasets()
	for _, project := range c.forest {
		c.sink.NodeRemoved(project)
	}
	c.forest = nil

	forest, err := c.builder.Build(ctx, c.cfg.WorkspaceRoots)
	if err != nil {
		return fmt.Errorf("discover tests: %w", err)
	}
	c.forest = forest
	c.reattachDatasets(preserved)

	total := 0
	for _, project := range c.forest {
		project.Walk(func(n *domain.TestNode) {
			c.sink.NodeCreated(n)
			if n.Kind == domain.KindMethod {
				total++
			}
		})
	}
	c.log.WithFields(logrus.Fields{
		"projects": len(c.forest),
		"methods":  total,
	}).Debug("test tree rebuilt")
	return nil
}

func (c *Controller) collectDatasets() map[string][]*domain.TestNode {
	preserved := make(map[string][]*domain.TestNode)
	for _, project := range c.forest {
		project.Walk(func(n *domain.TestNode) {
			if n.Kind != domain.KindMethod {
				return
			}
			for _, child := range n.Children() {
				if child.Kind == domain.KindDataset {
					preserved[n.ID] = append(preserved[n.ID], child)
				}
			}
		})
	}
	return preserved
}

func (c *Controller) reattachDatasets(preserved map[string][]*domain.TestNode) {
	if len(preserved) == 0 {
		return
	}
	for _, project := range c.forest {
		project.Walk(func(n *domain.TestNode) {
			if n.Kind != domain.KindMethod {
				return
			}
			for _, dataset := range preserved[n.ID] {
				n.AddChild(dataset)
			}
		})
	}
}

// Forest returns the current project nodes in order.
func (c *Controller) Forest() []*domain.TestNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.TestNode, len(c.forest))
	copy(out, c.forest)
	return out
}

// NodeByID finds a node anywhere in the forest.
func (c *Controller) NodeByID(id string) *domain.TestNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeByID(id)
}

func (c *Controller) nodeByID(id string) *domain.TestNode {
	var found *domain.TestNode
	for _, project := range c.forest {
		project.Walk(func(n *domain.TestNode) {
			if found == nil && n.ID == id {
				found = n
			}
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// ResolveSelector maps CLI selector args to run-root node ids: no args
// selects every project, one arg a suite, two args a file within a suite,
// with an optional ":method" suffix on the file.
func (c *Controller) ResolveSelector(args []string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(args) == 0 {
		var ids []string
		for _, project := range c.forest {
			ids = append(ids, project.ID)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("no test tree discovered")
		}
		return ids, nil
	}

	suiteName := args[0]
	var suites []*domain.TestNode
	for _, project := range c.forest {
		for _, suite := range project.Children() {
			if suite.Label == suiteName {
				suites = append(suites, suite)
			}
		}
	}
	if len(suites) == 0 {
		return nil, fmt.Errorf("unknown suite %q", suiteName)
	}
	if len(args) == 1 {
		var ids []string
		for _, suite := range suites {
			ids = append(ids, suite.ID)
		}
		return ids, nil
	}

	fileName, methodName, _ := strings.Cut(args[1], ":")
	for _, suite := range suites {
		for _, file := range suite.Children() {
			if file.Label != fileName && filepath.Base(file.Location.Path) != fileName {
				continue
			}
			if methodName == "" {
				return []string{file.ID}, nil
			}
			for _, method := range file.Children() {
				if method.Label == methodName {
					return []string{method.ID}, nil
				}
			}
			return nil, fmt.Errorf("unknown method %q in %s", methodName, file.Label)
		}
	}
	return nil, fmt.Errorf("unknown test file %q in suite %q", fileName, suiteName)
}

// Run executes the scoped nodes sequentially, reconciling each item's
// report before the next item starts.
func (c *Controller) Run(scope domain.RunScope) error {
	ctx := scope.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range scope.NodeIDs {
		node := c.nodeByID(id)
		if node == nil {
			return fmt.Errorf("unknown test node %q", id)
		}
		c.runOne(ctx, node)
	}
	return nil
}

func (c *Controller) runOne(ctx context.Context, root *domain.TestNode) {
	rec := reconcile.New(c.forest, root, c.sink)
	rec.Begin()
	defer c.sink.RunFinished()

	// Cancellation checkpoint before spawn: the command is never invoked.
	if ctx.Err() != nil {
		rec.Cancel()
		return
	}

	wsRoot := c.workspaceRoot(root)
	command := c.resolver.Resolve(wsRoot, c.cfg.CodeceptPath)
	args := c.runArgs(root, wsRoot)
	c.log.WithFields(logrus.Fields{
		"node":    root.ID,
		"command": command,
		"args":    strings.Join(args, " "),
	}).Info("starting test run")

	start := time.Now()
	exit := c.runner.Run(ctx, command, args, wsRoot, c.sink.AppendOutput)
	if exit == execution.ExitCancelled {
		rec.Cancel()
		return
	}

	records, reportMissing := c.records(wsRoot, start)
	for _, record := range records {
		rec.Apply(record)
	}
	rec.Finish(exit, reportMissing)
}

// records loads and parses the run's report. A missing or stale report is
// reported as such; an empty body parses to zero records. Either way the
// run still resolves, on the exit code alone.
func (c *Controller) records(wsRoot string, start time.Time) ([]domain.TestCaseRecord, bool) {
	path := report.Locate(wsRoot, c.cfg.ReportPath, c.cfg.ReportFormats)
	if path == "" {
		return nil, false
	}
	data, ok := report.Read(path, start)
	if !ok {
		c.log.WithField("path", path).Debug("report missing or stale, resolving on exit code")
		return nil, true
	}
	return report.Parse(data), false
}

func (c *Controller) workspaceRoot(node *domain.TestNode) string {
	for n := node; n != nil; n = n.Parent() {
		if n.Kind == domain.KindProject {
			return n.Location.Path
		}
	}
	return "."
}

// runArgs builds the runner invocation for a run root. A dataset node
// runs its parent method, since the runner cannot select a single data
// set.
func (c *Controller) runArgs(node *domain.TestNode, wsRoot string) []string {
	target := node
	if target.Kind == domain.KindDataset {
		target = target.Parent()
	}

	args := []string{"run"}
	switch target.Kind {
	case domain.KindSuite:
		args = append(args, target.Label)
	case domain.KindFile:
		args = append(args, suiteOf(target).Label, relPath(wsRoot, target.Location.Path))
	case domain.KindMethod:
		file := target.Parent()
		args = append(args, suiteOf(target).Label, relPath(wsRoot, file.Location.Path)+":"+target.Label)
	}
	args = append(args, "--no-interaction")
	for _, f := range c.cfg.ReportFormats {
		if flag := f.Flag(); flag != "" {
			args = append(args, flag)
		}
	}
	return args
}

func suiteOf(node *domain.TestNode) *domain.TestNode {
	for n := node; n != nil; n = n.Parent() {
		if n.Kind == domain.KindSuite {
			return n
		}
	}
	return node
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
