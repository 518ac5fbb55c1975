package reconcile

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"ctp/internal/domain"
	"ctp/internal/report"
)

// Reconciler folds one run's report records back onto the test tree. One
// instance serves exactly one run: Begin marks the scope started, Apply
// consumes records one by one as a running fold (later records can
// upgrade an ancestor from skipped/passed to failed), and Finish or
// Cancel drives every started node to a terminal state.
type Reconciler struct {
	forest []*domain.TestNode
	root   *domain.TestNode
	sink   domain.RunSink

	started      map[string]bool
	startedOrder []*domain.TestNode
	status       map[string]domain.Status
	sawFailure   bool

	// Methods that resolved through dataset children this run; they are
	// re-resolved from those children during Finish.
	touched      map[string]*domain.TestNode
	touchedOrder []string
}

// New creates a Reconciler for one run rooted at root. Matching runs
// against the full forest, not just the run's subtree, because a
// project-level run reports workspace-wide.
func New(forest []*domain.TestNode, root *domain.TestNode, sink domain.RunSink) *Reconciler {
	return &Reconciler{
		forest:  forest,
		root:    root,
		sink:    sink,
		started: make(map[string]bool),
		status:  make(map[string]domain.Status),
		touched: make(map[string]*domain.TestNode),
	}
}

// Begin marks the run root's ancestor chain and its full descendant set
// started, before any record is processed. This shows the scope as
// running immediately and guarantees every touched node reaches a
// terminal state even if the report never mentions it.
func (r *Reconciler) Begin() {
	ancestors := r.root.Ancestors()
	for i := len(ancestors) - 1; i >= 0; i-- {
		r.start(ancestors[i])
	}
	r.root.Walk(r.start)
}

// Apply matches one record to a node, marks its outcome and folds it onto
// every ancestor up to and including the run root.
func (r *Reconciler) Apply(rec domain.TestCaseRecord) {
	st := statusFor(rec.Outcome)
	if st == domain.StatusFailed {
		r.sawFailure = true
	}
	r.record(r.resolve(rec), st, rec.Message)
}

// Cancel resolves every still-running node as skipped. No record
// processing happens on a cancelled run.
func (r *Reconciler) Cancel() {
	r.finalize()
}

// Finish completes the run: parameterized methods are re-resolved from
// their dataset children, the exit-code policy is applied, and every node
// that was started but never received an outcome resolves as skipped
// (tests the runner filtered out must not stay running forever).
// reportMissing says a machine-parseable report was configured but the
// file was absent or stale; a clean exit then still fails the run root,
// because the verdict cannot be trusted without the report it promised.
func (r *Reconciler) Finish(exitCode int, reportMissing bool) {
	for _, id := range r.touchedOrder {
		method := r.touched[id]
		agg := domain.StatusNotStarted
		for _, c := range method.Children() {
			if c.Kind != domain.KindDataset {
				continue
			}
			agg = foldStatus(agg, r.status[c.ID])
		}
		if agg.Terminal() {
			r.record(method, agg, "")
		}
	}

	switch {
	// A crash or fatal error can exit non-zero without producing a single
	// per-test failure record; the run root carries the verdict then.
	case exitCode != 0 && !r.sawFailure:
		r.mark(r.root, domain.StatusFailed, fmt.Sprintf("Test run failed with exit code %d", exitCode))
	case exitCode == 0 && !r.status[r.root.ID].Terminal():
		if reportMissing {
			r.mark(r.root, domain.StatusFailed, "Test run exited cleanly but the configured XML report was not produced")
		} else {
			r.mark(r.root, domain.StatusPassed, "")
		}
	}

	r.finalize()
}

// StatusOf returns the current per-run state of a node id.
func (r *Reconciler) StatusOf(id string) domain.Status {
	return r.status[id]
}

func (r *Reconciler) start(n *domain.TestNode) {
	if r.started[n.ID] {
		return
	}
	r.started[n.ID] = true
	r.startedOrder = append(r.startedOrder, n)
	r.status[n.ID] = domain.StatusStarted
	r.sink.Started(n)
}

func (r *Reconciler) finalize() {
	for _, n := range r.startedOrder {
		if !r.status[n.ID].Terminal() {
			r.mark(n, domain.StatusSkipped, "")
		}
	}
}

// record marks n and folds the outcome onto its ancestors, stopping once
// the run root has been included. A node matched outside the run subtree
// folds up to its own forest root instead.
func (r *Reconciler) record(n *domain.TestNode, st domain.Status, msg string) {
	r.mark(n, st, msg)
	if n == r.root {
		return
	}
	for a := n.Parent(); a != nil; a = a.Parent() {
		r.mark(a, st, "")
		if a == r.root {
			return
		}
	}
}

func (r *Reconciler) mark(n *domain.TestNode, st domain.Status, msg string) {
	cur := r.status[n.ID]
	next := foldStatus(cur, st)
	if next == cur {
		return
	}
	r.status[n.ID] = next
	switch next {
	case domain.StatusPassed:
		r.sink.Passed(n)
	case domain.StatusFailed:
		r.sink.Failed(n, msg)
	case domain.StatusSkipped:
		r.sink.Skipped(n)
	}
}

// resolve finds the tree node a record belongs to: file by path (exact,
// then basename), method by label (verbatim, then with the data-set
// suffix stripped), dataset child located or lazily created. With no
// file or method match the record attributes to the file node or,
// failing that, the run root; it is never dropped.
func (r *Reconciler) resolve(rec domain.TestCaseRecord) *domain.TestNode {
	file := r.findFile(rec.File)
	if file == nil {
		return r.root
	}
	method := findMethod(file, rec.Name)
	if method == nil {
		return file
	}
	if desc, ok := report.DataSetDescription(rec.Feature); ok {
		return r.datasetChild(method, desc)
	}
	return method
}

// findFile walks project → suite → file across the whole forest. An exact
// path match anywhere beats a basename match (the fallback covers reports
// produced in a different checkout or container path). Basename matching
// can mis-attribute when two suites hold same-named files; suite scoping
// via tree position is the only disambiguation.
func (r *Reconciler) findFile(path string) *domain.TestNode {
	base := filepath.Base(path)
	var byBase *domain.TestNode
	for _, project := range r.forest {
		for _, suite := range project.Children() {
			for _, file := range suite.Children() {
				if file.Kind != domain.KindFile {
					continue
				}
				if file.Location.Path == path {
					return file
				}
				if byBase == nil && filepath.Base(file.Location.Path) == base {
					byBase = file
				}
			}
		}
	}
	return byBase
}

var dataSetSuffixPattern = regexp.MustCompile(` with data set .*$`)

// findMethod returns the first method child whose label equals the
// reported name, verbatim or with the parameterized-test suffix removed.
// Iteration order is the tree's insertion order, so ties resolve by
// source order.
func findMethod(file *domain.TestNode, name string) *domain.TestNode {
	stripped := dataSetSuffixPattern.ReplaceAllString(name, "")
	for _, m := range file.Children() {
		if m.Kind != domain.KindMethod {
			continue
		}
		if m.Label == name || m.Label == stripped {
			return m
		}
	}
	return nil
}

var datasetLabelPattern = regexp.MustCompile(`^\[(\d+)\] `)

// datasetChild locates the dataset node for a decoded description,
// creating it with the next sequential index when no existing child's
// label ends with that exact text. Repeated identical inputs within one
// run reuse the same node; distinct rows get gapless increasing indices.
func (r *Reconciler) datasetChild(method *domain.TestNode, desc string) *domain.TestNode {
	if _, seen := r.touched[method.ID]; !seen {
		r.touched[method.ID] = method
		r.touchedOrder = append(r.touchedOrder, method.ID)
	}

	next := 0
	for _, c := range method.Children() {
		if c.Kind != domain.KindDataset {
			continue
		}
		if strings.HasSuffix(c.Label, desc) {
			return c
		}
		if i, ok := datasetIndex(c.Label); ok && i >= next {
			next = i + 1
		}
	}

	node := domain.NewTestNode(fmt.Sprintf("%s#%d", method.ID, next), fmt.Sprintf("[%d] %s", next, desc), domain.KindDataset)
	node.Location = method.Location
	method.AddChild(node)
	r.sink.NodeCreated(node)
	return node
}

func datasetIndex(label string) (int, bool) {
	m := datasetLabelPattern.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func statusFor(o domain.Outcome) domain.Status {
	switch o {
	case domain.OutcomeFailure, domain.OutcomeError:
		return domain.StatusFailed
	case domain.OutcomeSkipped:
		return domain.StatusSkipped
	default:
		return domain.StatusPassed
	}
}

// foldStatus aggregates outcomes: failed dominates, then passed, then
// skipped. Anything not yet terminal yields to the incoming outcome.
func foldStatus(cur, next domain.Status) domain.Status {
	switch {
	case cur == domain.StatusFailed || next == domain.StatusFailed:
		return domain.StatusFailed
	case cur == domain.StatusPassed || next == domain.StatusPassed:
		return domain.StatusPassed
	case next == domain.StatusSkipped:
		return domain.StatusSkipped
	default:
		return cur
	}
}
