package controller

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"ctp/internal/config"
	"ctp/internal/discovery"
	"ctp/internal/domain"
	"ctp/internal/execution"
	"ctp/internal/report"
)

type captureSink struct {
	mu       sync.Mutex
	statuses map[string]domain.Status
	messages map[string]string
	removed  []string
	output   strings.Builder
	finished int
}

func newCaptureSink() *captureSink {
	return &captureSink{
		statuses: make(map[string]domain.Status),
		messages: make(map[string]string),
	}
}

func (s *captureSink) NodeCreated(n *domain.TestNode) {}

func (s *captureSink) NodeRemoved(n *domain.TestNode) {
	s.removed = append(s.removed, n.ID)
}

func (s *captureSink) Started(n *domain.TestNode) { s.statuses[n.ID] = domain.StatusStarted }
func (s *captureSink) Passed(n *domain.TestNode)  { s.statuses[n.ID] = domain.StatusPassed }

func (s *captureSink) Failed(n *domain.TestNode, message string) {
	s.statuses[n.ID] = domain.StatusFailed
	s.messages[n.ID] = message
}

func (s *captureSink) Skipped(n *domain.TestNode) { s.statuses[n.ID] = domain.StatusSkipped }

func (s *captureSink) AppendOutput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output.WriteString(text)
}

func (s *captureSink) RunFinished() { s.finished++ }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tests", "unit.suite.yml"), "actor: UnitTester\n")
	writeFile(t, filepath.Join(root, "tests", "unit", "UserTest.php"), `<?php
class UserTest extends \Codeception\Test\Unit
{
    public function testCreate() {}
    public function testDelete() {}
}
`)
	writeFile(t, filepath.Join(root, "tests", "unit", "LoginCest.php"), `<?php
class LoginCest
{
    public function tryLogin(UnitTester $I) {}
}
`)
	return root
}

func newController(t *testing.T, root, codeceptPath string) (*Controller, *captureSink) {
	t.Helper()
	cfg := &config.Config{
		WorkspaceRoots: []string{root},
		CodeceptPath:   codeceptPath,
		ReportFormats:  []report.Format{report.FormatJUnit},
		Debounce:       time.Millisecond,
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	log := logger.WithField("component", "controller")
	sink := newCaptureSink()
	ctrl := New(cfg, discovery.NewBuilder(discovery.NewScanner()), execution.NewResolver(), execution.NewRunner(log), sink, log)
	if err := ctrl.Activate(context.Background()); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	return ctrl, sink
}

func projectID(t *testing.T, ctrl *Controller) string {
	t.Helper()
	forest := ctrl.Forest()
	if len(forest) != 1 {
		t.Fatalf("expected 1 project, got %d", len(forest))
	}
	return forest[0].ID
}

const passingRunScript = `mkdir -p tests/_output
cat > tests/_output/report.xml <<'XML'
<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
  <testsuite name="unit">
    <testcase name="testCreate" file="tests/unit/UserTest.php" feature="UserTest: Test create"/>
    <testcase name="tryLogin" file="tests/unit/LoginCest.php" feature="LoginCest: Try login"/>
    <testcase name="testDelete" file="tests/unit/UserTest.php" feature="UserTest: Test delete"/>
  </testsuite>
</testsuites>
XML
exit 0
`

func TestController_Run_CleanReport(t *testing.T) {
	root := newWorkspace(t)
	script := filepath.Join(t.TempDir(), "codecept")
	writeScript(t, script, passingRunScript)
	ctrl, sink := newController(t, root, script)
	project := projectID(t, ctrl)

	err := ctrl.Run(domain.RunScope{NodeIDs: []string{project}, Ctx: context.Background()})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, id := range []string{
		project,
		project + "/unit",
		project + "/unit/UserTest.php",
		project + "/unit/UserTest.php::testCreate",
		project + "/unit/UserTest.php::testDelete",
		project + "/unit/LoginCest.php::tryLogin",
	} {
		if got := sink.statuses[id]; got != domain.StatusPassed {
			t.Errorf("expected %s passed, got %s", id, got)
		}
	}
	if sink.finished != 1 {
		t.Errorf("expected one RunFinished, got %d", sink.finished)
	}
}

func TestController_Run_FailureInReport(t *testing.T) {
	root := newWorkspace(t)
	script := filepath.Join(t.TempDir(), "codecept")
	writeScript(t, script, `mkdir -p tests/_output
cat > tests/_output/report.xml <<'XML'
<testsuites>
  <testsuite name="unit">
    <testcase name="testCreate" file="tests/unit/UserTest.php"/>
    <testcase name="testDelete" file="tests/unit/UserTest.php"><failure type="AssertError">boom</failure></testcase>
  </testsuite>
</testsuites>
XML
exit 1
`)
	ctrl, sink := newController(t, root, script)
	project := projectID(t, ctrl)

	if err := ctrl.Run(domain.RunScope{NodeIDs: []string{project}, Ctx: context.Background()}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := sink.statuses[project+"/unit/UserTest.php::testCreate"]; got != domain.StatusPassed {
		t.Errorf("expected testCreate passed, got %s", got)
	}
	if got := sink.statuses[project+"/unit/UserTest.php::testDelete"]; got != domain.StatusFailed {
		t.Errorf("expected testDelete failed, got %s", got)
	}
	if msg := sink.messages[project+"/unit/UserTest.php::testDelete"]; msg != "boom" {
		t.Errorf("expected failure message 'boom', got %q", msg)
	}
	// Method never mentioned in the report finishes as skipped.
	if got := sink.statuses[project+"/unit/LoginCest.php::tryLogin"]; got != domain.StatusSkipped {
		t.Errorf("expected tryLogin skipped, got %s", got)
	}
	// The failure folds up to suite, file and project.
	for _, id := range []string{project, project + "/unit", project + "/unit/UserTest.php"} {
		if got := sink.statuses[id]; got != domain.StatusFailed {
			t.Errorf("expected %s failed, got %s", id, got)
		}
	}
}

func TestController_Run_NonZeroExitWithoutReport(t *testing.T) {
	root := newWorkspace(t)
	script := filepath.Join(t.TempDir(), "codecept")
	writeScript(t, script, "exit 2\n")
	ctrl, sink := newController(t, root, script)
	project := projectID(t, ctrl)

	if err := ctrl.Run(domain.RunScope{NodeIDs: []string{project}, Ctx: context.Background()}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := sink.statuses[project]; got != domain.StatusFailed {
		t.Errorf("expected project failed, got %s", got)
	}
	if msg := sink.messages[project]; !strings.Contains(msg, "2") {
		t.Errorf("expected exit code in message, got %q", msg)
	}
}

func TestController_Run_CleanExitExpectedReportMissing(t *testing.T) {
	root := newWorkspace(t)
	script := filepath.Join(t.TempDir(), "codecept")
	writeScript(t, script, "exit 0\n")
	ctrl, sink := newController(t, root, script)
	project := projectID(t, ctrl)

	if err := ctrl.Run(domain.RunScope{NodeIDs: []string{project}, Ctx: context.Background()}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := sink.statuses[project]; got != domain.StatusFailed {
		t.Errorf("expected project failed when expected report is missing, got %s", got)
	}
}

func TestController_Run_CancelledBeforeSpawn(t *testing.T) {
	root := newWorkspace(t)
	script := filepath.Join(t.TempDir(), "codecept")
	writeScript(t, script, passingRunScript)
	ctrl, sink := newController(t, root, script)
	project := projectID(t, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.Run(domain.RunScope{NodeIDs: []string{project}, Ctx: ctx}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for id, status := range sink.statuses {
		if status != domain.StatusSkipped {
			t.Errorf("expected %s skipped after cancellation, got %s", id, status)
		}
	}
}

func TestController_Run_MethodArgs(t *testing.T) {
	root := newWorkspace(t)
	script := filepath.Join(t.TempDir(), "codecept")
	writeScript(t, script, `mkdir -p tests/_output
echo "$@" > tests/_output/args.txt
exit 0
`)
	ctrl, sink := newController(t, root, script)
	project := projectID(t, ctrl)
	methodID := project + "/unit/UserTest.php::testCreate"

	if err := ctrl.Run(domain.RunScope{NodeIDs: []string{methodID}, Ctx: context.Background()}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "tests", "_output", "args.txt"))
	if err != nil {
		t.Fatalf("args file not written: %v", err)
	}
	want := "run unit " + filepath.Join("tests", "unit", "UserTest.php") + ":testCreate --no-interaction --xml"
	if got := strings.TrimSpace(string(data)); got != want {
		t.Errorf("expected args %q, got %q", want, got)
	}

	// Clean exit, expected report missing: the run root is failed, not the
	// untouched rest of the tree.
	if got := sink.statuses[methodID]; got != domain.StatusFailed {
		t.Errorf("expected run root failed, got %s", got)
	}
	if _, touched := sink.statuses[project+"/unit/LoginCest.php::tryLogin"]; touched {
		t.Error("nodes outside the run scope must not be touched")
	}
}

func TestController_Run_UnknownNode(t *testing.T) {
	root := newWorkspace(t)
	ctrl, _ := newController(t, root, "codecept")

	err := ctrl.Run(domain.RunScope{NodeIDs: []string{"project:nope"}, Ctx: context.Background()})
	if err == nil {
		t.Fatal("expected error for unknown node id")
	}
}

func TestController_ResolveSelector(t *testing.T) {
	root := newWorkspace(t)
	ctrl, _ := newController(t, root, "codecept")
	project := projectID(t, ctrl)

	t.Run("no args selects projects", func(t *testing.T) {
		ids, err := ctrl.ResolveSelector(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ids) != 1 || ids[0] != project {
			t.Errorf("expected [%s], got %v", project, ids)
		}
	})

	t.Run("suite by label", func(t *testing.T) {
		ids, err := ctrl.ResolveSelector([]string{"unit"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ids) != 1 || ids[0] != project+"/unit" {
			t.Errorf("expected suite id, got %v", ids)
		}
	})

	t.Run("file within suite", func(t *testing.T) {
		ids, err := ctrl.ResolveSelector([]string{"unit", "UserTest.php"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ids) != 1 || ids[0] != project+"/unit/UserTest.php" {
			t.Errorf("expected file id, got %v", ids)
		}
	})

	t.Run("method via colon suffix", func(t *testing.T) {
		ids, err := ctrl.ResolveSelector([]string{"unit", "UserTest.php:testDelete"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ids) != 1 || ids[0] != project+"/unit/UserTest.php::testDelete" {
			t.Errorf("expected method id, got %v", ids)
		}
	})

	t.Run("unknown suite", func(t *testing.T) {
		if _, err := ctrl.ResolveSelector([]string{"acceptance"}); err == nil {
			t.Error("expected error for unknown suite")
		}
	})

	t.Run("unknown file", func(t *testing.T) {
		if _, err := ctrl.ResolveSelector([]string{"unit", "MissingTest.php"}); err == nil {
			t.Error("expected error for unknown file")
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		if _, err := ctrl.ResolveSelector([]string{"unit", "UserTest.php:testMissing"}); err == nil {
			t.Error("expected error for unknown method")
		}
	})
}

func TestController_Rebuild_PreservesDatasets(t *testing.T) {
	root := newWorkspace(t)
	ctrl, sink := newController(t, root, "codecept")
	project := projectID(t, ctrl)
	methodID := project + "/unit/UserTest.php::testCreate"

	method := ctrl.NodeByID(methodID)
	if method == nil {
		t.Fatalf("method %s not found", methodID)
	}
	dataset := domain.NewTestNode(methodID+"#0", `[0] "alice"`, domain.KindDataset)
	method.AddChild(dataset)

	if err := ctrl.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	rebuilt := ctrl.NodeByID(methodID)
	if rebuilt == nil {
		t.Fatalf("method lost by rebuild")
	}
	if rebuilt == method {
		t.Fatal("rebuild must produce a fresh method node")
	}
	if got := rebuilt.Child(methodID + "#0"); got != dataset {
		t.Error("dataset node was not re-attached after rebuild")
	}
	if len(sink.removed) == 0 || sink.removed[len(sink.removed)-1] != project {
		t.Errorf("expected old project removal event, got %v", sink.removed)
	}
}

func TestController_Rebuild_DropsDatasetsOfRemovedMethods(t *testing.T) {
	root := newWorkspace(t)
	ctrl, _ := newController(t, root, "codecept")
	project := projectID(t, ctrl)
	methodID := project + "/unit/UserTest.php::testDelete"

	method := ctrl.NodeByID(methodID)
	method.AddChild(domain.NewTestNode(methodID+"#0", "[0] x", domain.KindDataset))

	// The method disappears from source before the rebuild.
	writeFile(t, filepath.Join(root, "tests", "unit", "UserTest.php"), `<?php
class UserTest extends \Codeception\Test\Unit
{
    public function testCreate() {}
}
`)
	if err := ctrl.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if ctrl.NodeByID(methodID) != nil {
		t.Error("removed method must not survive a rebuild")
	}
}
