package discovery

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"ctp/internal/domain"
)

const (
	// TestsDir is the directory under a workspace root that holds suite
	// definitions and test sources.
	TestsDir = "tests"

	// SuiteFileSuffix is the naming pattern for suite-definition files.
	SuiteFileSuffix = ".suite.yml"

	testFileSuffix = "Test.php"
	cestFileSuffix = "Cest.php"

	// scanConcurrency bounds parallel method scanning during a rebuild.
	scanConcurrency = 8
)

// Builder walks workspace roots and produces the project → suite → file →
// method forest. Dataset nodes are not created here; they appear lazily
// during result reconciliation.
type Builder struct {
	scanner *Scanner
}

// NewBuilder creates a new Builder.
func NewBuilder(scanner *Scanner) *Builder {
	return &Builder{scanner: scanner}
}

// Build constructs one project node per workspace root that contains a
// tests directory. Roots without one contribute nothing; that is not an
// error.
func (b *Builder) Build(ctx context.Context, roots []string) ([]*domain.TestNode, error) {
	var forest []*domain.TestNode
	for _, root := range roots {
		project, err := b.buildProject(ctx, root)
		if err != nil {
			return nil, err
		}
		if project != nil {
			forest = append(forest, project)
		}
	}
	return forest, nil
}

func (b *Builder) buildProject(ctx context.Context, root string) (*domain.TestNode, error) {
	testsDir := filepath.Join(root, TestsDir)
	info, err := os.Stat(testsDir)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	wsID := sanitizeID(root)
	project := domain.NewTestNode("project:"+wsID, filepath.Base(root), domain.KindProject)
	project.Location = domain.Location{Path: root}

	suiteFiles, err := filepath.Glob(filepath.Join(testsDir, "*"+SuiteFileSuffix))
	if err != nil {
		return nil, err
	}
	for _, suiteFile := range suiteFiles {
		name := strings.TrimSuffix(filepath.Base(suiteFile), SuiteFileSuffix)
		suite, err := b.buildSuite(ctx, project, testsDir, suiteFile, name)
		if err != nil {
			return nil, err
		}
		project.AddChild(suite)
	}
	return project, nil
}

func (b *Builder) buildSuite(ctx context.Context, project *domain.TestNode, testsDir, suiteFile, name string) (*domain.TestNode, error) {
	suite := domain.NewTestNode(project.ID+"/"+name, name, domain.KindSuite)
	suite.Location = domain.Location{Path: filepath.Join(testsDir, name)}
	suite.Description = suiteActor(suiteFile)

	// A suite without a same-named directory is still a suite; absence of
	// tests is not an error.
	entries, err := os.ReadDir(suite.Location.Path)
	if err != nil {
		return suite, nil
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		entryName := entry.Name()
		if strings.HasSuffix(entryName, testFileSuffix) || strings.HasSuffix(entryName, cestFileSuffix) {
			candidates = append(candidates, entryName)
		}
	}

	methods := make([][]Method, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, fileName := range candidates {
		i, fileName := i, fileName
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(suite.Location.Path, fileName))
			if err != nil {
				// Unreadable candidates are skipped, not fatal.
				return nil
			}
			methods[i] = b.scanner.ScanMethods(string(content), conventionFor(fileName))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, fileName := range candidates {
		path := filepath.Join(suite.Location.Path, fileName)
		file := domain.NewTestNode(suite.ID+"/"+fileName, fileName, domain.KindFile)
		file.Location = domain.Location{Path: path}
		for _, m := range methods[i] {
			method := domain.NewTestNode(file.ID+"::"+m.Name, m.Name, domain.KindMethod)
			method.Location = domain.Location{Path: path, Line: m.Line}
			file.AddChild(method)
		}
		suite.AddChild(file)
	}
	return suite, nil
}

func conventionFor(fileName string) Convention {
	if strings.HasSuffix(fileName, cestFileSuffix) {
		return ConventionCest
	}
	return ConventionTest
}

// suiteActor reads the suite definition's actor name for display. Parse
// failures are silent; the actor is decoration only.
func suiteActor(suiteFile string) string {
	data, err := os.ReadFile(suiteFile)
	if err != nil {
		return ""
	}
	var def struct {
		Actor string `yaml:"actor"`
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return ""
	}
	return def.Actor
}

var idUnsafePattern = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// sanitizeID collapses a workspace path into an id-safe token so suite ids
// stay unique across multiple workspace roots.
func sanitizeID(s string) string {
	return strings.Trim(idUnsafePattern.ReplaceAllString(s, "-"), "-")
}
