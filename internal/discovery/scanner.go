package discovery

import (
	"bufio"
	"regexp"
	"strings"
)

// Convention selects which method-naming convention the scanner applies.
type Convention int

const (
	// ConventionTest matches methods whose name starts with "test"
	// (PHPUnit-style *Test.php files).
	ConventionTest Convention = iota
	// ConventionCest matches all public methods except "_"-prefixed magic
	// ones (*Cest.php files).
	ConventionCest
)

// Method is one scanned test method with its 1-based source line.
type Method struct {
	Name string
	Line int
}

var (
	testMethodPattern = regexp.MustCompile(`function\s+(test\w+)\s*\(`)
	cestMethodPattern = regexp.MustCompile(`public\s+function\s+(\w+)\s*\(`)
)

// Scanner extracts candidate test methods from PHP source text. It scans
// line by line with one pattern per convention, first match per line wins.
// It is intentionally not a parser: multi-line signatures, commented-out
// code and string literals containing false positives are a known
// limitation.
type Scanner struct{}

// NewScanner creates a new Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// ScanMethods returns the test methods found in content, in source order.
func (s *Scanner) ScanMethods(content string, conv Convention) []Method {
	var methods []Method
	line := 0
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		name := matchLine(sc.Text(), conv)
		if name == "" {
			continue
		}
		methods = append(methods, Method{Name: name, Line: line})
	}
	return methods
}

func matchLine(line string, conv Convention) string {
	switch conv {
	case ConventionCest:
		m := cestMethodPattern.FindStringSubmatch(line)
		if m == nil || strings.HasPrefix(m[1], "_") {
			return ""
		}
		return m[1]
	default:
		m := testMethodPattern.FindStringSubmatch(line)
		if m == nil {
			return ""
		}
		return m[1]
	}
}
