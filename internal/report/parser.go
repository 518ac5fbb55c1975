package report

import (
	"encoding/xml"
	"strings"

	"ctp/internal/domain"
)

// The runner emits one of two report shapes: a flat collection of
// testcase elements under a single testsuites root (JUnit style), or a
// recursively nested tree of testsuite elements, one per class, each
// holding testcase elements (PHPUnit style). Collection is
// schema-agnostic: both shapes flatten to the same record list.

type xmlTestSuite struct {
	Suites []xmlTestSuite `xml:"testsuite"`
	Cases  []xmlTestCase  `xml:"testcase"`
}

type xmlTestCase struct {
	Name    string      `xml:"name,attr"`
	File    string      `xml:"file,attr"`
	Feature string      `xml:"feature,attr"`
	Failure *xmlProblem `xml:"failure"`
	Error   *xmlProblem `xml:"error"`
	Skipped *xmlProblem `xml:"skipped"`
}

type xmlProblem struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// Parse flattens a report document into test-case records. It first
// collects from a testsuites root and, if that yields nothing, retries
// treating the whole document as the root element. An empty result is a
// valid terminal state, not an error; the caller falls back to the
// process exit code.
func Parse(data []byte) []domain.TestCaseRecord {
	var root struct {
		XMLName xml.Name       `xml:"testsuites"`
		Suites  []xmlTestSuite `xml:"testsuite"`
		Cases   []xmlTestCase  `xml:"testcase"`
	}
	if err := xml.Unmarshal(data, &root); err == nil {
		if records := collect(root.Suites, root.Cases); len(records) > 0 {
			return records
		}
	}

	var whole xmlTestSuite
	if err := xml.Unmarshal(data, &whole); err != nil {
		return nil
	}
	return collect(whole.Suites, whole.Cases)
}

func collect(suites []xmlTestSuite, cases []xmlTestCase) []domain.TestCaseRecord {
	var records []domain.TestCaseRecord
	for _, c := range cases {
		records = append(records, toRecord(c))
	}
	for _, s := range suites {
		records = append(records, collect(s.Suites, s.Cases)...)
	}
	return records
}

func toRecord(c xmlTestCase) domain.TestCaseRecord {
	rec := domain.TestCaseRecord{
		Name:    c.Name,
		File:    c.File,
		Feature: c.Feature,
		Outcome: domain.OutcomePass,
	}
	switch {
	case c.Failure != nil:
		rec.Outcome = domain.OutcomeFailure
		rec.Message = problemMessage(c.Failure)
	case c.Error != nil:
		rec.Outcome = domain.OutcomeError
		rec.Message = problemMessage(c.Error)
	case c.Skipped != nil:
		rec.Outcome = domain.OutcomeSkipped
		rec.Message = problemMessage(c.Skipped)
	}
	return rec
}

func problemMessage(p *xmlProblem) string {
	if text := strings.TrimSpace(p.Text); text != "" {
		return text
	}
	return p.Message
}
