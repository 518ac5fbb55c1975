package report

import (
	"testing"

	"ctp/internal/domain"
)

const flatReport = `<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
  <testsuite name="unit" tests="3">
    <testcase name="testFoo" file="/ws/tests/unit/UserTest.php"/>
    <testcase name="testBar" file="/ws/tests/unit/UserTest.php">
      <failure type="AssertionFailed">expected 1 got 2</failure>
    </testcase>
    <testcase name="testBaz" file="/ws/tests/unit/OtherTest.php">
      <skipped/>
    </testcase>
  </testsuite>
</testsuites>`

const nestedReport = `<?xml version="1.0" encoding="UTF-8"?>
<testsuite name="all">
  <testsuite name="UserTest">
    <testcase name="testFoo" file="/ws/tests/unit/UserTest.php"/>
    <testsuite name="inner">
      <testcase name="testDeep" file="/ws/tests/unit/DeepTest.php">
        <error message="boom"></error>
      </testcase>
    </testsuite>
  </testsuite>
</testsuite>`

func TestParse_FlatShape(t *testing.T) {
	records := Parse([]byte(flatReport))
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	if records[0].Name != "testFoo" || records[0].Outcome != domain.OutcomePass {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Outcome != domain.OutcomeFailure {
		t.Errorf("expected failure outcome, got %v", records[1].Outcome)
	}
	if records[1].Message != "expected 1 got 2" {
		t.Errorf("unexpected failure message: %q", records[1].Message)
	}
	if records[2].Outcome != domain.OutcomeSkipped {
		t.Errorf("expected skipped outcome, got %v", records[2].Outcome)
	}
}

func TestParse_NestedShape(t *testing.T) {
	records := Parse([]byte(nestedReport))
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Name != "testFoo" {
		t.Errorf("unexpected first record name: %q", records[0].Name)
	}
	if records[1].Name != "testDeep" || records[1].Outcome != domain.OutcomeError {
		t.Errorf("unexpected nested record: %+v", records[1])
	}
	if records[1].Message != "boom" {
		t.Errorf("expected error message from attribute, got %q", records[1].Message)
	}
}

func TestParse_EmptyAndInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty testsuites", `<testsuites></testsuites>`},
		{"empty suite", `<testsuite name="unit"></testsuite>`},
		{"not xml", `no tests were run`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if records := Parse([]byte(tt.body)); len(records) != 0 {
				t.Errorf("expected no records, got %d", len(records))
			}
		})
	}
}

func TestParse_FeatureAttributeSurvives(t *testing.T) {
	body := `<testsuites><testsuite>
	  <testcase name="testFoo with data set #0" file="UserTest.php" feature="try foo | {&amp;quot;x&amp;quot;:1}"/>
	</testsuite></testsuites>`
	records := Parse([]byte(body))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	// The XML decoder resolves one level of encoding; ours is the second.
	desc, ok := DataSetDescription(records[0].Feature)
	if !ok {
		t.Fatal("expected a data set description")
	}
	if desc != ` {"x":1}` {
		t.Errorf("unexpected description: %q", desc)
	}
}

func TestDataSetDescription(t *testing.T) {
	tests := []struct {
		name    string
		feature string
		want    string
		ok      bool
	}{
		{"no pipe", "plain feature text", "", false},
		{"simple", `foo|bar`, "bar", true},
		{"entities", `f|&quot;a&quot; &lt;b&gt; &apos;c&apos; &amp;d`, `"a" <b> 'c' &d`, true},
		{"first pipe wins", `a|b|c`, "b|c", true},
		{"empty description", `a|`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DataSetDescription(tt.feature)
			if ok != tt.ok || got != tt.want {
				t.Errorf("DataSetDescription(%q) = %q, %v; want %q, %v", tt.feature, got, ok, tt.want, tt.ok)
			}
		})
	}
}
