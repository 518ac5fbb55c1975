package domain

// Outcome tags one parsed report entry.
type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeFailure
	OutcomeError
	OutcomeSkipped
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeFailure:
		return "failure"
	case OutcomeError:
		return "error"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// TestCaseRecord is one test-case entry parsed from the runner's XML
// report. Name and File are taken as reported and may not match the
// discovered tree verbatim; Feature optionally carries a data-set
// description after its first '|'.
type TestCaseRecord struct {
	Name    string
	File    string
	Feature string
	Outcome Outcome
	Message string
}
