package domain

import "fmt"

// Outcome classifies the result of processing a single item.
type Outcome int

const (
	// OutcomeIngested means the item was inserted and recorded.
	OutcomeIngested Outcome = iota

	// OutcomeSkippedEmpty means the fetched content was blank.
	OutcomeSkippedEmpty

	// OutcomeSkippedDuplicate means the checksum was already seen
	// during this run.
	OutcomeSkippedDuplicate

	// OutcomeSkippedUnchanged means the latest ledger record for the
	// key carries the same checksum.
	OutcomeSkippedUnchanged

	// OutcomeFailed means a step errored; the item is counted as
	// skipped and the run continues.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeIngested:
		return "ingested"
	case OutcomeSkippedEmpty:
		return "skipped-empty"
	case OutcomeSkippedDuplicate:
		return "skipped-duplicate"
	case OutcomeSkippedUnchanged:
		return "skipped-unchanged"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ItemResult pairs an outcome with the error that produced it.
// Err is nil unless Outcome is OutcomeFailed.
type ItemResult struct {
	Outcome Outcome
	Err     error
}

// Count returns 1 for an ingested item and 0 otherwise.
func (r ItemResult) Count() int {
	if r.Outcome == OutcomeIngested {
		return 1
	}
	return 0
}

// Summary aggregates the totals of one ingestion run.
// Err is set when discovery itself failed mid-run; the counts then
// cover the items processed before the failure.
type Summary struct {
	SourceName string
	Ingested   int
	Skipped    int
	Err        error
}

// String returns the human-readable run result.
func (s Summary) String() string {
	if s.Err != nil {
		return fmt.Sprintf("[%s] job failed: %v. Partial results: %d ingested, %d skipped",
			s.SourceName, s.Err, s.Ingested, s.Skipped)
	}
	return fmt.Sprintf("[%s] completed: %d ingested, %d skipped",
		s.SourceName, s.Ingested, s.Skipped)
}
