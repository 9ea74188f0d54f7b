// Package importer implements the contact import pipeline: CSV parsing,
// column mapping, duplicate matching, review decisions, and execution.
package importer

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	JobPending       JobStatus = "pending"
	JobAnalyzing     JobStatus = "analyzing"
	JobPendingReview JobStatus = "pending_review"
	JobProcessing    JobStatus = "processing"
	JobCompleted     JobStatus = "completed"
	JobFailed        JobStatus = "failed"
)

// jobTransitions is the exhaustive transition table. Any job may fail.
var jobTransitions = map[JobStatus][]JobStatus{
	JobPending:       {JobAnalyzing, JobFailed},
	JobAnalyzing:     {JobPendingReview, JobProcessing, JobFailed},
	JobPendingReview: {JobProcessing, JobFailed},
	JobProcessing:    {JobCompleted, JobFailed},
	JobCompleted:     {},
	JobFailed:        {},
}

// CanTransition reports whether from -> to is a legal job transition.
func CanTransition(from, to JobStatus) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidJobStatus reports whether s is a known job status.
func ValidJobStatus(s JobStatus) bool {
	_, ok := jobTransitions[s]
	return ok
}

// RowStatus is the classification or terminal state of an import row.
type RowStatus string

const (
	RowNew       RowStatus = "new"
	RowDuplicate RowStatus = "duplicate"
	RowConflict  RowStatus = "conflict"
	RowImported  RowStatus = "imported"
	RowSkipped   RowStatus = "skipped"
)

// NeedsReview reports whether a row in this status requires a human
// decision before the job may execute.
func (s RowStatus) NeedsReview() bool {
	return s == RowDuplicate || s == RowConflict
}

// Terminal reports whether the row has been executed.
func (s RowStatus) Terminal() bool {
	return s == RowImported || s == RowSkipped
}

// Decision is the chosen disposition for a duplicate/conflict row.
type Decision string

const (
	DecisionCreate Decision = "create"
	DecisionUpdate Decision = "update"
	DecisionSkip   Decision = "skip"
)

// ValidDecision reports whether d is a known decision value.
func ValidDecision(d Decision) bool {
	return d == DecisionCreate || d == DecisionUpdate || d == DecisionSkip
}

// Mode controls how much human review an import requires.
type Mode string

const (
	// ModeSafe always stops for review after analysis.
	ModeSafe Mode = "safe"
	// ModeBalanced stops for review only when duplicates or conflicts exist.
	ModeBalanced Mode = "balanced"
	// ModeTurbo never stops; undecided duplicate rows are enriched in place.
	ModeTurbo Mode = "turbo"
)

// ValidMode reports whether m is a known import mode.
func ValidMode(m Mode) bool {
	return m == ModeSafe || m == ModeBalanced || m == ModeTurbo
}

// StatusAfterAnalysis returns the job status an analyzed job moves to,
// given its mode and whether any rows need review.
func StatusAfterAnalysis(mode Mode, duplicates, conflicts int) JobStatus {
	switch mode {
	case ModeTurbo:
		return JobProcessing
	case ModeBalanced:
		if duplicates > 0 || conflicts > 0 {
			return JobPendingReview
		}
		return JobProcessing
	default: // safe
		return JobPendingReview
	}
}
