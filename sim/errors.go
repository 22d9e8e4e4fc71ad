package sim

import (
	"fmt"
	"strings"
)

// TrainingDataError reports a missing or malformed feature table. Fatal to the run.
type TrainingDataError struct {
	Reason string
	Column string // offending column, if any
	Row    int    // offending row index, -1 if not row-specific
}

func (e *TrainingDataError) Error() string {
	switch {
	case e.Column != "" && e.Row >= 0:
		return fmt.Sprintf("training data: %s (column %q, row %d)", e.Reason, e.Column, e.Row)
	case e.Column != "":
		return fmt.Sprintf("training data: %s (column %q)", e.Reason, e.Column)
	default:
		return "training data: " + e.Reason
	}
}

// NewTrainingDataError builds a TrainingDataError that is not tied to a row.
func NewTrainingDataError(reason, column string) *TrainingDataError {
	return &TrainingDataError{Reason: reason, Column: column, Row: -1}
}

// ModelNotTrainedError is returned when inference or persistence is requested
// before the model was fitted.
type ModelNotTrainedError struct {
	Op string
}

func (e *ModelNotTrainedError) Error() string {
	return fmt.Sprintf("pace model not trained: cannot %s", e.Op)
}

// IncompleteScheduleError lists calendar rounds that lack a recommendation.
type IncompleteScheduleError struct {
	Expected int
	Produced int
	Missing  []string
}

func (e *IncompleteScheduleError) Error() string {
	return fmt.Sprintf("incomplete schedule: %d of %d rounds covered, missing [%s]",
		e.Produced, e.Expected, strings.Join(e.Missing, ", "))
}

// SimulationError attaches race and candidate context to a failure inside the
// simulation or selection stages.
type SimulationError struct {
	RaceID       string
	CandidateKey string
	Err          error
}

func (e *SimulationError) Error() string {
	if e.CandidateKey == "" {
		return fmt.Sprintf("race %s: %v", e.RaceID, e.Err)
	}
	return fmt.Sprintf("race %s candidate %s: %v", e.RaceID, e.CandidateKey, e.Err)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}
