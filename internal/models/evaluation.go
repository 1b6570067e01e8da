package models

import "time"

// EvaluationStatus is the finalization state of an evaluation record.
// FINALIZED is only valid together with a frozen level; use Finalize and
// Reopen rather than setting the fields directly.
type EvaluationStatus string

const (
	EvaluationOpen      EvaluationStatus = "OPEN"
	EvaluationFinalized EvaluationStatus = "FINALIZED"
)

// Evaluation is one recorded answer for a (student, criterion) pair.
// Satisfied is tri-state: nil means the criterion was opened for marking but
// not yet answered.
type Evaluation struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	CriterionID string           `db:"criterion_id" json:"criterion_id"`
	Satisfied   *bool            `db:"satisfied" json:"satisfied"`
	Note        string           `db:"note" json:"note"`
	Status      EvaluationStatus `db:"status" json:"status"`
	FrozenLevel *int             `db:"frozen_level" json:"frozen_level,omitempty"`
	EvaluatedAt time.Time        `db:"evaluated_at" json:"evaluated_at"`
}

// Finalize stamps the record with the level computed at close time.
func (e *Evaluation) Finalize(level int) {
	e.Status = EvaluationFinalized
	e.FrozenLevel = &level
}

// Reopen clears the finalized state and its frozen level together, keeping
// "finalized without a level" unrepresentable.
func (e *Evaluation) Reopen() {
	e.Status = EvaluationOpen
	e.FrozenLevel = nil
}

// IsFinalized reports whether the record is closed.
func (e *Evaluation) IsFinalized() bool {
	return e.Status == EvaluationFinalized
}

// EvaluationAnswer joins an evaluation with the weight class of its
// criterion, the shape the grade calculator consumes.
type EvaluationAnswer struct {
	Evaluation
	Weight CriterionWeight `db:"weight" json:"weight"`
}

// LevelResult is the outcome of grading one student against one snapshot.
type LevelResult struct {
	StudentID       string  `json:"student_id"`
	StudentName     string  `json:"student_name,omitempty"`
	SnapshotID      string  `json:"snapshot_id"`
	AchievedLevel   int     `json:"achieved_level"`
	CriticalMet     int     `json:"critical_met"`
	DesirableMet    int     `json:"desirable_met"`
	TotalCritical   int     `json:"total_critical"`
	TotalDesirable  int     `json:"total_desirable"`
	PercentComplete float64 `json:"percent_complete"`
	Finalized       bool    `json:"finalized"`
}
