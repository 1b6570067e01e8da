package models

import "time"

// Cohort is a class of students graded together. It references at most one
// snapshot at a time; rebinding never touches evaluations recorded against
// criteria of a previous snapshot.
type Cohort struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	TermLabel  string    `db:"term_label" json:"term_label"`
	TemplateID *string   `db:"template_id" json:"template_id,omitempty"`
	SnapshotID *string   `db:"snapshot_id" json:"snapshot_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CohortDetail adds the responsible teachers and roster size.
type CohortDetail struct {
	Cohort
	Teachers     []UserInfo `json:"teachers"`
	StudentCount int        `json:"student_count"`
	SnapshotName string     `json:"snapshot_name,omitempty"`
}
