package models

import "time"

// Student is a learner enrolled in a cohort.
type Student struct {
	ID           string    `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Registration string    `db:"registration" json:"registration"`
	CohortID     *string   `db:"cohort_id" json:"cohort_id,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
