package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/competency-api/internal/models"
)

// CohortRepository persists cohorts and their teacher bindings.
type CohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository creates a new cohort repository.
func NewCohortRepository(db *sqlx.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

// Create inserts a cohort and its teacher bindings in one transaction.
func (r *CohortRepository) Create(ctx context.Context, cohort *models.Cohort, teacherIDs []string) error {
	if cohort.ID == "" {
		cohort.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cohort.CreatedAt = now
	cohort.UpdatedAt = now
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO cohorts (id, name, term_label, template_id, snapshot_id, created_at, updated_at)
        VALUES (:id, :name, :term_label, :template_id, :snapshot_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, cohort); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert cohort: %w", err)
	}
	if err := insertTeachers(ctx, tx, cohort.ID, teacherIDs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cohort: %w", err)
	}
	return nil
}

// Update rewrites the cohort's mutable fields and, when teacherIDs is
// non-nil, its teacher bindings.
func (r *CohortRepository) Update(ctx context.Context, cohort *models.Cohort, teacherIDs []string) error {
	cohort.UpdatedAt = time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `UPDATE cohorts SET name = :name, term_label = :term_label, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, cohort); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update cohort: %w", err)
	}
	if teacherIDs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cohort_teachers WHERE cohort_id = $1`, cohort.ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("clear cohort teachers: %w", err)
		}
		if err := insertTeachers(ctx, tx, cohort.ID, teacherIDs); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cohort update: %w", err)
	}
	return nil
}

// BindSnapshot points the cohort at a snapshot (and its origin template).
// Existing evaluations are untouched; they stay tied to criteria of whatever
// snapshot they were recorded against.
func (r *CohortRepository) BindSnapshot(ctx context.Context, cohortID, templateID, snapshotID string) error {
	const query = `UPDATE cohorts SET template_id = $2, snapshot_id = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, cohortID, templateID, snapshotID, time.Now().UTC()); err != nil {
		return fmt.Errorf("bind snapshot: %w", err)
	}
	return nil
}

// FindByID returns one cohort.
func (r *CohortRepository) FindByID(ctx context.Context, id string) (*models.Cohort, error) {
	var cohort models.Cohort
	const query = `SELECT id, name, term_label, template_id, snapshot_id, created_at, updated_at FROM cohorts WHERE id = $1`
	if err := r.db.GetContext(ctx, &cohort, query, id); err != nil {
		return nil, err
	}
	return &cohort, nil
}

// List returns all cohorts, newest first.
func (r *CohortRepository) List(ctx context.Context) ([]models.Cohort, error) {
	var cohorts []models.Cohort
	const query = `SELECT id, name, term_label, template_id, snapshot_id, created_at, updated_at
        FROM cohorts ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &cohorts, query); err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}
	return cohorts, nil
}

// ListByTeacher returns cohorts a teacher is responsible for.
func (r *CohortRepository) ListByTeacher(ctx context.Context, userID string) ([]models.Cohort, error) {
	var cohorts []models.Cohort
	const query = `SELECT c.id, c.name, c.term_label, c.template_id, c.snapshot_id, c.created_at, c.updated_at
        FROM cohorts c
        JOIN cohort_teachers ct ON ct.cohort_id = c.id
        WHERE ct.user_id = $1 ORDER BY c.created_at DESC`
	if err := r.db.SelectContext(ctx, &cohorts, query, userID); err != nil {
		return nil, fmt.Errorf("list cohorts by teacher: %w", err)
	}
	return cohorts, nil
}

// ListTeachers returns the responsible teachers of a cohort.
func (r *CohortRepository) ListTeachers(ctx context.Context, cohortID string) ([]models.UserInfo, error) {
	var teachers []models.UserInfo
	const query = `SELECT u.id, u.email, u.full_name, u.role
        FROM users u
        JOIN cohort_teachers ct ON ct.user_id = u.id
        WHERE ct.cohort_id = $1 ORDER BY u.full_name`
	if err := r.db.SelectContext(ctx, &teachers, query, cohortID); err != nil {
		return nil, fmt.Errorf("list cohort teachers: %w", err)
	}
	return teachers, nil
}

// Delete removes a cohort; students and teacher bindings cascade in the
// schema. The cohort's snapshot is cleaned up separately by the service.
func (r *CohortRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cohorts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete cohort: %w", err)
	}
	return nil
}

func insertTeachers(ctx context.Context, tx *sqlx.Tx, cohortID string, teacherIDs []string) error {
	const query = `INSERT INTO cohort_teachers (cohort_id, user_id) VALUES ($1, $2)`
	for _, userID := range teacherIDs {
		if _, err := tx.ExecContext(ctx, query, cohortID, userID); err != nil {
			return fmt.Errorf("insert cohort teacher: %w", err)
		}
	}
	return nil
}
