package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/competency-api/internal/models"
)

// StudentRepository persists cohort rosters.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a single student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	prepare(student)
	const query = `INSERT INTO students (id, full_name, registration, cohort_id, active, created_at, updated_at)
        VALUES (:id, :full_name, :registration, :cohort_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// BulkInsert writes a roster in one transaction.
func (r *StudentRepository) BulkInsert(ctx context.Context, students []models.Student) error {
	if len(students) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO students (id, full_name, registration, cohort_id, active, created_at, updated_at)
        VALUES (:id, :full_name, :registration, :cohort_id, :active, :created_at, :updated_at)`
	for i := range students {
		prepare(&students[i])
		if _, err := tx.NamedExecContext(ctx, query, students[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk insert student: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster: %w", err)
	}
	return nil
}

// FindByID returns one student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	const query = `SELECT id, full_name, registration, cohort_id, active, created_at, updated_at FROM students WHERE id = $1`
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByCohort returns the active roster of a cohort in name order.
func (r *StudentRepository) ListByCohort(ctx context.Context, cohortID string) ([]models.Student, error) {
	var students []models.Student
	const query = `SELECT id, full_name, registration, cohort_id, active, created_at, updated_at
        FROM students WHERE cohort_id = $1 AND active = TRUE ORDER BY full_name`
	if err := r.db.SelectContext(ctx, &students, query, cohortID); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// CountByCohort returns the active roster size.
func (r *StudentRepository) CountByCohort(ctx context.Context, cohortID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM students WHERE cohort_id = $1 AND active = TRUE`
	if err := r.db.GetContext(ctx, &count, query, cohortID); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

func prepare(student *models.Student) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
}
