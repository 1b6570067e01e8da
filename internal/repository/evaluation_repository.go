package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/competency-api/internal/models"
)

// EvaluationRepository persists per-(student, criterion) answers.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository creates a new evaluation repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// reopenPairQuery clears FINALIZED and the frozen level on every evaluation
// the student holds against the snapshot's criteria.
const reopenPairQuery = `UPDATE evaluations SET status = 'OPEN', frozen_level = NULL
     WHERE student_id = $1 AND criterion_id IN (
         SELECT cr.id FROM criteria cr
         JOIN capabilities c ON c.id = cr.capability_id
         WHERE c.owner_kind = 'SNAPSHOT' AND c.owner_id = $2)`

// Upsert inserts or updates the answer for a (student, criterion) pair and
// reopens every sibling evaluation of the (student, snapshot) pair in the
// same transaction. An edit invalidates the frozen level of the whole pair,
// not just the edited row, so finalization never survives a write.
func (r *EvaluationRepository) Upsert(ctx context.Context, evaluation *models.Evaluation, snapshotID string) error {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	evaluation.Status = models.EvaluationOpen
	evaluation.FrozenLevel = nil
	evaluation.EvaluatedAt = time.Now().UTC()
	const query = `INSERT INTO evaluations (id, student_id, criterion_id, satisfied, note, status, frozen_level, evaluated_at)
        VALUES (:id, :student_id, :criterion_id, :satisfied, :note, :status, :frozen_level, :evaluated_at)
        ON CONFLICT (student_id, criterion_id)
        DO UPDATE SET satisfied = EXCLUDED.satisfied, note = EXCLUDED.note,
            status = 'OPEN', frozen_level = NULL, evaluated_at = EXCLUDED.evaluated_at`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.NamedExecContext(ctx, query, evaluation); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, reopenPairQuery, evaluation.StudentID, snapshotID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("reopen pair after upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evaluation upsert: %w", err)
	}
	return nil
}

// ListAnswers returns the student's evaluations whose criteria belong to the
// snapshot, joined with each criterion's weight class.
func (r *EvaluationRepository) ListAnswers(ctx context.Context, studentID, snapshotID string) ([]models.EvaluationAnswer, error) {
	var answers []models.EvaluationAnswer
	const query = `SELECT e.id, e.student_id, e.criterion_id, e.satisfied, e.note, e.status, e.frozen_level, e.evaluated_at, cr.weight
        FROM evaluations e
        JOIN criteria cr ON cr.id = e.criterion_id
        JOIN capabilities c ON c.id = cr.capability_id
        WHERE e.student_id = $1 AND c.owner_kind = 'SNAPSHOT' AND c.owner_id = $2
        ORDER BY e.evaluated_at`
	if err := r.db.SelectContext(ctx, &answers, query, studentID, snapshotID); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

// CountForPair returns how many evaluations the student has against the
// snapshot's criteria.
func (r *EvaluationRepository) CountForPair(ctx context.Context, studentID, snapshotID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*)
        FROM evaluations e
        JOIN criteria cr ON cr.id = e.criterion_id
        JOIN capabilities c ON c.id = cr.capability_id
        WHERE e.student_id = $1 AND c.owner_kind = 'SNAPSHOT' AND c.owner_id = $2`
	if err := r.db.GetContext(ctx, &count, query, studentID, snapshotID); err != nil {
		return 0, fmt.Errorf("count evaluations: %w", err)
	}
	return count, nil
}

// SetFinalized marks every evaluation for the pair FINALIZED with the same
// frozen level, in one transaction so concurrent readers never observe a
// half-closed pair.
func (r *EvaluationRepository) SetFinalized(ctx context.Context, studentID, snapshotID string, level int) error {
	return r.updatePair(ctx, studentID, snapshotID,
		`UPDATE evaluations SET status = 'FINALIZED', frozen_level = $3
         WHERE student_id = $1 AND criterion_id IN (
             SELECT cr.id FROM criteria cr
             JOIN capabilities c ON c.id = cr.capability_id
             WHERE c.owner_kind = 'SNAPSHOT' AND c.owner_id = $2)`,
		studentID, snapshotID, level)
}

// Reopen clears FINALIZED and the frozen level on every evaluation for the
// pair.
func (r *EvaluationRepository) Reopen(ctx context.Context, studentID, snapshotID string) error {
	return r.updatePair(ctx, studentID, snapshotID, reopenPairQuery, studentID, snapshotID)
}

func (r *EvaluationRepository) updatePair(ctx context.Context, studentID, snapshotID, query string, args ...interface{}) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update evaluations for pair: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evaluation update: %w", err)
	}
	return nil
}

// CriterionOwner resolves which container owns the capability of a
// criterion. Used to reject answers claiming the wrong snapshot.
func (r *EvaluationRepository) CriterionOwner(ctx context.Context, criterionID string) (models.RubricOwner, error) {
	var owner models.RubricOwner
	const query = `SELECT c.owner_kind AS kind, c.owner_id AS id
        FROM criteria cr
        JOIN capabilities c ON c.id = cr.capability_id
        WHERE cr.id = $1`
	row := r.db.QueryRowxContext(ctx, query, criterionID)
	if err := row.Scan(&owner.Kind, &owner.ID); err != nil {
		return owner, err
	}
	return owner, nil
}
