package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/competency-api/internal/models"
)

// SnapshotRepository persists immutable rubric snapshots. A snapshot and its
// capability/criterion copies and threshold table are only ever written
// together; there is no partial-write path.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// CreateTree writes the snapshot record, its capability tree and its
// threshold table in a single transaction. On any failure nothing is left
// behind.
func (r *SnapshotRepository) CreateTree(ctx context.Context, snapshot *models.Snapshot, nodes []models.CapabilityNode, thresholds []models.LevelThreshold) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const snapQuery = `INSERT INTO snapshots (id, template_id, name, short_code, created_at)
        VALUES (:id, :template_id, :name, :short_code, :created_at)`
	if _, err := tx.NamedExecContext(ctx, snapQuery, snapshot); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if err := insertTree(ctx, tx, nodes); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := replaceThresholds(ctx, tx, models.SnapshotOwner(snapshot.ID), thresholds); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// FindByID returns one snapshot.
func (r *SnapshotRepository) FindByID(ctx context.Context, id string) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	const query = `SELECT id, template_id, name, short_code, created_at FROM snapshots WHERE id = $1`
	if err := r.db.GetContext(ctx, &snapshot, query, id); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListByTemplate returns snapshots cut from a template, newest first.
func (r *SnapshotRepository) ListByTemplate(ctx context.Context, templateID string) ([]models.Snapshot, error) {
	var snapshots []models.Snapshot
	const query = `SELECT id, template_id, name, short_code, created_at
        FROM snapshots WHERE template_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &snapshots, query, templateID); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

// Delete removes a snapshot together with its owned tree and thresholds.
// Evaluations recorded against the snapshot's criteria go with it, which is
// only acceptable when the owning cohort is being deleted.
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	steps := []string{
		`DELETE FROM capabilities WHERE owner_kind = 'SNAPSHOT' AND owner_id = $1`,
		`DELETE FROM level_thresholds WHERE owner_kind = 'SNAPSHOT' AND owner_id = $1`,
		`DELETE FROM snapshots WHERE id = $1`,
	}
	for _, query := range steps {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete snapshot: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot delete: %w", err)
	}
	return nil
}
