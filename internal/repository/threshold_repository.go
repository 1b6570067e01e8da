package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/competency-api/internal/models"
)

// ThresholdRepository persists level threshold tables keyed by owner.
type ThresholdRepository struct {
	db *sqlx.DB
}

// NewThresholdRepository creates a new threshold repository.
func NewThresholdRepository(db *sqlx.DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

// Replace swaps the owner's threshold table in one transaction. Passing an
// empty slice clears the table. Stale rows never coexist with new ones.
func (r *ThresholdRepository) Replace(ctx context.Context, owner models.RubricOwner, thresholds []models.LevelThreshold) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := replaceThresholds(ctx, tx, owner, thresholds); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit thresholds: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's table ordered by ascending level.
func (r *ThresholdRepository) ListByOwner(ctx context.Context, owner models.RubricOwner) ([]models.LevelThreshold, error) {
	return r.list(ctx, owner, "ASC")
}

// ListByOwnerDesc returns the owner's table ordered by descending level, the
// order the grade calculator scans in.
func (r *ThresholdRepository) ListByOwnerDesc(ctx context.Context, owner models.RubricOwner) ([]models.LevelThreshold, error) {
	return r.list(ctx, owner, "DESC")
}

func (r *ThresholdRepository) list(ctx context.Context, owner models.RubricOwner, order string) ([]models.LevelThreshold, error) {
	var thresholds []models.LevelThreshold
	query := fmt.Sprintf(`SELECT id, owner_kind, owner_id, level, min_critical, min_desirable
        FROM level_thresholds WHERE owner_kind = $1 AND owner_id = $2 ORDER BY level %s`, order)
	if err := r.db.SelectContext(ctx, &thresholds, query, owner.Kind, owner.ID); err != nil {
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	return thresholds, nil
}
