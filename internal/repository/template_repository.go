package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/competency-api/internal/models"
)

// TemplateRepository persists live rubric templates and their owned trees.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a new rubric template.
func (r *TemplateRepository) Create(ctx context.Context, template *models.RubricTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now
	const query = `INSERT INTO rubric_templates (id, name, short_code, created_at, updated_at)
        VALUES (:id, :name, :short_code, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// FindByID returns one template.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.RubricTemplate, error) {
	var template models.RubricTemplate
	const query = `SELECT id, name, short_code, created_at, updated_at FROM rubric_templates WHERE id = $1`
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// List returns all templates ordered by name.
func (r *TemplateRepository) List(ctx context.Context) ([]models.RubricTemplate, error) {
	var templates []models.RubricTemplate
	const query = `SELECT id, name, short_code, created_at, updated_at FROM rubric_templates ORDER BY name`
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// ReplaceStructure destructively swaps the template's capability/criterion
// tree and its preview threshold table in one transaction. Stale capability
// rows (and their criteria, via cascade) never coexist with the new tree.
func (r *TemplateRepository) ReplaceStructure(ctx context.Context, templateID string, nodes []models.CapabilityNode, thresholds []models.LevelThreshold) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM capabilities WHERE owner_kind = $1 AND owner_id = $2`,
		models.OwnerTemplate, templateID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear template tree: %w", err)
	}
	if err := insertTree(ctx, tx, nodes); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := replaceThresholds(ctx, tx, models.TemplateOwner(templateID), thresholds); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE rubric_templates SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), templateID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("touch template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template structure: %w", err)
	}
	return nil
}

// Delete removes a template together with its owned tree and preview
// thresholds.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	steps := []struct {
		query string
		args  []interface{}
	}{
		{`DELETE FROM capabilities WHERE owner_kind = $1 AND owner_id = $2`, []interface{}{models.OwnerTemplate, id}},
		{`DELETE FROM level_thresholds WHERE owner_kind = $1 AND owner_id = $2`, []interface{}{models.OwnerTemplate, id}},
		{`DELETE FROM rubric_templates WHERE id = $1`, []interface{}{id}},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step.query, step.args...); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete template: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template delete: %w", err)
	}
	return nil
}

// insertTree writes capability nodes and their criteria preserving insertion
// order. Shared by template replace and snapshot creation.
func insertTree(ctx context.Context, tx *sqlx.Tx, nodes []models.CapabilityNode) error {
	const capQuery = `INSERT INTO capabilities (id, owner_kind, owner_id, description, kind, position, created_at)
        VALUES (:id, :owner_kind, :owner_id, :description, :kind, :position, :created_at)`
	const critQuery = `INSERT INTO criteria (id, capability_id, description, weight, position, created_at)
        VALUES (:id, :capability_id, :description, :weight, :position, :created_at)`
	for i := range nodes {
		if _, err := tx.NamedExecContext(ctx, capQuery, nodes[i].Capability); err != nil {
			return fmt.Errorf("insert capability: %w", err)
		}
		for j := range nodes[i].Criteria {
			if _, err := tx.NamedExecContext(ctx, critQuery, nodes[i].Criteria[j]); err != nil {
				return fmt.Errorf("insert criterion: %w", err)
			}
		}
	}
	return nil
}

// replaceThresholds deletes any existing table for the owner and writes the
// new one inside the caller's transaction.
func replaceThresholds(ctx context.Context, tx *sqlx.Tx, owner models.RubricOwner, thresholds []models.LevelThreshold) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM level_thresholds WHERE owner_kind = $1 AND owner_id = $2`,
		owner.Kind, owner.ID); err != nil {
		return fmt.Errorf("clear thresholds: %w", err)
	}
	const query = `INSERT INTO level_thresholds (id, owner_kind, owner_id, level, min_critical, min_desirable)
        VALUES (:id, :owner_kind, :owner_id, :level, :min_critical, :min_desirable)`
	for i := range thresholds {
		if _, err := tx.NamedExecContext(ctx, query, thresholds[i]); err != nil {
			return fmt.Errorf("insert threshold: %w", err)
		}
	}
	return nil
}
