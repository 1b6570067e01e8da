package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/competency-api/internal/models"
)

// RubricRepository reads and incrementally edits capability/criterion trees.
// Which container a row belongs to is always selected through an explicit
// owner reference, never inferred.
type RubricRepository struct {
	db *sqlx.DB
}

// NewRubricRepository creates a new rubric repository.
func NewRubricRepository(db *sqlx.DB) *RubricRepository {
	return &RubricRepository{db: db}
}

// InsertCapability appends a capability to a live template. Snapshot-owned
// rows are only ever written through SnapshotRepository.CreateTree.
func (r *RubricRepository) InsertCapability(ctx context.Context, cap *models.Capability) error {
	if cap.ID == "" {
		cap.ID = uuid.NewString()
	}
	cap.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO capabilities (id, owner_kind, owner_id, description, kind, position, created_at)
        VALUES (:id, :owner_kind, :owner_id, :description, :kind,
            (SELECT COALESCE(MAX(position), -1) + 1 FROM capabilities WHERE owner_kind = :owner_kind AND owner_id = :owner_id),
            :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cap); err != nil {
		return fmt.Errorf("insert capability: %w", err)
	}
	return nil
}

// InsertCriterion appends a criterion under a capability.
func (r *RubricRepository) InsertCriterion(ctx context.Context, criterion *models.Criterion) error {
	if criterion.ID == "" {
		criterion.ID = uuid.NewString()
	}
	criterion.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO criteria (id, capability_id, description, weight, position, created_at)
        VALUES (:id, :capability_id, :description, :weight,
            (SELECT COALESCE(MAX(position), -1) + 1 FROM criteria WHERE capability_id = :capability_id),
            :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, criterion); err != nil {
		return fmt.Errorf("insert criterion: %w", err)
	}
	return nil
}

// FindCapability returns one capability row.
func (r *RubricRepository) FindCapability(ctx context.Context, id string) (*models.Capability, error) {
	var cap models.Capability
	const query = `SELECT id, owner_kind, owner_id, description, kind, position, created_at
        FROM capabilities WHERE id = $1`
	if err := r.db.GetContext(ctx, &cap, query, id); err != nil {
		return nil, err
	}
	return &cap, nil
}

// ListTree returns the owner's capabilities with their criteria in insertion
// order.
func (r *RubricRepository) ListTree(ctx context.Context, owner models.RubricOwner) ([]models.CapabilityNode, error) {
	var caps []models.Capability
	const capQuery = `SELECT id, owner_kind, owner_id, description, kind, position, created_at
        FROM capabilities WHERE owner_kind = $1 AND owner_id = $2 ORDER BY position, created_at`
	if err := r.db.SelectContext(ctx, &caps, capQuery, owner.Kind, owner.ID); err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	if len(caps) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(caps))
	args := make([]interface{}, len(caps))
	for i, cap := range caps {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = cap.ID
	}
	var criteria []models.Criterion
	critQuery := fmt.Sprintf(`SELECT id, capability_id, description, weight, position, created_at
        FROM criteria WHERE capability_id IN (%s) ORDER BY position, created_at`, strings.Join(placeholders, ","))
	if err := r.db.SelectContext(ctx, &criteria, critQuery, args...); err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}

	byCapability := make(map[string][]models.Criterion, len(caps))
	for _, criterion := range criteria {
		byCapability[criterion.CapabilityID] = append(byCapability[criterion.CapabilityID], criterion)
	}
	nodes := make([]models.CapabilityNode, 0, len(caps))
	for _, cap := range caps {
		nodes = append(nodes, models.CapabilityNode{Capability: cap, Criteria: byCapability[cap.ID]})
	}
	return nodes, nil
}

// CountCriteria tallies the owner's criteria by weight class.
func (r *RubricRepository) CountCriteria(ctx context.Context, owner models.RubricOwner) (models.CriterionCounts, error) {
	var counts models.CriterionCounts
	const query = `SELECT
            COUNT(*) FILTER (WHERE cr.weight = 'CRITICAL')  AS critical,
            COUNT(*) FILTER (WHERE cr.weight = 'DESIRABLE') AS desirable
        FROM criteria cr
        JOIN capabilities c ON c.id = cr.capability_id
        WHERE c.owner_kind = $1 AND c.owner_id = $2`
	if err := r.db.GetContext(ctx, &counts, query, owner.Kind, owner.ID); err != nil {
		return counts, fmt.Errorf("count criteria: %w", err)
	}
	return counts, nil
}
