package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/competency-api/internal/models"
	appErrors "github.com/noah-isme/competency-api/pkg/errors"
)

type snapshotTemplateReader interface {
	FindByID(ctx context.Context, id string) (*models.RubricTemplate, error)
}

type snapshotTreeReader interface {
	ListTree(ctx context.Context, owner models.RubricOwner) ([]models.CapabilityNode, error)
}

type snapshotThresholdReader interface {
	ListByOwner(ctx context.Context, owner models.RubricOwner) ([]models.LevelThreshold, error)
}

type snapshotStore interface {
	CreateTree(ctx context.Context, snapshot *models.Snapshot, nodes []models.CapabilityNode, thresholds []models.LevelThreshold) error
	FindByID(ctx context.Context, id string) (*models.Snapshot, error)
	ListByTemplate(ctx context.Context, templateID string) ([]models.Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// SnapshotService turns a mutable template into an immutable snapshot that
// cohorts and evaluations reference from then on.
type SnapshotService struct {
	templates  snapshotTemplateReader
	rubrics    snapshotTreeReader
	snapshots  snapshotStore
	thresholds snapshotThresholdReader
	logger     *zap.Logger
}

// NewSnapshotService constructs SnapshotService.
func NewSnapshotService(templates snapshotTemplateReader, rubrics snapshotTreeReader, snapshots snapshotStore, thresholds snapshotThresholdReader, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{templates: templates, rubrics: rubrics, snapshots: snapshots, thresholds: thresholds, logger: logger}
}

// Build deep-copies the template's current capability/criterion tree into a
// new snapshot, derives the snapshot's threshold table from the copied
// criterion counts, and commits the whole graph atomically. The copies share
// nothing with the template; only the origin template id is retained, for
// audit. Two concurrent builds for the same template simply produce two
// independent snapshots.
//
// Beyond requiring a non-empty structure, Build also refuses templates where
// any capability lacks a critical criterion. That is stricter than the
// builder's minimum contract, on purpose: a capability without a critical
// criterion can never contribute to leveling, so cutting it into an immutable
// snapshot would freeze a hole into the rubric.
func (s *SnapshotService) Build(ctx context.Context, templateID string) (*models.SnapshotStructure, error) {
	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}

	tree, err := s.rubrics.ListTree(ctx, models.TemplateOwner(templateID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template structure")
	}
	if !hasCriteria(tree) {
		return nil, appErrors.Clone(appErrors.ErrEmptyStructure, "template has no capabilities with criteria")
	}
	if uncovered := firstUncovered(tree); uncovered != "" {
		return nil, appErrors.Clone(appErrors.ErrNoCriticalCriteria,
			"capability "+uncovered+" has no critical criterion")
	}

	snapshot := &models.Snapshot{
		ID:         uuid.NewString(),
		TemplateID: template.ID,
		Name:       template.Name,
		ShortCode:  template.ShortCode,
		CreatedAt:  time.Now().UTC(),
	}

	nodes, counts := copyTree(snapshot.ID, tree)
	thresholds, err := BuildThresholdTable(models.SnapshotOwner(snapshot.ID), counts)
	if err != nil {
		return nil, err
	}

	if err := s.snapshots.CreateTree(ctx, snapshot, nodes, thresholds); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store snapshot")
	}

	s.logger.Info("snapshot created",
		zap.String("snapshot_id", snapshot.ID),
		zap.String("template_id", template.ID),
		zap.Int("capabilities", len(nodes)),
		zap.Int("criteria", counts.Total()))

	return &models.SnapshotStructure{Snapshot: *snapshot, Capabilities: nodes, Thresholds: thresholds}, nil
}

// Get returns snapshot metadata.
func (s *SnapshotService) Get(ctx context.Context, id string) (*models.Snapshot, error) {
	snapshot, err := s.snapshots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	return snapshot, nil
}

// Structure returns the full object graph of a snapshot.
func (s *SnapshotService) Structure(ctx context.Context, id string) (*models.SnapshotStructure, error) {
	snapshot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	nodes, err := s.rubrics.ListTree(ctx, models.SnapshotOwner(id))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot structure")
	}
	table, err := s.thresholds.ListByOwner(ctx, models.SnapshotOwner(id))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot thresholds")
	}
	return &models.SnapshotStructure{Snapshot: *snapshot, Capabilities: nodes, Thresholds: table}, nil
}

// ListByTemplate returns the snapshots cut from a template, newest first.
func (s *SnapshotService) ListByTemplate(ctx context.Context, templateID string) ([]models.Snapshot, error) {
	snapshots, err := s.snapshots.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list snapshots")
	}
	return snapshots, nil
}

// Delete removes a snapshot and everything it owns. Only called when the
// owning cohort goes away.
func (s *SnapshotService) Delete(ctx context.Context, id string) error {
	if err := s.snapshots.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete snapshot")
	}
	return nil
}

// firstUncovered returns the description of the first capability with no
// critical criterion, or "" when every capability is covered. Snapshots are
// only cut from fully covered templates.
func firstUncovered(tree []models.CapabilityNode) string {
	for _, node := range tree {
		covered := false
		for _, criterion := range node.Criteria {
			if criterion.Weight == models.CriterionCritical {
				covered = true
				break
			}
		}
		if !covered {
			return node.Capability.Description
		}
	}
	return ""
}

func hasCriteria(tree []models.CapabilityNode) bool {
	for _, node := range tree {
		if len(node.Criteria) > 0 {
			return true
		}
	}
	return false
}

// copyTree builds snapshot-owned copies of the template's capabilities and
// criteria, preserving insertion order, and tallies the criterion counts of
// the copy.
func copyTree(snapshotID string, tree []models.CapabilityNode) ([]models.CapabilityNode, models.CriterionCounts) {
	now := time.Now().UTC()
	var counts models.CriterionCounts
	nodes := make([]models.CapabilityNode, 0, len(tree))
	for i, source := range tree {
		cap := models.Capability{
			ID:          uuid.NewString(),
			OwnerKind:   models.OwnerSnapshot,
			OwnerID:     snapshotID,
			Description: source.Capability.Description,
			Kind:        source.Capability.Kind,
			Position:    i,
			CreatedAt:   now,
		}
		criteria := make([]models.Criterion, 0, len(source.Criteria))
		for j, sourceCriterion := range source.Criteria {
			criteria = append(criteria, models.Criterion{
				ID:           uuid.NewString(),
				CapabilityID: cap.ID,
				Description:  sourceCriterion.Description,
				Weight:       sourceCriterion.Weight,
				Position:     j,
				CreatedAt:    now,
			})
			if sourceCriterion.Weight == models.CriterionCritical {
				counts.Critical++
			} else {
				counts.Desirable++
			}
		}
		nodes = append(nodes, models.CapabilityNode{Capability: cap, Criteria: criteria})
	}
	return nodes, counts
}
