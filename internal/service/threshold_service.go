package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/competency-api/internal/models"
	appErrors "github.com/noah-isme/competency-api/pkg/errors"
)

type thresholdStore interface {
	Replace(ctx context.Context, owner models.RubricOwner, thresholds []models.LevelThreshold) error
	ListByOwner(ctx context.Context, owner models.RubricOwner) ([]models.LevelThreshold, error)
}

type thresholdCounter interface {
	CountCriteria(ctx context.Context, owner models.RubricOwner) (models.CriterionCounts, error)
}

type thresholdTemplateReader interface {
	FindByID(ctx context.Context, id string) (*models.RubricTemplate, error)
}

// ThresholdService derives and persists level threshold tables.
type ThresholdService struct {
	thresholds thresholdStore
	rubrics    thresholdCounter
	templates  thresholdTemplateReader
	logger     *zap.Logger
}

// NewThresholdService constructs ThresholdService.
func NewThresholdService(thresholds thresholdStore, rubrics thresholdCounter, templates thresholdTemplateReader, logger *zap.Logger) *ThresholdService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThresholdService{thresholds: thresholds, rubrics: rubrics, templates: templates, logger: logger}
}

// BuildThresholdTable computes the threshold table for the given criterion
// counts. Levels run 5..100 in steps of 5, in two phases:
//
//   - up to level 50 each step requires a proportional share of the critical
//     criteria (never zero);
//   - above 50 every critical criterion is required and each step toward 100
//     asks for one more desirable criterion, bottoming out at zero when the
//     rubric has fewer desirables than remaining steps.
//
// Both columns are non-decreasing in level by construction. A rubric with no
// critical criteria cannot be leveled.
func BuildThresholdTable(owner models.RubricOwner, counts models.CriterionCounts) ([]models.LevelThreshold, error) {
	if counts.Critical == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoCriticalCriteria, "")
	}
	table := make([]models.LevelThreshold, 0, models.LevelMax/models.LevelStep)
	for level := models.LevelStep; level <= models.LevelMax; level += models.LevelStep {
		threshold := models.LevelThreshold{
			ID:        uuid.NewString(),
			OwnerKind: owner.Kind,
			OwnerID:   owner.ID,
			Level:     level,
		}
		if level <= models.LevelCriticalCap {
			minCritical := int(math.Ceil(float64(level) / float64(models.LevelCriticalCap) * float64(counts.Critical)))
			if minCritical == 0 {
				minCritical = 1
			}
			threshold.MinCritical = minCritical
		} else {
			threshold.MinCritical = counts.Critical
			stepsBelowMax := (models.LevelMax - level) / models.LevelStep
			minDesirable := counts.Desirable - stepsBelowMax
			if minDesirable < 0 {
				minDesirable = 0
			}
			threshold.MinDesirable = minDesirable
		}
		table = append(table, threshold)
	}
	return table, nil
}

// GeneratePreview regenerates the preview threshold table of a live
// template from its current criterion counts. The old table is deleted and
// the new one written in a single transaction, so stale thresholds never
// coexist with new counts.
func (s *ThresholdService) GeneratePreview(ctx context.Context, templateID string) ([]models.LevelThreshold, error) {
	if _, err := s.templates.FindByID(ctx, templateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	owner := models.TemplateOwner(templateID)
	counts, err := s.rubrics.CountCriteria(ctx, owner)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count criteria")
	}
	table, err := BuildThresholdTable(owner, counts)
	if err != nil {
		return nil, err
	}
	if err := s.thresholds.Replace(ctx, owner, table); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store thresholds")
	}
	s.logger.Info("threshold table regenerated",
		zap.String("template_id", templateID),
		zap.Int("critical", counts.Critical),
		zap.Int("desirable", counts.Desirable))
	return table, nil
}

// Preview computes a table for arbitrary counts without persisting anything.
func (s *ThresholdService) Preview(totalCritical, totalDesirable int) ([]models.LevelThreshold, error) {
	return BuildThresholdTable(models.RubricOwner{}, models.CriterionCounts{Critical: totalCritical, Desirable: totalDesirable})
}

// ListByOwner returns the stored table for a template or snapshot in
// ascending level order.
func (s *ThresholdService) ListByOwner(ctx context.Context, owner models.RubricOwner) ([]models.LevelThreshold, error) {
	table, err := s.thresholds.ListByOwner(ctx, owner)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list thresholds")
	}
	return table, nil
}
