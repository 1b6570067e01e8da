package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/competency-api/internal/models"
	appErrors "github.com/noah-isme/competency-api/pkg/errors"
)

type templateStore interface {
	Create(ctx context.Context, template *models.RubricTemplate) error
	FindByID(ctx context.Context, id string) (*models.RubricTemplate, error)
	List(ctx context.Context) ([]models.RubricTemplate, error)
	ReplaceStructure(ctx context.Context, templateID string, nodes []models.CapabilityNode, thresholds []models.LevelThreshold) error
	Delete(ctx context.Context, id string) error
}

type templateTreeStore interface {
	InsertCapability(ctx context.Context, cap *models.Capability) error
	InsertCriterion(ctx context.Context, criterion *models.Criterion) error
	FindCapability(ctx context.Context, id string) (*models.Capability, error)
	ListTree(ctx context.Context, owner models.RubricOwner) ([]models.CapabilityNode, error)
	CountCriteria(ctx context.Context, owner models.RubricOwner) (models.CriterionCounts, error)
}

type templateThresholdReader interface {
	ListByOwner(ctx context.Context, owner models.RubricOwner) ([]models.LevelThreshold, error)
}

// CreateTemplateRequest names a new rubric template.
type CreateTemplateRequest struct {
	Name      string `json:"name" validate:"required,min=3,max=150"`
	ShortCode string `json:"short_code" validate:"required,min=2,max=20"`
}

// AddCapabilityRequest appends a capability to a template.
type AddCapabilityRequest struct {
	Description string `json:"description" validate:"required,min=2,max=500"`
	Kind        string `json:"kind" validate:"required,oneof=TECHNICAL SOCIO_EMOTIONAL"`
}

// AddCriterionRequest appends a criterion to a capability.
type AddCriterionRequest struct {
	Description string `json:"description" validate:"required,min=3,max=500"`
	Weight      string `json:"weight" validate:"required,oneof=CRITICAL DESIRABLE"`
}

// ImportCriterion is one criterion of an imported structure.
type ImportCriterion struct {
	Description string `json:"description" validate:"required,min=3,max=500"`
	Weight      string `json:"weight" validate:"required,oneof=CRITICAL DESIRABLE"`
}

// ImportCapability is one capability of an imported structure.
type ImportCapability struct {
	Description string            `json:"description" validate:"required,min=2,max=500"`
	Kind        string            `json:"kind" validate:"required,oneof=TECHNICAL SOCIO_EMOTIONAL"`
	Criteria    []ImportCriterion `json:"criteria" validate:"dive"`
}

// ImportStructureRequest replaces a template's whole tree in one shot.
type ImportStructureRequest struct {
	Capabilities []ImportCapability `json:"capabilities" validate:"required,min=1,dive"`
}

// CoverageGap names a capability that has no critical criterion.
type CoverageGap struct {
	CapabilityID          string `json:"capability_id"`
	CapabilityDescription string `json:"capability_description"`
}

// TemplateService manages the mutable rubric templates that snapshots are cut
// from. Snapshot-owned structure is immutable and every edit path here guards
// against it.
type TemplateService struct {
	templates  templateStore
	rubrics    templateTreeStore
	thresholds templateThresholdReader
	logger     *zap.Logger
	validator  *validator.Validate
}

// NewTemplateService constructs TemplateService.
func NewTemplateService(templates templateStore, rubrics templateTreeStore, thresholds templateThresholdReader, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{
		templates:  templates,
		rubrics:    rubrics,
		thresholds: thresholds,
		logger:     logger,
		validator:  validator.New(),
	}
}

// Create registers an empty template.
func (s *TemplateService) Create(ctx context.Context, req *CreateTemplateRequest) (*models.RubricTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	template := &models.RubricTemplate{
		ID:        uuid.NewString(),
		Name:      req.Name,
		ShortCode: req.ShortCode,
	}
	if err := s.templates.Create(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	s.logger.Info("template created", zap.String("template_id", template.ID), zap.String("short_code", template.ShortCode))
	return template, nil
}

// Get returns one template by id.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.RubricTemplate, error) {
	template, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return template, nil
}

// List returns all templates.
func (s *TemplateService) List(ctx context.Context) ([]models.RubricTemplate, error) {
	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// AddCapability appends a capability to the template's tree.
func (s *TemplateService) AddCapability(ctx context.Context, templateID string, req *AddCapabilityRequest) (*models.Capability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid capability payload")
	}
	if _, err := s.Get(ctx, templateID); err != nil {
		return nil, err
	}
	capability := &models.Capability{
		ID:          uuid.NewString(),
		OwnerKind:   models.OwnerTemplate,
		OwnerID:     templateID,
		Description: req.Description,
		Kind:        models.CapabilityKind(req.Kind),
	}
	if err := s.rubrics.InsertCapability(ctx, capability); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add capability")
	}
	return capability, nil
}

// AddCriterion appends a criterion to a capability. The capability must
// belong to a template; snapshot structure never changes after the cut.
func (s *TemplateService) AddCriterion(ctx context.Context, capabilityID string, req *AddCriterionRequest) (*models.Criterion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid criterion payload")
	}
	capability, err := s.rubrics.FindCapability(ctx, capabilityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "capability not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load capability")
	}
	if capability.OwnerKind != models.OwnerTemplate {
		return nil, appErrors.Clone(appErrors.ErrConflict, "snapshot structure is immutable")
	}
	criterion := &models.Criterion{
		ID:           uuid.NewString(),
		CapabilityID: capabilityID,
		Description:  req.Description,
		Weight:       models.CriterionWeight(req.Weight),
	}
	if err := s.rubrics.InsertCriterion(ctx, criterion); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add criterion")
	}
	return criterion, nil
}

// ImportStructure replaces the template's whole tree with the supplied one
// and regenerates its threshold table from the new criterion counts, all in
// one transaction. A structure with no critical criteria imports with an
// empty table rather than failing, so drafts can be saved incrementally.
func (s *TemplateService) ImportStructure(ctx context.Context, templateID string, req *ImportStructureRequest) (*models.TemplateStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid structure payload")
	}
	template, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	nodes := make([]models.CapabilityNode, 0, len(req.Capabilities))
	var counts models.CriterionCounts
	for i, imported := range req.Capabilities {
		capability := models.Capability{
			ID:          uuid.NewString(),
			OwnerKind:   models.OwnerTemplate,
			OwnerID:     templateID,
			Description: imported.Description,
			Kind:        models.CapabilityKind(imported.Kind),
			Position:    i,
		}
		node := models.CapabilityNode{Capability: capability, Criteria: make([]models.Criterion, 0, len(imported.Criteria))}
		for j, c := range imported.Criteria {
			weight := models.CriterionWeight(c.Weight)
			switch weight {
			case models.CriterionCritical:
				counts.Critical++
			case models.CriterionDesirable:
				counts.Desirable++
			}
			node.Criteria = append(node.Criteria, models.Criterion{
				ID:           uuid.NewString(),
				CapabilityID: capability.ID,
				Description:  c.Description,
				Weight:       weight,
				Position:     j,
			})
		}
		nodes = append(nodes, node)
	}

	thresholds := []models.LevelThreshold{}
	if counts.Critical > 0 {
		thresholds, err = BuildThresholdTable(models.TemplateOwner(templateID), counts)
		if err != nil {
			return nil, err
		}
	}

	if err := s.templates.ReplaceStructure(ctx, templateID, nodes, thresholds); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import structure")
	}
	s.logger.Info("template structure imported",
		zap.String("template_id", templateID),
		zap.Int("capabilities", len(nodes)),
		zap.Int("critical", counts.Critical),
		zap.Int("desirable", counts.Desirable))
	return &models.TemplateStructure{Template: *template, Capabilities: nodes, Thresholds: thresholds}, nil
}

// Structure returns the template's full editable state.
func (s *TemplateService) Structure(ctx context.Context, templateID string) (*models.TemplateStructure, error) {
	template, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	owner := models.TemplateOwner(templateID)
	nodes, err := s.rubrics.ListTree(ctx, owner)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template structure")
	}
	table, err := s.thresholds.ListByOwner(ctx, owner)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template thresholds")
	}
	return &models.TemplateStructure{Template: *template, Capabilities: nodes, Thresholds: table}, nil
}

// CoverageGaps lists the template's capabilities that carry no critical
// criterion. An empty result means every capability contributes to leveling.
func (s *TemplateService) CoverageGaps(ctx context.Context, templateID string) ([]CoverageGap, error) {
	if _, err := s.Get(ctx, templateID); err != nil {
		return nil, err
	}
	nodes, err := s.rubrics.ListTree(ctx, models.TemplateOwner(templateID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template structure")
	}
	gaps := make([]CoverageGap, 0)
	for _, node := range nodes {
		covered := false
		for _, criterion := range node.Criteria {
			if criterion.Weight == models.CriterionCritical {
				covered = true
				break
			}
		}
		if !covered {
			gaps = append(gaps, CoverageGap{CapabilityID: node.Capability.ID, CapabilityDescription: node.Capability.Description})
		}
	}
	return gaps, nil
}

// Delete removes a template and everything it owns. Snapshots already cut
// from it are untouched.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.templates.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	s.logger.Info("template deleted", zap.String("template_id", id))
	return nil
}
