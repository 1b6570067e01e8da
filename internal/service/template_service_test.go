package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/competency-api/internal/models"
	appErrors "github.com/noah-isme/competency-api/pkg/errors"
)

type mockTemplateStore struct {
	templates  map[string]*models.RubricTemplate
	replaced   []models.CapabilityNode
	thresholds []models.LevelThreshold
	deleted    []string
}

func (m *mockTemplateStore) Create(ctx context.Context, template *models.RubricTemplate) error {
	if m.templates == nil {
		m.templates = make(map[string]*models.RubricTemplate)
	}
	m.templates[template.ID] = template
	return nil
}

func (m *mockTemplateStore) FindByID(ctx context.Context, id string) (*models.RubricTemplate, error) {
	if t, ok := m.templates[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTemplateStore) List(ctx context.Context) ([]models.RubricTemplate, error) {
	return nil, nil
}

func (m *mockTemplateStore) ReplaceStructure(ctx context.Context, templateID string, nodes []models.CapabilityNode, thresholds []models.LevelThreshold) error {
	m.replaced = nodes
	m.thresholds = thresholds
	return nil
}

func (m *mockTemplateStore) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockTreeStore struct {
	capabilities map[string]*models.Capability
	inserted     []*models.Criterion
	insertedCaps []*models.Capability
	tree         []models.CapabilityNode
}

func (m *mockTreeStore) InsertCapability(ctx context.Context, cap *models.Capability) error {
	m.insertedCaps = append(m.insertedCaps, cap)
	return nil
}

func (m *mockTreeStore) InsertCriterion(ctx context.Context, criterion *models.Criterion) error {
	m.inserted = append(m.inserted, criterion)
	return nil
}

func (m *mockTreeStore) FindCapability(ctx context.Context, id string) (*models.Capability, error) {
	if c, ok := m.capabilities[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTreeStore) ListTree(ctx context.Context, owner models.RubricOwner) ([]models.CapabilityNode, error) {
	return m.tree, nil
}

func (m *mockTreeStore) CountCriteria(ctx context.Context, owner models.RubricOwner) (models.CriterionCounts, error) {
	return models.CriterionCounts{}, nil
}

func newTemplateServiceForTest(store *mockTemplateStore, tree *mockTreeStore) *TemplateService {
	return NewTemplateService(store, tree, &mockThresholdStore{}, zap.NewNop())
}

func TestTemplateCreate(t *testing.T) {
	store := &mockTemplateStore{}
	svc := newTemplateServiceForTest(store, &mockTreeStore{})

	template, err := svc.Create(context.Background(), &CreateTemplateRequest{Name: "Backend Track", ShortCode: "BE"})
	require.NoError(t, err)
	assert.NotEmpty(t, template.ID)
	assert.Contains(t, store.templates, template.ID)

	_, err = svc.Create(context.Background(), &CreateTemplateRequest{Name: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAddCriterionRejectsSnapshotCapability(t *testing.T) {
	tree := &mockTreeStore{capabilities: map[string]*models.Capability{
		"frozen": {ID: "frozen", OwnerKind: models.OwnerSnapshot, OwnerID: "snap1", Description: "Collaboration"},
	}}
	svc := newTemplateServiceForTest(&mockTemplateStore{}, tree)

	_, err := svc.AddCriterion(context.Background(), "frozen", &AddCriterionRequest{Description: "Gives useful feedback", Weight: "CRITICAL"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, tree.inserted)
}

func TestAddCriterionToTemplateCapability(t *testing.T) {
	tree := &mockTreeStore{capabilities: map[string]*models.Capability{
		"cap1": {ID: "cap1", OwnerKind: models.OwnerTemplate, OwnerID: "tpl1", Description: "Service design"},
	}}
	svc := newTemplateServiceForTest(&mockTemplateStore{}, tree)

	criterion, err := svc.AddCriterion(context.Background(), "cap1", &AddCriterionRequest{Description: "Designs clean APIs", Weight: "CRITICAL"})
	require.NoError(t, err)
	assert.Equal(t, models.CriterionCritical, criterion.Weight)
	assert.Equal(t, "cap1", criterion.CapabilityID)
	require.Len(t, tree.inserted, 1)
}

func TestImportStructureRegeneratesThresholds(t *testing.T) {
	store := &mockTemplateStore{templates: map[string]*models.RubricTemplate{"tpl1": {ID: "tpl1", Name: "Backend Track"}}}
	svc := newTemplateServiceForTest(store, &mockTreeStore{})

	structure, err := svc.ImportStructure(context.Background(), "tpl1", &ImportStructureRequest{
		Capabilities: []ImportCapability{
			{
				Description: "Service design",
				Kind:        "TECHNICAL",
				Criteria: []ImportCriterion{
					{Description: "Designs clean APIs", Weight: "CRITICAL"},
					{Description: "Documents decisions", Weight: "DESIRABLE"},
				},
			},
			{
				Description: "Collaboration",
				Kind:        "SOCIO_EMOTIONAL",
				Criteria: []ImportCriterion{
					{Description: "Gives useful feedback", Weight: "CRITICAL"},
				},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, structure.Capabilities, 2)
	assert.Equal(t, 0, structure.Capabilities[0].Capability.Position)
	assert.Equal(t, 1, structure.Capabilities[1].Capability.Position)
	assert.Equal(t, structure.Capabilities[0].Capability.ID, structure.Capabilities[0].Criteria[0].CapabilityID)

	// 2 critical, 1 desirable.
	require.Len(t, structure.Thresholds, 20)
	assert.Equal(t, structure.Thresholds, store.thresholds)
	assert.Equal(t, 2, thresholdByLevel(t, structure.Thresholds, 50).MinCritical)
	assert.Equal(t, 1, thresholdByLevel(t, structure.Thresholds, 100).MinDesirable)
}

func TestImportStructureWithoutCriticalClearsThresholds(t *testing.T) {
	store := &mockTemplateStore{templates: map[string]*models.RubricTemplate{"tpl1": {ID: "tpl1", Name: "Draft"}}}
	svc := newTemplateServiceForTest(store, &mockTreeStore{})

	structure, err := svc.ImportStructure(context.Background(), "tpl1", &ImportStructureRequest{
		Capabilities: []ImportCapability{
			{
				Description: "Collaboration",
				Kind:        "SOCIO_EMOTIONAL",
				Criteria:    []ImportCriterion{{Description: "Documents decisions", Weight: "DESIRABLE"}},
			},
		},
	})
	require.NoError(t, err, "a draft without criticals still imports")
	assert.Empty(t, structure.Thresholds)
	assert.Empty(t, store.thresholds)
}

func TestCoverageGaps(t *testing.T) {
	store := &mockTemplateStore{templates: map[string]*models.RubricTemplate{"tpl1": {ID: "tpl1", Name: "Backend Track"}}}
	tree := &mockTreeStore{tree: []models.CapabilityNode{
		{
			Capability: models.Capability{ID: "cap1", Description: "Service design"},
			Criteria:   []models.Criterion{{ID: "cr1", Weight: models.CriterionCritical}},
		},
		{
			Capability: models.Capability{ID: "cap2", Description: "Collaboration"},
			Criteria:   []models.Criterion{{ID: "cr2", Weight: models.CriterionDesirable}},
		},
	}}
	svc := newTemplateServiceForTest(store, tree)

	gaps, err := svc.CoverageGaps(context.Background(), "tpl1")
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, "cap2", gaps[0].CapabilityID)
	assert.Equal(t, "Collaboration", gaps[0].CapabilityDescription)
}
