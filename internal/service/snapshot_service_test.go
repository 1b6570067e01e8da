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

type mockTreeReader struct {
	trees map[models.RubricOwner][]models.CapabilityNode
}

func (m *mockTreeReader) ListTree(ctx context.Context, owner models.RubricOwner) ([]models.CapabilityNode, error) {
	return m.trees[owner], nil
}

type mockSnapshotStore struct {
	created    *models.Snapshot
	nodes      []models.CapabilityNode
	thresholds []models.LevelThreshold
	snapshots  map[string]*models.Snapshot
	deleted    []string
}

func (m *mockSnapshotStore) CreateTree(ctx context.Context, snapshot *models.Snapshot, nodes []models.CapabilityNode, thresholds []models.LevelThreshold) error {
	m.created = snapshot
	m.nodes = nodes
	m.thresholds = thresholds
	return nil
}

func (m *mockSnapshotStore) FindByID(ctx context.Context, id string) (*models.Snapshot, error) {
	if s, ok := m.snapshots[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSnapshotStore) ListByTemplate(ctx context.Context, templateID string) ([]models.Snapshot, error) {
	return nil, nil
}

func (m *mockSnapshotStore) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func templateTree(templateID string) []models.CapabilityNode {
	return []models.CapabilityNode{
		{
			Capability: models.Capability{ID: "cap1", OwnerKind: models.OwnerTemplate, OwnerID: templateID, Description: "Service design", Kind: models.CapabilityTechnical, Position: 0},
			Criteria: []models.Criterion{
				{ID: "cr1", CapabilityID: "cap1", Description: "Designs clean APIs", Weight: models.CriterionCritical, Position: 0},
				{ID: "cr2", CapabilityID: "cap1", Description: "Documents decisions", Weight: models.CriterionDesirable, Position: 1},
			},
		},
		{
			Capability: models.Capability{ID: "cap2", OwnerKind: models.OwnerTemplate, OwnerID: templateID, Description: "Collaboration", Kind: models.CapabilitySocioEmotional, Position: 1},
			Criteria: []models.Criterion{
				{ID: "cr3", CapabilityID: "cap2", Description: "Gives useful feedback", Weight: models.CriterionCritical, Position: 0},
			},
		},
	}
}

func newSnapshotServiceForTest(templates *mockTemplateReader, trees *mockTreeReader, store *mockSnapshotStore, thresholds *mockThresholdStore) *SnapshotService {
	return NewSnapshotService(templates, trees, store, thresholds, zap.NewNop())
}

func TestSnapshotBuildDeepCopiesTree(t *testing.T) {
	templates := &mockTemplateReader{templates: map[string]*models.RubricTemplate{"tpl1": {ID: "tpl1", Name: "Backend Track", ShortCode: "BE"}}}
	trees := &mockTreeReader{trees: map[models.RubricOwner][]models.CapabilityNode{models.TemplateOwner("tpl1"): templateTree("tpl1")}}
	store := &mockSnapshotStore{}
	svc := newSnapshotServiceForTest(templates, trees, store, &mockThresholdStore{})

	structure, err := svc.Build(context.Background(), "tpl1")
	require.NoError(t, err)
	require.NotNil(t, store.created)

	assert.Equal(t, "tpl1", structure.Snapshot.TemplateID)
	assert.Equal(t, "Backend Track", structure.Snapshot.Name)
	require.Len(t, structure.Capabilities, 2)

	// Copies carry fresh ids and snapshot ownership; the source is untouched.
	for i, node := range structure.Capabilities {
		assert.NotEqual(t, templateTree("tpl1")[i].Capability.ID, node.Capability.ID)
		assert.Equal(t, models.OwnerSnapshot, node.Capability.OwnerKind)
		assert.Equal(t, structure.Snapshot.ID, node.Capability.OwnerID)
		assert.Equal(t, i, node.Capability.Position)
		for j, criterion := range node.Criteria {
			assert.Equal(t, node.Capability.ID, criterion.CapabilityID)
			assert.Equal(t, j, criterion.Position)
		}
	}
	assert.Equal(t, "Designs clean APIs", structure.Capabilities[0].Criteria[0].Description)
	assert.Equal(t, models.CriterionDesirable, structure.Capabilities[0].Criteria[1].Weight)

	// Thresholds derived from the copied counts: 2 critical, 1 desirable.
	require.Len(t, structure.Thresholds, 20)
	assert.Equal(t, 2, thresholdByLevel(t, structure.Thresholds, 50).MinCritical)
	assert.Equal(t, 1, thresholdByLevel(t, structure.Thresholds, 100).MinDesirable)
	for _, row := range structure.Thresholds {
		assert.Equal(t, structure.Snapshot.ID, row.OwnerID)
		assert.Equal(t, models.OwnerSnapshot, row.OwnerKind)
	}
}

func TestSnapshotBuildStructurallyDeterministic(t *testing.T) {
	templates := &mockTemplateReader{templates: map[string]*models.RubricTemplate{"tpl1": {ID: "tpl1", Name: "Backend Track", ShortCode: "BE"}}}
	trees := &mockTreeReader{trees: map[models.RubricOwner][]models.CapabilityNode{models.TemplateOwner("tpl1"): templateTree("tpl1")}}
	svc := newSnapshotServiceForTest(templates, trees, &mockSnapshotStore{}, &mockThresholdStore{})

	first, err := svc.Build(context.Background(), "tpl1")
	require.NoError(t, err)
	second, err := svc.Build(context.Background(), "tpl1")
	require.NoError(t, err)

	assert.NotEqual(t, first.Snapshot.ID, second.Snapshot.ID)
	require.Len(t, second.Capabilities, len(first.Capabilities))
	for i := range first.Capabilities {
		assert.Equal(t, first.Capabilities[i].Capability.Description, second.Capabilities[i].Capability.Description)
		require.Len(t, second.Capabilities[i].Criteria, len(first.Capabilities[i].Criteria))
		for j := range first.Capabilities[i].Criteria {
			assert.Equal(t, first.Capabilities[i].Criteria[j].Description, second.Capabilities[i].Criteria[j].Description)
			assert.Equal(t, first.Capabilities[i].Criteria[j].Weight, second.Capabilities[i].Criteria[j].Weight)
		}
	}
	for i := range first.Thresholds {
		assert.Equal(t, first.Thresholds[i].Level, second.Thresholds[i].Level)
		assert.Equal(t, first.Thresholds[i].MinCritical, second.Thresholds[i].MinCritical)
		assert.Equal(t, first.Thresholds[i].MinDesirable, second.Thresholds[i].MinDesirable)
	}
}

func TestSnapshotBuildEmptyStructure(t *testing.T) {
	templates := &mockTemplateReader{templates: map[string]*models.RubricTemplate{"tpl1": {ID: "tpl1", Name: "Empty", ShortCode: "EM"}}}
	trees := &mockTreeReader{trees: map[models.RubricOwner][]models.CapabilityNode{
		models.TemplateOwner("tpl1"): {{Capability: models.Capability{ID: "cap1", Description: "No criteria yet"}}},
	}}
	svc := newSnapshotServiceForTest(templates, trees, &mockSnapshotStore{}, &mockThresholdStore{})

	_, err := svc.Build(context.Background(), "tpl1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptyStructure.Code, appErrors.FromError(err).Code)
}

func TestSnapshotBuildRequiresCriticalCoverage(t *testing.T) {
	tree := templateTree("tpl1")
	// Second capability keeps only a desirable criterion.
	tree[1].Criteria = []models.Criterion{
		{ID: "cr3", CapabilityID: "cap2", Description: "Gives useful feedback", Weight: models.CriterionDesirable, Position: 0},
	}
	templates := &mockTemplateReader{templates: map[string]*models.RubricTemplate{"tpl1": {ID: "tpl1", Name: "Backend Track", ShortCode: "BE"}}}
	trees := &mockTreeReader{trees: map[models.RubricOwner][]models.CapabilityNode{models.TemplateOwner("tpl1"): tree}}
	svc := newSnapshotServiceForTest(templates, trees, &mockSnapshotStore{}, &mockThresholdStore{})

	_, err := svc.Build(context.Background(), "tpl1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoCriticalCriteria.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "Collaboration")
}

func TestSnapshotBuildTemplateNotFound(t *testing.T) {
	svc := newSnapshotServiceForTest(&mockTemplateReader{}, &mockTreeReader{}, &mockSnapshotStore{}, &mockThresholdStore{})
	_, err := svc.Build(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSnapshotStructure(t *testing.T) {
	store := &mockSnapshotStore{snapshots: map[string]*models.Snapshot{"snap1": {ID: "snap1", TemplateID: "tpl1", Name: "Backend Track"}}}
	trees := &mockTreeReader{trees: map[models.RubricOwner][]models.CapabilityNode{models.SnapshotOwner("snap1"): templateTree("tpl1")}}
	thresholds := &mockThresholdStore{stored: []models.LevelThreshold{{Level: 5, MinCritical: 1}}}
	svc := newSnapshotServiceForTest(&mockTemplateReader{}, trees, store, thresholds)

	structure, err := svc.Structure(context.Background(), "snap1")
	require.NoError(t, err)
	assert.Equal(t, "snap1", structure.Snapshot.ID)
	assert.Len(t, structure.Capabilities, 2)
	assert.Len(t, structure.Thresholds, 1)
}
