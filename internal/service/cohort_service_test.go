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

type mockCohortStore struct {
	cohorts  map[string]*models.Cohort
	teachers map[string][]string
	bound    map[string]string
}

func (m *mockCohortStore) Create(ctx context.Context, cohort *models.Cohort, teacherIDs []string) error {
	if m.cohorts == nil {
		m.cohorts = make(map[string]*models.Cohort)
		m.teachers = make(map[string][]string)
	}
	m.cohorts[cohort.ID] = cohort
	m.teachers[cohort.ID] = teacherIDs
	return nil
}

func (m *mockCohortStore) Update(ctx context.Context, cohort *models.Cohort, teacherIDs []string) error {
	m.cohorts[cohort.ID] = cohort
	m.teachers[cohort.ID] = teacherIDs
	return nil
}

func (m *mockCohortStore) BindSnapshot(ctx context.Context, cohortID, templateID, snapshotID string) error {
	if m.bound == nil {
		m.bound = make(map[string]string)
	}
	m.bound[cohortID] = snapshotID
	return nil
}

func (m *mockCohortStore) FindByID(ctx context.Context, id string) (*models.Cohort, error) {
	if c, ok := m.cohorts[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCohortStore) List(ctx context.Context) ([]models.Cohort, error) {
	out := make([]models.Cohort, 0, len(m.cohorts))
	for _, c := range m.cohorts {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCohortStore) ListByTeacher(ctx context.Context, userID string) ([]models.Cohort, error) {
	out := make([]models.Cohort, 0)
	for id, teacherIDs := range m.teachers {
		for _, tid := range teacherIDs {
			if tid == userID {
				out = append(out, *m.cohorts[id])
			}
		}
	}
	return out, nil
}

func (m *mockCohortStore) ListTeachers(ctx context.Context, cohortID string) ([]models.UserInfo, error) {
	return nil, nil
}

func (m *mockCohortStore) Delete(ctx context.Context, id string) error {
	delete(m.cohorts, id)
	return nil
}

type mockUserReader struct {
	users map[string]models.User
}

func (m *mockUserReader) FindAllByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type mockStudentStore struct {
	created  []*models.Student
	bulk     []models.Student
	rosters  map[string][]models.Student
	counters map[string]int
}

func (m *mockStudentStore) Create(ctx context.Context, student *models.Student) error {
	m.created = append(m.created, student)
	return nil
}

func (m *mockStudentStore) BulkInsert(ctx context.Context, students []models.Student) error {
	m.bulk = append(m.bulk, students...)
	return nil
}

func (m *mockStudentStore) ListByCohort(ctx context.Context, cohortID string) ([]models.Student, error) {
	return m.rosters[cohortID], nil
}

func (m *mockStudentStore) CountByCohort(ctx context.Context, cohortID string) (int, error) {
	return m.counters[cohortID], nil
}

type mockSnapshotBuilder struct {
	built []string
}

func (m *mockSnapshotBuilder) Build(ctx context.Context, templateID string) (*models.SnapshotStructure, error) {
	m.built = append(m.built, templateID)
	return &models.SnapshotStructure{Snapshot: models.Snapshot{ID: "snap-" + templateID, TemplateID: templateID}}, nil
}

func (m *mockSnapshotBuilder) Get(ctx context.Context, id string) (*models.Snapshot, error) {
	return &models.Snapshot{ID: id, Name: "Backend Track"}, nil
}

const (
	teacherID1 = "6b1e0b0a-0000-4000-8000-0000000000a1"
	teacherID2 = "6b1e0b0a-0000-4000-8000-0000000000a2"
	teacherID3 = "6b1e0b0a-0000-4000-8000-0000000000a3"
	managerID  = "6b1e0b0a-0000-4000-8000-0000000000b1"
)

func teacherUsers() *mockUserReader {
	return &mockUserReader{users: map[string]models.User{
		teacherID1: {ID: teacherID1, Role: models.RoleTeacher, Active: true},
		teacherID2: {ID: teacherID2, Role: models.RoleTeacher, Active: true},
		teacherID3: {ID: teacherID3, Role: models.RoleTeacher, Active: false},
		managerID:  {ID: managerID, Role: models.RoleManager, Active: true},
	}}
}

func newCohortServiceForTest(store *mockCohortStore, students *mockStudentStore, builder *mockSnapshotBuilder) *CohortService {
	return NewCohortService(store, teacherUsers(), students, builder, zap.NewNop())
}

func TestCohortCreateTeacherRules(t *testing.T) {
	store := &mockCohortStore{}
	svc := newCohortServiceForTest(store, &mockStudentStore{}, &mockSnapshotBuilder{})

	cohort, err := svc.Create(context.Background(), &SaveCohortRequest{Name: "Turma A", TermLabel: "2026.1", TeacherIDs: []string{teacherID1, teacherID2}})
	require.NoError(t, err)
	assert.Equal(t, []string{teacherID1, teacherID2}, store.teachers[cohort.ID])

	// Zero teachers.
	_, err = svc.Create(context.Background(), &SaveCohortRequest{Name: "Turma B", TermLabel: "2026.1", TeacherIDs: nil})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// Three teachers.
	_, err = svc.Create(context.Background(), &SaveCohortRequest{Name: "Turma C", TermLabel: "2026.1", TeacherIDs: []string{teacherID1, teacherID2, managerID}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// A manager is not a teacher.
	_, err = svc.Create(context.Background(), &SaveCohortRequest{Name: "Turma D", TermLabel: "2026.1", TeacherIDs: []string{managerID}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// An inactive teacher cannot take a cohort.
	_, err = svc.Create(context.Background(), &SaveCohortRequest{Name: "Turma E", TermLabel: "2026.1", TeacherIDs: []string{teacherID3}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCohortRebindSnapshot(t *testing.T) {
	store := &mockCohortStore{cohorts: map[string]*models.Cohort{"cohort1": {ID: "cohort1", Name: "Turma A"}}, teachers: map[string][]string{}}
	builder := &mockSnapshotBuilder{}
	svc := newCohortServiceForTest(store, &mockStudentStore{}, builder)

	structure, err := svc.RebindSnapshot(context.Background(), "cohort1", "tpl1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tpl1"}, builder.built)
	assert.Equal(t, structure.Snapshot.ID, store.bound["cohort1"])
}

func TestCohortListScopedByRole(t *testing.T) {
	store := &mockCohortStore{}
	svc := newCohortServiceForTest(store, &mockStudentStore{}, &mockSnapshotBuilder{})

	_, err := svc.Create(context.Background(), &SaveCohortRequest{Name: "Turma A", TermLabel: "2026.1", TeacherIDs: []string{teacherID1}})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), &SaveCohortRequest{Name: "Turma B", TermLabel: "2026.1", TeacherIDs: []string{teacherID2}})
	require.NoError(t, err)

	all, err := svc.List(context.Background(), managerID, models.RoleManager)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.List(context.Background(), teacherID1, models.RoleTeacher)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Turma A", mine[0].Name)
}

func TestCohortImportRoster(t *testing.T) {
	store := &mockCohortStore{cohorts: map[string]*models.Cohort{"cohort1": {ID: "cohort1"}}, teachers: map[string][]string{}}
	students := &mockStudentStore{}
	svc := newCohortServiceForTest(store, students, &mockSnapshotBuilder{})

	imported, err := svc.ImportRoster(context.Background(), "cohort1", &ImportRosterRequest{Students: []EnrollStudentRequest{
		{FullName: "Ana Souza", Registration: "2026001"},
		{FullName: "Bruno Lima", Registration: "2026002"},
	}})
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.Len(t, students.bulk, 2)
	for _, s := range imported {
		require.NotNil(t, s.CohortID)
		assert.Equal(t, "cohort1", *s.CohortID)
		assert.True(t, s.Active)
	}
}
