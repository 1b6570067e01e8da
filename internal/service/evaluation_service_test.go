package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/competency-api/internal/models"
	"github.com/noah-isme/competency-api/pkg/config"
	appErrors "github.com/noah-isme/competency-api/pkg/errors"
)

type mockEvaluationStore struct {
	owners     map[string]models.RubricOwner
	answers    map[string][]models.EvaluationAnswer
	upserted   []*models.Evaluation
	upsertErr  error
	finalized  map[string]int
	reopened   []string
	countEmpty map[string]bool
}

func pairKey(studentID, snapshotID string) string {
	return studentID + "/" + snapshotID
}

func (m *mockEvaluationStore) Upsert(ctx context.Context, evaluation *models.Evaluation, snapshotID string) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, evaluation)
	// Mirrors the real store: the write reopens every row of the pair.
	key := pairKey(evaluation.StudentID, snapshotID)
	for i := range m.answers[key] {
		m.answers[key][i].Status = models.EvaluationOpen
		m.answers[key][i].FrozenLevel = nil
		if m.answers[key][i].CriterionID == evaluation.CriterionID {
			m.answers[key][i].Satisfied = evaluation.Satisfied
		}
	}
	return nil
}

func (m *mockEvaluationStore) ListAnswers(ctx context.Context, studentID, snapshotID string) ([]models.EvaluationAnswer, error) {
	return m.answers[pairKey(studentID, snapshotID)], nil
}

func (m *mockEvaluationStore) CountForPair(ctx context.Context, studentID, snapshotID string) (int, error) {
	if m.countEmpty[pairKey(studentID, snapshotID)] {
		return 0, nil
	}
	return len(m.answers[pairKey(studentID, snapshotID)]), nil
}

func (m *mockEvaluationStore) SetFinalized(ctx context.Context, studentID, snapshotID string, level int) error {
	if m.finalized == nil {
		m.finalized = make(map[string]int)
	}
	key := pairKey(studentID, snapshotID)
	m.finalized[key] = level
	for i := range m.answers[key] {
		m.answers[key][i].Finalize(level)
	}
	return nil
}

func (m *mockEvaluationStore) Reopen(ctx context.Context, studentID, snapshotID string) error {
	m.reopened = append(m.reopened, pairKey(studentID, snapshotID))
	return nil
}

func (m *mockEvaluationStore) CriterionOwner(ctx context.Context, criterionID string) (models.RubricOwner, error) {
	if owner, ok := m.owners[criterionID]; ok {
		return owner, nil
	}
	return models.RubricOwner{}, sql.ErrNoRows
}

type mockStudentReader struct {
	students map[string]*models.Student
	rosters  map[string][]models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentReader) ListByCohort(ctx context.Context, cohortID string) ([]models.Student, error) {
	return m.rosters[cohortID], nil
}

type mockCohortReader struct {
	cohorts map[string]*models.Cohort
}

func (m *mockCohortReader) FindByID(ctx context.Context, id string) (*models.Cohort, error) {
	if c, ok := m.cohorts[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockDescThresholds struct {
	counts models.CriterionCounts
}

func (m *mockDescThresholds) ListByOwnerDesc(ctx context.Context, owner models.RubricOwner) ([]models.LevelThreshold, error) {
	table, err := BuildThresholdTable(owner, m.counts)
	if err != nil {
		return nil, err
	}
	desc := make([]models.LevelThreshold, 0, len(table))
	for i := len(table) - 1; i >= 0; i-- {
		desc = append(desc, table[i])
	}
	return desc, nil
}

type mockCache struct {
	entries  map[string][]byte
	sets     map[string]interface{}
	deleted  []string
	hitCount int
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	if _, ok := m.sets[key]; ok {
		m.hitCount++
		if report, ok := dest.(*CohortReport); ok {
			*report = *m.sets[key].(*CohortReport)
		}
		return nil
	}
	return appErrors.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.sets == nil {
		m.sets = make(map[string]interface{})
	}
	m.sets[key] = value
	return nil
}

func (m *mockCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.sets {
		if strings.HasPrefix(key, prefix) {
			delete(m.sets, key)
		}
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }

func answer(criterionID string, weight models.CriterionWeight, satisfied *bool) models.EvaluationAnswer {
	return models.EvaluationAnswer{
		Evaluation: models.Evaluation{ID: "ev-" + criterionID, CriterionID: criterionID, Satisfied: satisfied, Status: models.EvaluationOpen},
		Weight:     weight,
	}
}

func newEvaluationServiceForTest(store *mockEvaluationStore, counts models.CriterionCounts, students *mockStudentReader, cohorts *mockCohortReader, cache *mockCache) *EvaluationService {
	return NewEvaluationService(
		store,
		&mockCounter{counts: counts},
		&mockDescThresholds{counts: counts},
		students,
		cohorts,
		cache,
		nil,
		config.EvaluationConfig{RegisterTimeout: time.Second},
		config.ReportsConfig{CacheEnabled: true, CacheTTL: time.Minute},
		zap.NewNop(),
	)
}

func TestGradeAnswersDescendingScan(t *testing.T) {
	counts := models.CriterionCounts{Critical: 2, Desirable: 2}
	table, err := (&mockDescThresholds{counts: counts}).ListByOwnerDesc(context.Background(), models.RubricOwner{})
	require.NoError(t, err)

	// One of two criticals satisfied: highest level whose ramp asks for one.
	result := gradeAnswers(counts, []models.EvaluationAnswer{
		answer("c1", models.CriterionCritical, boolPtr(true)),
		answer("c2", models.CriterionCritical, boolPtr(false)),
	}, table)
	assert.Equal(t, 25, result.AchievedLevel)
	assert.Equal(t, 1, result.CriticalMet)
	assert.Equal(t, 25.0, result.PercentComplete)
	assert.False(t, result.Finalized)

	// All criticals but no desirables: stuck at the critical cap plateau.
	result = gradeAnswers(counts, []models.EvaluationAnswer{
		answer("c1", models.CriterionCritical, boolPtr(true)),
		answer("c2", models.CriterionCritical, boolPtr(true)),
	}, table)
	assert.Equal(t, 90, result.AchievedLevel)

	// Everything satisfied reaches the top.
	result = gradeAnswers(counts, []models.EvaluationAnswer{
		answer("c1", models.CriterionCritical, boolPtr(true)),
		answer("c2", models.CriterionCritical, boolPtr(true)),
		answer("d1", models.CriterionDesirable, boolPtr(true)),
		answer("d2", models.CriterionDesirable, boolPtr(true)),
	}, table)
	assert.Equal(t, 100, result.AchievedLevel)
	assert.Equal(t, 100.0, result.PercentComplete)
}

func TestGradeAnswersLevelZero(t *testing.T) {
	counts := models.CriterionCounts{Critical: 2, Desirable: 1}
	table, err := (&mockDescThresholds{counts: counts}).ListByOwnerDesc(context.Background(), models.RubricOwner{})
	require.NoError(t, err)

	result := gradeAnswers(counts, []models.EvaluationAnswer{
		answer("c1", models.CriterionCritical, boolPtr(false)),
		answer("d1", models.CriterionDesirable, boolPtr(true)),
	}, table)
	assert.Equal(t, 0, result.AchievedLevel, "desirables alone never reach a level")

	result = gradeAnswers(counts, nil, table)
	assert.Equal(t, 0, result.AchievedLevel)
	assert.Equal(t, 0.0, result.PercentComplete)
}

func TestGradeAnswersUnansweredNotCounted(t *testing.T) {
	counts := models.CriterionCounts{Critical: 1, Desirable: 0}
	table, err := (&mockDescThresholds{counts: counts}).ListByOwnerDesc(context.Background(), models.RubricOwner{})
	require.NoError(t, err)

	result := gradeAnswers(counts, []models.EvaluationAnswer{
		answer("c1", models.CriterionCritical, nil),
	}, table)
	assert.Equal(t, 0, result.AchievedLevel)
	assert.Equal(t, 0, result.CriticalMet)
}

func TestGradeAnswersFrozenLevelWins(t *testing.T) {
	counts := models.CriterionCounts{Critical: 2, Desirable: 0}
	table, err := (&mockDescThresholds{counts: counts}).ListByOwnerDesc(context.Background(), models.RubricOwner{})
	require.NoError(t, err)

	first := answer("c1", models.CriterionCritical, boolPtr(true))
	first.Finalize(45)
	second := answer("c2", models.CriterionCritical, boolPtr(true))
	second.Finalize(45)

	result := gradeAnswers(counts, []models.EvaluationAnswer{first, second}, table)
	assert.True(t, result.Finalized)
	assert.Equal(t, 45, result.AchievedLevel, "a fully closed pair returns the frozen level untouched")
}

func TestGradeAnswersEditedPairRecomputes(t *testing.T) {
	counts := models.CriterionCounts{Critical: 2, Desirable: 0}
	table, err := (&mockDescThresholds{counts: counts}).ListByOwnerDesc(context.Background(), models.RubricOwner{})
	require.NoError(t, err)

	// One row still carries the frozen level from an earlier finalize; the
	// other was edited and reopened. The stale freeze must not win.
	stale := answer("c1", models.CriterionCritical, boolPtr(true))
	stale.Finalize(50)
	edited := answer("c2", models.CriterionCritical, boolPtr(false))

	result := gradeAnswers(counts, []models.EvaluationAnswer{stale, edited}, table)
	assert.False(t, result.Finalized)
	assert.Equal(t, 25, result.AchievedLevel, "level recomputed from live answers")
}

func TestRecordUnknownStudent(t *testing.T) {
	store := &mockEvaluationStore{owners: map[string]models.RubricOwner{"cr1": models.SnapshotOwner("other-snap")}}
	students := &mockStudentReader{students: map[string]*models.Student{"stu1": {ID: "stu1", FullName: "Ana"}}}
	svc := newEvaluationServiceForTest(store, models.CriterionCounts{Critical: 1}, students, &mockCohortReader{}, &mockCache{})

	_, err := svc.Record(context.Background(), &RecordEvaluationRequest{
		StudentID:   "6b1e0b0a-0000-4000-8000-000000000001",
		SnapshotID:  "6b1e0b0a-0000-4000-8000-000000000002",
		CriterionID: "6b1e0b0a-0000-4000-8000-000000000003",
		Satisfied:   boolPtr(true),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code, "unknown student fails first")
}

func TestRecordValidatesOwnershipAndInvalidatesCache(t *testing.T) {
	studentID := "6b1e0b0a-0000-4000-8000-000000000001"
	snapshotID := "6b1e0b0a-0000-4000-8000-000000000002"
	criterionID := "6b1e0b0a-0000-4000-8000-000000000003"

	store := &mockEvaluationStore{owners: map[string]models.RubricOwner{criterionID: models.SnapshotOwner(snapshotID)}}
	students := &mockStudentReader{students: map[string]*models.Student{studentID: {ID: studentID, FullName: "Ana"}}}
	cache := &mockCache{sets: map[string]interface{}{reportCacheKey(snapshotID, "cohort1"): &CohortReport{}}}
	svc := newEvaluationServiceForTest(store, models.CriterionCounts{Critical: 1}, students, &mockCohortReader{}, cache)

	evaluation, err := svc.Record(context.Background(), &RecordEvaluationRequest{
		StudentID:   studentID,
		SnapshotID:  snapshotID,
		CriterionID: criterionID,
		Satisfied:   boolPtr(true),
		Note:        "solid work",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationOpen, evaluation.Status)
	assert.Nil(t, evaluation.FrozenLevel)
	require.Len(t, store.upserted, 1)

	require.Len(t, cache.deleted, 1)
	assert.Equal(t, fmt.Sprintf("report:snapshot:%s:*", snapshotID), cache.deleted[0])
	assert.Empty(t, cache.sets, "stale reports evicted")

	// Wrong snapshot for the same criterion is rejected.
	_, err = svc.Record(context.Background(), &RecordEvaluationRequest{
		StudentID:   studentID,
		SnapshotID:  "6b1e0b0a-0000-4000-8000-00000000000f",
		CriterionID: criterionID,
		Satisfied:   boolPtr(true),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCriterionMismatch.Code, appErrors.FromError(err).Code)
}

func TestRecordTimeoutIsRetryable(t *testing.T) {
	studentID := "6b1e0b0a-0000-4000-8000-000000000001"
	snapshotID := "6b1e0b0a-0000-4000-8000-000000000002"
	criterionID := "6b1e0b0a-0000-4000-8000-000000000003"

	store := &mockEvaluationStore{
		owners:    map[string]models.RubricOwner{criterionID: models.SnapshotOwner(snapshotID)},
		upsertErr: context.DeadlineExceeded,
	}
	students := &mockStudentReader{students: map[string]*models.Student{studentID: {ID: studentID}}}
	svc := newEvaluationServiceForTest(store, models.CriterionCounts{Critical: 1}, students, &mockCohortReader{}, &mockCache{})

	_, err := svc.Record(context.Background(), &RecordEvaluationRequest{
		StudentID:   studentID,
		SnapshotID:  snapshotID,
		CriterionID: criterionID,
		Satisfied:   boolPtr(true),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTimeout.Code, appErr.Code)
	assert.Equal(t, 408, appErr.Status)
}

func TestFinalizeFreezesComputedLevel(t *testing.T) {
	counts := models.CriterionCounts{Critical: 2, Desirable: 2}
	store := &mockEvaluationStore{answers: map[string][]models.EvaluationAnswer{
		pairKey("stu1", "snap1"): {
			answer("c1", models.CriterionCritical, boolPtr(true)),
			answer("c2", models.CriterionCritical, boolPtr(true)),
			answer("d1", models.CriterionDesirable, boolPtr(true)),
		},
	}}
	students := &mockStudentReader{students: map[string]*models.Student{"stu1": {ID: "stu1", FullName: "Ana"}}}
	svc := newEvaluationServiceForTest(store, counts, students, &mockCohortReader{}, &mockCache{})

	result, err := svc.Finalize(context.Background(), "stu1", "snap1")
	require.NoError(t, err)
	assert.True(t, result.Finalized)
	assert.Equal(t, 95, result.AchievedLevel)
	assert.Equal(t, 95, store.finalized[pairKey("stu1", "snap1")])
}

func TestRecordAfterFinalizeReopensWholePair(t *testing.T) {
	studentID := "6b1e0b0a-0000-4000-8000-000000000001"
	snapshotID := "6b1e0b0a-0000-4000-8000-000000000002"
	criterion1 := "6b1e0b0a-0000-4000-8000-000000000003"
	criterion2 := "6b1e0b0a-0000-4000-8000-000000000004"

	counts := models.CriterionCounts{Critical: 2, Desirable: 0}
	store := &mockEvaluationStore{
		owners: map[string]models.RubricOwner{criterion2: models.SnapshotOwner(snapshotID)},
		answers: map[string][]models.EvaluationAnswer{
			pairKey(studentID, snapshotID): {
				answer(criterion1, models.CriterionCritical, boolPtr(true)),
				answer(criterion2, models.CriterionCritical, boolPtr(true)),
			},
		},
	}
	students := &mockStudentReader{students: map[string]*models.Student{studentID: {ID: studentID, FullName: "Ana"}}}
	svc := newEvaluationServiceForTest(store, counts, students, &mockCohortReader{}, &mockCache{})

	result, err := svc.Finalize(context.Background(), studentID, snapshotID)
	require.NoError(t, err)
	assert.Equal(t, 100, result.AchievedLevel)

	// Editing one answer reopens the pair; the frozen level no longer applies.
	_, err = svc.Record(context.Background(), &RecordEvaluationRequest{
		StudentID:   studentID,
		SnapshotID:  snapshotID,
		CriterionID: criterion2,
		Satisfied:   boolPtr(false),
	})
	require.NoError(t, err)

	result, err = svc.CalculateLevel(context.Background(), studentID, snapshotID)
	require.NoError(t, err)
	assert.False(t, result.Finalized, "finalization does not survive an edit")
	assert.Equal(t, 25, result.AchievedLevel, "level reflects the edited answers, not the frozen one")
}

func TestFinalizeWithoutEvaluations(t *testing.T) {
	store := &mockEvaluationStore{}
	students := &mockStudentReader{students: map[string]*models.Student{"stu1": {ID: "stu1"}}}
	svc := newEvaluationServiceForTest(store, models.CriterionCounts{Critical: 1}, students, &mockCohortReader{}, &mockCache{})

	_, err := svc.Finalize(context.Background(), "stu1", "snap1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoEvaluations.Code, appErrors.FromError(err).Code)

	err = svc.Reopen(context.Background(), "stu1", "snap1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoEvaluations.Code, appErrors.FromError(err).Code)
}

func TestReopenClearsPair(t *testing.T) {
	store := &mockEvaluationStore{answers: map[string][]models.EvaluationAnswer{
		pairKey("stu1", "snap1"): {answer("c1", models.CriterionCritical, boolPtr(true))},
	}}
	students := &mockStudentReader{students: map[string]*models.Student{"stu1": {ID: "stu1"}}}
	svc := newEvaluationServiceForTest(store, models.CriterionCounts{Critical: 1}, students, &mockCohortReader{}, &mockCache{})

	require.NoError(t, svc.Reopen(context.Background(), "stu1", "snap1"))
	assert.Equal(t, []string{pairKey("stu1", "snap1")}, store.reopened)
}

func TestFinalizeCohortSkipsUnevaluatedStudents(t *testing.T) {
	snapshotID := "snap1"
	counts := models.CriterionCounts{Critical: 1, Desirable: 0}
	store := &mockEvaluationStore{answers: map[string][]models.EvaluationAnswer{
		pairKey("stu1", snapshotID): {answer("c1", models.CriterionCritical, boolPtr(true))},
		pairKey("stu2", snapshotID): {answer("c1", models.CriterionCritical, boolPtr(false))},
	}}
	students := &mockStudentReader{
		students: map[string]*models.Student{
			"stu1": {ID: "stu1", FullName: "Ana"},
			"stu2": {ID: "stu2", FullName: "Bruno"},
			"stu3": {ID: "stu3", FullName: "Clara"},
		},
		rosters: map[string][]models.Student{"cohort1": {{ID: "stu1"}, {ID: "stu2"}, {ID: "stu3"}}},
	}
	cohorts := &mockCohortReader{cohorts: map[string]*models.Cohort{"cohort1": {ID: "cohort1", Name: "Turma A", SnapshotID: &snapshotID}}}
	svc := newEvaluationServiceForTest(store, counts, students, cohorts, &mockCache{})

	results, err := svc.FinalizeCohort(context.Background(), "cohort1", snapshotID)
	require.NoError(t, err)
	require.Len(t, results, 2, "the student with nothing recorded is skipped, not failed")
	assert.Equal(t, 100, results[0].AchievedLevel)
	assert.Equal(t, 0, results[1].AchievedLevel)
	assert.NotContains(t, store.finalized, pairKey("stu3", snapshotID))
}

func TestFinalizeCohortRequiresBoundSnapshot(t *testing.T) {
	cohorts := &mockCohortReader{cohorts: map[string]*models.Cohort{"cohort1": {ID: "cohort1", Name: "Turma A"}}}
	svc := newEvaluationServiceForTest(&mockEvaluationStore{}, models.CriterionCounts{Critical: 1}, &mockStudentReader{}, cohorts, &mockCache{})

	_, err := svc.FinalizeCohort(context.Background(), "cohort1", "snap1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFinalizeCohortRejectsWrongSnapshot(t *testing.T) {
	snapshotID := "snap1"
	cohorts := &mockCohortReader{cohorts: map[string]*models.Cohort{"cohort1": {ID: "cohort1", Name: "Turma A", SnapshotID: &snapshotID}}}
	svc := newEvaluationServiceForTest(&mockEvaluationStore{}, models.CriterionCounts{Critical: 1}, &mockStudentReader{}, cohorts, &mockCache{})

	_, err := svc.FinalizeCohort(context.Background(), "cohort1", "snap2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReportCachesPerSnapshotAndCohort(t *testing.T) {
	snapshotID := "snap1"
	counts := models.CriterionCounts{Critical: 1, Desirable: 1}
	store := &mockEvaluationStore{answers: map[string][]models.EvaluationAnswer{
		pairKey("stu1", snapshotID): {answer("c1", models.CriterionCritical, boolPtr(true))},
	}}
	students := &mockStudentReader{
		students: map[string]*models.Student{"stu1": {ID: "stu1", FullName: "Ana"}},
		rosters:  map[string][]models.Student{"cohort1": {{ID: "stu1"}}},
	}
	cohorts := &mockCohortReader{cohorts: map[string]*models.Cohort{"cohort1": {ID: "cohort1", Name: "Turma A", SnapshotID: &snapshotID}}}
	cache := &mockCache{}
	svc := newEvaluationServiceForTest(store, counts, students, cohorts, cache)

	report, err := svc.Report(context.Background(), "cohort1")
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "Ana", report.Results[0].StudentName)
	assert.Contains(t, cache.sets, reportCacheKey(snapshotID, "cohort1"))

	_, err = svc.Report(context.Background(), "cohort1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hitCount, "second call served from cache")
}
