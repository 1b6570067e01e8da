package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/competency-api/internal/models"
	"github.com/noah-isme/competency-api/pkg/config"
	appErrors "github.com/noah-isme/competency-api/pkg/errors"
)

type evaluationStore interface {
	Upsert(ctx context.Context, evaluation *models.Evaluation, snapshotID string) error
	ListAnswers(ctx context.Context, studentID, snapshotID string) ([]models.EvaluationAnswer, error)
	CountForPair(ctx context.Context, studentID, snapshotID string) (int, error)
	SetFinalized(ctx context.Context, studentID, snapshotID string, level int) error
	Reopen(ctx context.Context, studentID, snapshotID string) error
	CriterionOwner(ctx context.Context, criterionID string) (models.RubricOwner, error)
}

type evaluationCounter interface {
	CountCriteria(ctx context.Context, owner models.RubricOwner) (models.CriterionCounts, error)
}

type evaluationThresholdReader interface {
	ListByOwnerDesc(ctx context.Context, owner models.RubricOwner) ([]models.LevelThreshold, error)
}

type evaluationStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByCohort(ctx context.Context, cohortID string) ([]models.Student, error)
}

type evaluationCohortReader interface {
	FindByID(ctx context.Context, id string) (*models.Cohort, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RecordEvaluationRequest is one answer for a (student, criterion) pair.
// Satisfied may be null to mark the criterion as opened but unanswered.
type RecordEvaluationRequest struct {
	StudentID   string `json:"student_id" validate:"required,uuid"`
	SnapshotID  string `json:"snapshot_id" validate:"required,uuid"`
	CriterionID string `json:"criterion_id" validate:"required,uuid"`
	Satisfied   *bool  `json:"satisfied"`
	Note        string `json:"note" validate:"max=500"`
}

// CohortReport is the grading summary of every evaluated student in a cohort.
type CohortReport struct {
	CohortID    string               `json:"cohort_id"`
	CohortName  string               `json:"cohort_name"`
	SnapshotID  string               `json:"snapshot_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Results     []models.LevelResult `json:"results"`
}

// EvaluationService records answers and grades students against the threshold
// table of the snapshot their cohort is bound to.
type EvaluationService struct {
	evaluations evaluationStore
	rubrics     evaluationCounter
	thresholds  evaluationThresholdReader
	students    evaluationStudentReader
	cohorts     evaluationCohortReader
	cache       reportCache
	metrics     *MetricsService
	evalCfg     config.EvaluationConfig
	reportCfg   config.ReportsConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEvaluationService constructs EvaluationService. cache may be nil when
// report caching is disabled; metrics may be nil in tests.
func NewEvaluationService(
	evaluations evaluationStore,
	rubrics evaluationCounter,
	thresholds evaluationThresholdReader,
	students evaluationStudentReader,
	cohorts evaluationCohortReader,
	cache reportCache,
	metrics *MetricsService,
	evalCfg config.EvaluationConfig,
	reportCfg config.ReportsConfig,
	logger *zap.Logger,
) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		evaluations: evaluations,
		rubrics:     rubrics,
		thresholds:  thresholds,
		students:    students,
		cohorts:     cohorts,
		cache:       cache,
		metrics:     metrics,
		evalCfg:     evalCfg,
		reportCfg:   reportCfg,
		validator:   validator.New(),
		logger:      logger,
	}
}

// Record upserts one answer. The criterion must belong to the snapshot named
// in the request; recording against an already finalized pair silently reopens
// the whole pair, since an edit invalidates the frozen level. The write runs
// under the configured transaction budget and rolls back cleanly on expiry,
// returning a retryable timeout error.
func (s *EvaluationService) Record(ctx context.Context, req *RecordEvaluationRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	owner, err := s.evaluations.CriterionOwner(ctx, req.CriterionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "criterion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve criterion owner")
	}
	if owner.Kind != models.OwnerSnapshot || owner.ID != req.SnapshotID {
		return nil, appErrors.ErrCriterionMismatch
	}

	evaluation := &models.Evaluation{
		ID:          uuid.NewString(),
		StudentID:   req.StudentID,
		CriterionID: req.CriterionID,
		Satisfied:   req.Satisfied,
		Note:        req.Note,
		Status:      models.EvaluationOpen,
		EvaluatedAt: time.Now().UTC(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.evalCfg.RegisterTimeout)
	defer cancel()

	if err := s.evaluations.Upsert(writeCtx, evaluation, req.SnapshotID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("evaluation write exceeded budget",
				zap.String("student_id", req.StudentID),
				zap.String("criterion_id", req.CriterionID),
				zap.Duration("budget", s.evalCfg.RegisterTimeout))
			return nil, appErrors.ErrTimeout
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record evaluation")
	}

	s.invalidateReports(ctx, req.SnapshotID)
	return evaluation, nil
}

// CalculateLevel grades one student against one snapshot. When the pair is
// finalized the frozen level is returned untouched; otherwise the level is the
// highest threshold the satisfied counts reach, scanning top down, and 0 when
// not even the lowest is met.
func (s *EvaluationService) CalculateLevel(ctx context.Context, studentID, snapshotID string) (*models.LevelResult, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	owner := models.SnapshotOwner(snapshotID)
	counts, err := s.rubrics.CountCriteria(ctx, owner)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count snapshot criteria")
	}
	answers, err := s.evaluations.ListAnswers(ctx, studentID, snapshotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluations")
	}
	table, err := s.thresholds.ListByOwnerDesc(ctx, owner)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thresholds")
	}

	start := time.Now()
	result := gradeAnswers(counts, answers, table)
	s.metrics.ObserveGradeCalculation(time.Since(start))
	result.StudentID = studentID
	result.StudentName = student.FullName
	result.SnapshotID = snapshotID
	return &result, nil
}

// gradeAnswers is the pure core of the calculator: same answers against the
// same table always yield the same result. The frozen level wins only when
// every row of the pair is FINALIZED; a single open row means the pair was
// edited since closing, and the level is recomputed from the live answers.
func gradeAnswers(counts models.CriterionCounts, answers []models.EvaluationAnswer, table []models.LevelThreshold) models.LevelResult {
	result := models.LevelResult{
		TotalCritical:  counts.Critical,
		TotalDesirable: counts.Desirable,
	}

	finalized := len(answers) > 0
	var frozen *int
	for _, answer := range answers {
		if answer.IsFinalized() {
			if answer.FrozenLevel != nil {
				frozen = answer.FrozenLevel
			}
		} else {
			finalized = false
		}
		if answer.Satisfied == nil || !*answer.Satisfied {
			continue
		}
		switch answer.Weight {
		case models.CriterionCritical:
			result.CriticalMet++
		case models.CriterionDesirable:
			result.DesirableMet++
		}
	}

	if total := counts.Total(); total > 0 {
		result.PercentComplete = float64(result.CriticalMet+result.DesirableMet) / float64(total) * 100
	}
	if finalized && frozen != nil {
		result.Finalized = true
		result.AchievedLevel = *frozen
		return result
	}

	for _, threshold := range table {
		if result.CriticalMet >= threshold.MinCritical && result.DesirableMet >= threshold.MinDesirable {
			result.AchievedLevel = threshold.Level
			break
		}
	}
	return result
}

// Finalize freezes the student's current level on every evaluation of the
// pair. A pair with nothing recorded cannot be closed.
func (s *EvaluationService) Finalize(ctx context.Context, studentID, snapshotID string) (*models.LevelResult, error) {
	if err := s.requireEvaluations(ctx, studentID, snapshotID); err != nil {
		return nil, err
	}
	result, err := s.CalculateLevel(ctx, studentID, snapshotID)
	if err != nil {
		return nil, err
	}
	if err := s.evaluations.SetFinalized(ctx, studentID, snapshotID, result.AchievedLevel); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize evaluations")
	}
	result.Finalized = true

	s.logger.Info("evaluations finalized",
		zap.String("student_id", studentID),
		zap.String("snapshot_id", snapshotID),
		zap.Int("frozen_level", result.AchievedLevel))
	s.invalidateReports(ctx, snapshotID)
	return result, nil
}

// Reopen clears the frozen level so the pair grades live again.
func (s *EvaluationService) Reopen(ctx context.Context, studentID, snapshotID string) error {
	if err := s.requireEvaluations(ctx, studentID, snapshotID); err != nil {
		return err
	}
	if err := s.evaluations.Reopen(ctx, studentID, snapshotID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reopen evaluations")
	}
	s.logger.Info("evaluations reopened",
		zap.String("student_id", studentID),
		zap.String("snapshot_id", snapshotID))
	s.invalidateReports(ctx, snapshotID)
	return nil
}

// FinalizeCohort closes every student of the cohort against the named
// snapshot, which must be the one the cohort is bound to. Students with
// nothing recorded are skipped, not failed; other per-student failures are
// logged and the batch carries on, returning whatever did finalize.
func (s *EvaluationService) FinalizeCohort(ctx context.Context, cohortID, snapshotID string) ([]models.LevelResult, error) {
	cohort, boundID, err := s.boundCohort(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	if snapshotID != boundID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cohort is bound to a different snapshot")
	}
	students, err := s.students.ListByCohort(ctx, cohort.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cohort students")
	}

	results := make([]models.LevelResult, 0, len(students))
	for _, student := range students {
		result, err := s.Finalize(ctx, student.ID, snapshotID)
		if err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Code == appErrors.ErrNoEvaluations.Code {
				continue
			}
			s.logger.Warn("skipping student in cohort finalization",
				zap.String("cohort_id", cohort.ID),
				zap.String("student_id", student.ID),
				zap.Error(err))
			continue
		}
		results = append(results, *result)
	}

	s.logger.Info("cohort finalized",
		zap.String("cohort_id", cohort.ID),
		zap.String("snapshot_id", snapshotID),
		zap.Int("students", len(students)),
		zap.Int("finalized", len(results)))
	return results, nil
}

// Report grades every student of the cohort against its bound snapshot. The
// result is cached per (snapshot, cohort) and invalidated whenever any
// evaluation under the snapshot changes.
func (s *EvaluationService) Report(ctx context.Context, cohortID string) (*CohortReport, error) {
	cohort, snapshotID, err := s.boundCohort(ctx, cohortID)
	if err != nil {
		return nil, err
	}

	key := reportCacheKey(snapshotID, cohort.ID)
	if s.cacheEnabled() {
		var cached CohortReport
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheLookup(true)
			return &cached, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	students, err := s.students.ListByCohort(ctx, cohort.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cohort students")
	}

	report := &CohortReport{
		CohortID:    cohort.ID,
		CohortName:  cohort.Name,
		SnapshotID:  snapshotID,
		GeneratedAt: time.Now().UTC(),
		Results:     make([]models.LevelResult, 0, len(students)),
	}
	for _, student := range students {
		result, err := s.CalculateLevel(ctx, student.ID, snapshotID)
		if err != nil {
			return nil, err
		}
		report.Results = append(report.Results, *result)
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, key, report, s.reportCfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache cohort report", zap.String("key", key), zap.Error(err))
		}
	}
	return report, nil
}

func (s *EvaluationService) requireEvaluations(ctx context.Context, studentID, snapshotID string) error {
	count, err := s.evaluations.CountForPair(ctx, studentID, snapshotID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count evaluations")
	}
	if count == 0 {
		return appErrors.ErrNoEvaluations
	}
	return nil
}

func (s *EvaluationService) boundCohort(ctx context.Context, cohortID string) (*models.Cohort, string, error) {
	cohort, err := s.cohorts.FindByID(ctx, cohortID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "cohort not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	if cohort.SnapshotID == nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "cohort has no snapshot bound")
	}
	return cohort, *cohort.SnapshotID, nil
}

func (s *EvaluationService) cacheEnabled() bool {
	return s.cache != nil && s.reportCfg.CacheEnabled
}

func (s *EvaluationService) invalidateReports(ctx context.Context, snapshotID string) {
	if !s.cacheEnabled() {
		return
	}
	pattern := fmt.Sprintf("report:snapshot:%s:*", snapshotID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("failed to invalidate cohort reports", zap.String("pattern", pattern), zap.Error(err))
	}
}

func reportCacheKey(snapshotID, cohortID string) string {
	return fmt.Sprintf("report:snapshot:%s:cohort:%s", snapshotID, cohortID)
}
