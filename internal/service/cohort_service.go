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

type cohortStore interface {
	Create(ctx context.Context, cohort *models.Cohort, teacherIDs []string) error
	Update(ctx context.Context, cohort *models.Cohort, teacherIDs []string) error
	BindSnapshot(ctx context.Context, cohortID, templateID, snapshotID string) error
	FindByID(ctx context.Context, id string) (*models.Cohort, error)
	List(ctx context.Context) ([]models.Cohort, error)
	ListByTeacher(ctx context.Context, userID string) ([]models.Cohort, error)
	ListTeachers(ctx context.Context, cohortID string) ([]models.UserInfo, error)
	Delete(ctx context.Context, id string) error
}

type cohortUserReader interface {
	FindAllByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type cohortStudentStore interface {
	Create(ctx context.Context, student *models.Student) error
	BulkInsert(ctx context.Context, students []models.Student) error
	ListByCohort(ctx context.Context, cohortID string) ([]models.Student, error)
	CountByCohort(ctx context.Context, cohortID string) (int, error)
}

type cohortSnapshotBuilder interface {
	Build(ctx context.Context, templateID string) (*models.SnapshotStructure, error)
	Get(ctx context.Context, id string) (*models.Snapshot, error)
}

// SaveCohortRequest creates or renames a cohort. Every cohort is run by one
// or two responsible teachers.
type SaveCohortRequest struct {
	Name       string   `json:"name" validate:"required,min=2,max=150"`
	TermLabel  string   `json:"term_label" validate:"required,min=2,max=50"`
	TeacherIDs []string `json:"teacher_ids" validate:"required,min=1,max=2,dive,uuid"`
}

// EnrollStudentRequest adds one student to a cohort's roster.
type EnrollStudentRequest struct {
	FullName     string `json:"full_name" validate:"required,min=2,max=150"`
	Registration string `json:"registration" validate:"required,min=2,max=50"`
}

// ImportRosterRequest enrolls a batch of students in one call.
type ImportRosterRequest struct {
	Students []EnrollStudentRequest `json:"students" validate:"required,min=1,dive"`
}

// CohortService manages cohorts, their rosters and the snapshot each cohort
// grades against.
type CohortService struct {
	cohorts   cohortStore
	users     cohortUserReader
	students  cohortStudentStore
	snapshots cohortSnapshotBuilder
	logger    *zap.Logger
	validator *validator.Validate
}

// NewCohortService constructs CohortService.
func NewCohortService(cohorts cohortStore, users cohortUserReader, students cohortStudentStore, snapshots cohortSnapshotBuilder, logger *zap.Logger) *CohortService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CohortService{
		cohorts:   cohorts,
		users:     users,
		students:  students,
		snapshots: snapshots,
		logger:    logger,
		validator: validator.New(),
	}
}

// Create registers a cohort with its responsible teachers.
func (s *CohortService) Create(ctx context.Context, req *SaveCohortRequest) (*models.Cohort, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cohort payload")
	}
	if err := s.checkTeachers(ctx, req.TeacherIDs); err != nil {
		return nil, err
	}
	cohort := &models.Cohort{
		ID:        uuid.NewString(),
		Name:      req.Name,
		TermLabel: req.TermLabel,
	}
	if err := s.cohorts.Create(ctx, cohort, req.TeacherIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create cohort")
	}
	s.logger.Info("cohort created", zap.String("cohort_id", cohort.ID), zap.Strings("teacher_ids", req.TeacherIDs))
	return cohort, nil
}

// Update renames a cohort and replaces its teacher set.
func (s *CohortService) Update(ctx context.Context, id string, req *SaveCohortRequest) (*models.Cohort, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cohort payload")
	}
	cohort, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTeachers(ctx, req.TeacherIDs); err != nil {
		return nil, err
	}
	cohort.Name = req.Name
	cohort.TermLabel = req.TermLabel
	if err := s.cohorts.Update(ctx, cohort, req.TeacherIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update cohort")
	}
	return cohort, nil
}

// RebindSnapshot cuts a fresh snapshot from the template and points the
// cohort at it. Evaluations recorded against the previous snapshot stay
// intact; grading simply starts from the new structure.
func (s *CohortService) RebindSnapshot(ctx context.Context, cohortID, templateID string) (*models.SnapshotStructure, error) {
	cohort, err := s.find(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	structure, err := s.snapshots.Build(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := s.cohorts.BindSnapshot(ctx, cohort.ID, templateID, structure.Snapshot.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bind snapshot")
	}
	s.logger.Info("cohort rebound to snapshot",
		zap.String("cohort_id", cohort.ID),
		zap.String("template_id", templateID),
		zap.String("snapshot_id", structure.Snapshot.ID))
	return structure, nil
}

// Get returns the cohort with its teachers, roster size and snapshot name.
func (s *CohortService) Get(ctx context.Context, id string) (*models.CohortDetail, error) {
	cohort, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	teachers, err := s.cohorts.ListTeachers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cohort teachers")
	}
	count, err := s.students.CountByCohort(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count cohort students")
	}
	detail := &models.CohortDetail{Cohort: *cohort, Teachers: teachers, StudentCount: count}
	if cohort.SnapshotID != nil {
		snapshot, err := s.snapshots.Get(ctx, *cohort.SnapshotID)
		if err == nil {
			detail.SnapshotName = snapshot.Name
		}
	}
	return detail, nil
}

// List returns the cohorts visible to the user: managers see all of them,
// teachers only the ones they are responsible for.
func (s *CohortService) List(ctx context.Context, userID string, role models.UserRole) ([]models.Cohort, error) {
	var (
		cohorts []models.Cohort
		err     error
	)
	if role == models.RoleManager {
		cohorts, err = s.cohorts.List(ctx)
	} else {
		cohorts, err = s.cohorts.ListByTeacher(ctx, userID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cohorts")
	}
	return cohorts, nil
}

// EnrollStudent adds one student to the cohort's roster.
func (s *CohortService) EnrollStudent(ctx context.Context, cohortID string, req *EnrollStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	cohort, err := s.find(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	student := &models.Student{
		ID:           uuid.NewString(),
		FullName:     req.FullName,
		Registration: req.Registration,
		CohortID:     &cohort.ID,
		Active:       true,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	return student, nil
}

// ImportRoster enrolls a batch of students in one insert.
func (s *CohortService) ImportRoster(ctx context.Context, cohortID string, req *ImportRosterRequest) ([]models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}
	cohort, err := s.find(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	students := make([]models.Student, 0, len(req.Students))
	for _, entry := range req.Students {
		students = append(students, models.Student{
			ID:           uuid.NewString(),
			FullName:     entry.FullName,
			Registration: entry.Registration,
			CohortID:     &cohort.ID,
			Active:       true,
		})
	}
	if err := s.students.BulkInsert(ctx, students); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import roster")
	}
	s.logger.Info("roster imported", zap.String("cohort_id", cohort.ID), zap.Int("students", len(students)))
	return students, nil
}

// Roster returns the cohort's students.
func (s *CohortService) Roster(ctx context.Context, cohortID string) ([]models.Student, error) {
	if _, err := s.find(ctx, cohortID); err != nil {
		return nil, err
	}
	students, err := s.students.ListByCohort(ctx, cohortID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cohort students")
	}
	return students, nil
}

// Delete removes a cohort. Its snapshots and the evaluations recorded under
// them are kept for audit.
func (s *CohortService) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.cohorts.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete cohort")
	}
	s.logger.Info("cohort deleted", zap.String("cohort_id", id))
	return nil
}

func (s *CohortService) find(ctx context.Context, id string) (*models.Cohort, error) {
	cohort, err := s.cohorts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cohort not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	return cohort, nil
}

// checkTeachers verifies every referenced teacher exists, is active and
// actually holds the TEACHER role.
func (s *CohortService) checkTeachers(ctx context.Context, teacherIDs []string) error {
	users, err := s.users.FindAllByIDs(ctx, teacherIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	found := make(map[string]models.User, len(users))
	for _, u := range users {
		found[u.ID] = u
	}
	for _, id := range teacherIDs {
		u, ok := found[id]
		if !ok || !u.Active {
			return appErrors.Clone(appErrors.ErrValidation, "teacher not found or inactive")
		}
		if u.Role != models.RoleTeacher {
			return appErrors.Clone(appErrors.ErrValidation, "user is not a teacher")
		}
	}
	return nil
}
