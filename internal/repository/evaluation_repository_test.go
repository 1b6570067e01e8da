package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/competency-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return sqlxDB, mock, func() { db.Close() }
}

func TestEvaluationRepositoryUpsertResetsFinalization(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO evaluations")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	// The same transaction reopens the rest of the (student, snapshot) pair.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluations SET status = 'OPEN', frozen_level = NULL")).
		WithArgs("stu1", "snap1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	level := 60
	satisfied := true
	evaluation := &models.Evaluation{
		StudentID:   "stu1",
		CriterionID: "cr1",
		Satisfied:   &satisfied,
		Status:      models.EvaluationFinalized,
		FrozenLevel: &level,
	}
	err := repo.Upsert(context.Background(), evaluation, "snap1")
	require.NoError(t, err)

	assert.NotEmpty(t, evaluation.ID)
	assert.Equal(t, models.EvaluationOpen, evaluation.Status)
	assert.Nil(t, evaluation.FrozenLevel)
	assert.False(t, evaluation.EvaluatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositorySetFinalizedRunsInTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluations SET status = 'FINALIZED'")).
		WithArgs("stu1", "snap1", 45).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := repo.SetFinalized(context.Background(), "stu1", "snap1", 45)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositorySetFinalizedRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluations SET status = 'FINALIZED'")).
		WithArgs("stu1", "snap1", 45).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.SetFinalized(context.Background(), "stu1", "snap1", 45)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryReopenClearsFrozenLevel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE evaluations SET status = 'OPEN', frozen_level = NULL")).
		WithArgs("stu1", "snap1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := repo.Reopen(context.Background(), "stu1", "snap1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryCountForPair(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("stu1", "snap1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountForPair(context.Background(), "stu1", "snap1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryCriterionOwner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEvaluationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.owner_kind AS kind, c.owner_id AS id")).
		WithArgs("cr1").
		WillReturnRows(sqlmock.NewRows([]string{"kind", "id"}).AddRow("SNAPSHOT", "snap1"))

	owner, err := repo.CriterionOwner(context.Background(), "cr1")
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotOwner("snap1"), owner)
	require.NoError(t, mock.ExpectationsWereMet())
}
