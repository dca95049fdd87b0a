package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleymenovo/survey-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestResponseRepositoryGetBySessionID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, status, created_at FROM responses WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "status"}).
			AddRow("resp-1", "sess-1", "draft"))

	resp, err := repo.GetBySessionID(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, models.StatusDraft, resp.Status)
}

func TestResponseRepositoryGetBySessionIDMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, status, created_at FROM responses")).
		WithArgs("sess-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBySessionID(context.Background(), "sess-missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestResponseRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO responses")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.SurveyResponse{SessionID: "sess-1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestResponseRepositoryAdvanceStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE responses SET status = $1 WHERE session_id = $2 AND status = ANY($3)")).
		WithArgs("complete", "sess-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	advanced, err := repo.AdvanceStatus(context.Background(), "sess-1", models.StatusComplete)
	require.NoError(t, err)
	assert.True(t, advanced)
}

func TestResponseRepositoryAdvanceStatusNoOp(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE responses SET status = $1")).
		WithArgs("consent", "sess-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	advanced, err := repo.AdvanceStatus(context.Background(), "sess-1", models.StatusConsent)
	require.NoError(t, err)
	assert.False(t, advanced)
}

func TestResponseRepositoryAdvanceStatusToDraft(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	// Nothing ranks below draft, so no statement is ever issued.
	advanced, err := repo.AdvanceStatus(context.Background(), "sess-1", models.StatusDraft)
	require.NoError(t, err)
	assert.False(t, advanced)
}

func TestResponseRepositoryUpsertAnswers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	flag := false
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (response_id, question_id)")).
		WithArgs(sqlmock.AnyArg(), "resp-1", 3, "user@example.com").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DO UPDATE SET value = EXCLUDED.value, moderated = EXCLUDED.moderated")).
		WithArgs(sqlmock.AnyArg(), "resp-1", 16, "spam", false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpsertAnswers(context.Background(), "resp-1", []models.AnswerUpsert{
		{QuestionID: 3, Value: "user@example.com"},
		{QuestionID: 16, Value: "spam", Moderated: &flag},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseRepositoryUpsertAnswersRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answers")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.UpsertAnswers(context.Background(), "resp-1", []models.AnswerUpsert{
		{QuestionID: 1, Value: "x"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseRepositorySetModerated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE answers SET moderated = $1 WHERE id = $2")).
		WithArgs(true, "ans-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.SetModerated(context.Background(), "ans-1", true)
	require.NoError(t, err)
	assert.True(t, updated)
}
