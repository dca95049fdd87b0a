package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleymenovo/survey-api/internal/models"
)

func TestIdentityRepositoryExistsCompleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("resp.status = 'complete'")).
		WithArgs(3, "user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsCompleted(context.Background(), 3, "user@example.com", "")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIdentityRepositoryExistsCompletedExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND resp.id <> $3")).
		WithArgs(3, "user@example.com", "resp-self").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsCompleted(context.Background(), 3, "user@example.com", "resp-self")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIdentityRepositoryFindUnfinished(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "session_id", "status", "created_at"}).
		AddRow("resp-1", "sess-1", "draft", created)

	mock.ExpectQuery(regexp.QuoteMeta("resp.status IN ('draft', 'consent')\n        ORDER BY resp.created_at DESC")).
		WithArgs(4, "+79990000000").
		WillReturnRows(rows)

	resp, err := repo.FindUnfinished(context.Background(), 4, "+79990000000")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, models.StatusDraft, resp.Status)
}

func TestIdentityRepositoryFindUnfinishedNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewIdentityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM answers a")).
		WithArgs(4, "+79990000000").
		WillReturnError(sql.ErrNoRows)

	resp, err := repo.FindUnfinished(context.Background(), 4, "+79990000000")
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestLikeRepositoryInsertDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLikeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO comment_likes")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Insert(context.Background(), &models.CommentLike{AnswerID: "ans-1", IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestLikeRepositoryCountByAnswer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLikeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM comment_likes WHERE answer_id = $1")).
		WithArgs("ans-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountByAnswer(context.Background(), "ans-1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
