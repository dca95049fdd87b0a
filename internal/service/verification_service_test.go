package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/internal/models"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
)

type verificationRepoStub struct {
	latest      *models.VerificationCode
	unused      *models.VerificationCode
	inserted    []*models.VerificationCode
	invalidated int
	usedIDs     []string
}

func (s *verificationRepoStub) LatestForPair(ctx context.Context, email, sessionID string) (*models.VerificationCode, error) {
	if s.latest == nil {
		return nil, sql.ErrNoRows
	}
	return s.latest, nil
}

func (s *verificationRepoStub) InvalidateUnused(ctx context.Context, email, sessionID string) error {
	s.invalidated++
	return nil
}

func (s *verificationRepoStub) Insert(ctx context.Context, code *models.VerificationCode) error {
	code.ID = "code-new"
	s.inserted = append(s.inserted, code)
	return nil
}

func (s *verificationRepoStub) FindUnused(ctx context.Context, email, code, sessionID string) (*models.VerificationCode, error) {
	if s.unused == nil || s.unused.Code != code {
		return nil, sql.ErrNoRows
	}
	return s.unused, nil
}

func (s *verificationRepoStub) MarkUsed(ctx context.Context, id string) error {
	s.usedIDs = append(s.usedIDs, id)
	return nil
}

type sessionReaderStub struct {
	resp   *models.SurveyResponse
	answer *models.Answer
}

func (s *sessionReaderStub) GetBySessionID(ctx context.Context, sessionID string) (*models.SurveyResponse, error) {
	if s.resp == nil {
		return nil, sql.ErrNoRows
	}
	return s.resp, nil
}

func (s *sessionReaderStub) GetAnswer(ctx context.Context, responseID string, questionID int) (*models.Answer, error) {
	if s.answer == nil {
		return nil, sql.ErrNoRows
	}
	return s.answer, nil
}

type senderStub struct {
	sent []string
	err  error
}

func (s *senderStub) SendCode(email, code, name string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, code)
	return nil
}

func newVerificationFixture(repo *verificationRepoStub, sender *senderStub) *VerificationService {
	svc := NewVerificationService(
		repo,
		&sessionReaderStub{
			resp:   &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1"},
			answer: &models.Answer{Value: "Иван Петров"},
		},
		sender,
		models.QuestionMap{FullNameID: 1},
		120*time.Second,
		10*time.Minute,
		zap.NewNop(),
	)
	return svc
}

func TestIssueFirstCode(t *testing.T) {
	repo := &verificationRepoStub{}
	sender := &senderStub{}
	svc := newVerificationFixture(repo, sender)

	result, err := svc.Issue(context.Background(), "user@example.com", "sess-1")
	require.NoError(t, err)
	assert.False(t, result.Throttled)
	require.Len(t, repo.inserted, 1)
	assert.Len(t, repo.inserted[0].Code, 6)
	assert.Equal(t, 1, repo.invalidated)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, repo.inserted[0].Code, sender.sent[0])
}

func TestIssueThrottledWithinInterval(t *testing.T) {
	now := time.Now().UTC()
	repo := &verificationRepoStub{
		latest: &models.VerificationCode{LastRequestAt: now.Add(-30 * time.Second)},
	}
	sender := &senderStub{}
	svc := newVerificationFixture(repo, sender)
	svc.now = func() time.Time { return now }

	result, err := svc.Issue(context.Background(), "user@example.com", "sess-1")
	require.NoError(t, err)
	assert.True(t, result.Throttled)
	assert.Equal(t, 90, result.SecondsRemaining)
	assert.Empty(t, repo.inserted)
	assert.Zero(t, repo.invalidated)
}

func TestIssueAllowedAfterInterval(t *testing.T) {
	now := time.Now().UTC()
	repo := &verificationRepoStub{
		latest: &models.VerificationCode{LastRequestAt: now.Add(-121 * time.Second)},
	}
	sender := &senderStub{}
	svc := newVerificationFixture(repo, sender)
	svc.now = func() time.Time { return now }

	result, err := svc.Issue(context.Background(), "user@example.com", "sess-1")
	require.NoError(t, err)
	assert.False(t, result.Throttled)
	assert.Equal(t, 1, repo.invalidated)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, now.Add(10*time.Minute), repo.inserted[0].ExpiresAt)
}

func TestIssueDeliveryFailureKeepsCode(t *testing.T) {
	repo := &verificationRepoStub{}
	sender := &senderStub{err: errors.New("smtp refused")}
	svc := newVerificationFixture(repo, sender)

	_, err := svc.Issue(context.Background(), "user@example.com", "sess-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrDeliveryFailed.Code, appErr.Code)
	// The stored code survives the failed delivery.
	assert.Len(t, repo.inserted, 1)
}

func TestVerifyConsumesCode(t *testing.T) {
	now := time.Now().UTC()
	repo := &verificationRepoStub{
		unused: &models.VerificationCode{ID: "code-1", Code: "123456", ExpiresAt: now.Add(5 * time.Minute)},
	}
	svc := newVerificationFixture(repo, &senderStub{})
	svc.now = func() time.Time { return now }

	err := svc.Verify(context.Background(), "user@example.com", "123456", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"code-1"}, repo.usedIDs)
}

func TestVerifyUnknownCode(t *testing.T) {
	repo := &verificationRepoStub{}
	svc := newVerificationFixture(repo, &senderStub{})

	err := svc.Verify(context.Background(), "user@example.com", "000000", "sess-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCode.Code, appErr.Code)
}

func TestVerifyExpiredCodeStaysUnused(t *testing.T) {
	now := time.Now().UTC()
	repo := &verificationRepoStub{
		unused: &models.VerificationCode{ID: "code-1", Code: "123456", ExpiresAt: now.Add(-time.Minute)},
	}
	svc := newVerificationFixture(repo, &senderStub{})
	svc.now = func() time.Time { return now }

	err := svc.Verify(context.Background(), "user@example.com", "123456", "sess-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrCodeExpired.Code, appErr.Code)
	assert.Empty(t, repo.usedIDs)
}

func TestCanIssueProjection(t *testing.T) {
	now := time.Now().UTC()
	repo := &verificationRepoStub{
		latest: &models.VerificationCode{LastRequestAt: now.Add(-100 * time.Second)},
	}
	svc := newVerificationFixture(repo, &senderStub{})
	svc.now = func() time.Time { return now }

	allowance, err := svc.CanIssue(context.Background(), "user@example.com", "sess-1")
	require.NoError(t, err)
	assert.False(t, allowance.Allowed)
	assert.Equal(t, 20, allowance.SecondsRemaining)
	assert.Empty(t, repo.inserted)
}

func TestGenerateCodeFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{6}$`, code)
	}
}
