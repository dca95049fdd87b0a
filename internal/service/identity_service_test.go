package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/internal/models"
)

type identityRepoStub struct {
	completed  map[int]map[string]bool
	unfinished map[int]map[string]*models.SurveyResponse
	probes     []int
}

func (s *identityRepoStub) ExistsCompleted(ctx context.Context, questionID int, value, excludeResponseID string) (bool, error) {
	return s.completed[questionID][value], nil
}

func (s *identityRepoStub) FindUnfinished(ctx context.Context, questionID int, value string) (*models.SurveyResponse, error) {
	s.probes = append(s.probes, questionID)
	return s.unfinished[questionID][value], nil
}

func TestCheckUniqueReportsOnlySuppliedFields(t *testing.T) {
	repo := &identityRepoStub{
		completed: map[int]map[string]bool{
			3: {"taken@example.com": true},
		},
	}
	svc := NewIdentityService(repo, testQuestions, zap.NewNop())

	result, err := svc.CheckUnique(context.Background(), IdentityQuery{Email: "taken@example.com", Phone: "+79990000000"})
	require.NoError(t, err)
	require.NotNil(t, result.EmailExists)
	assert.True(t, *result.EmailExists)
	require.NotNil(t, result.PhoneExists)
	assert.False(t, *result.PhoneExists)
	assert.Nil(t, result.CadastralExists)
}

func TestFindUnfinishedProbeOrder(t *testing.T) {
	created := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	repo := &identityRepoStub{
		unfinished: map[int]map[string]*models.SurveyResponse{
			3: {"user@example.com": {SessionID: "sess-email", Status: models.StatusDraft, CreatedAt: created}},
			4: {"+79990000000": {SessionID: "sess-phone", Status: models.StatusDraft, CreatedAt: created}},
		},
	}
	svc := NewIdentityService(repo, testQuestions, zap.NewNop())

	result, err := svc.FindUnfinished(context.Background(), IdentityQuery{
		Email: "user@example.com",
		Phone: "+79990000000",
	})
	require.NoError(t, err)
	assert.True(t, result.HasUnfinished)
	// Email probes first; its hit wins over the phone match.
	assert.Equal(t, "sess-email", result.SessionID)
	assert.Equal(t, "2026-03-14T12:00:00Z", result.CreatedAt)
	assert.Equal(t, []int{3}, repo.probes)
}

func TestFindUnfinishedFallsThroughToLaterFields(t *testing.T) {
	repo := &identityRepoStub{
		unfinished: map[int]map[string]*models.SurveyResponse{
			2: {"50:21:0000000:100": {SessionID: "sess-cad", Status: models.StatusConsent}},
		},
	}
	svc := NewIdentityService(repo, testQuestions, zap.NewNop())

	result, err := svc.FindUnfinished(context.Background(), IdentityQuery{
		Email:     "fresh@example.com",
		Cadastral: "50:21:0000000:100",
	})
	require.NoError(t, err)
	assert.True(t, result.HasUnfinished)
	assert.Equal(t, "sess-cad", result.SessionID)
	assert.Equal(t, []int{3, 2}, repo.probes)
}

func TestFindUnfinishedNone(t *testing.T) {
	repo := &identityRepoStub{}
	svc := NewIdentityService(repo, testQuestions, zap.NewNop())

	result, err := svc.FindUnfinished(context.Background(), IdentityQuery{Email: "fresh@example.com"})
	require.NoError(t, err)
	assert.False(t, result.HasUnfinished)
	assert.Empty(t, result.SessionID)
}
