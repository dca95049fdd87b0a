package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/internal/models"
	"github.com/kleymenovo/survey-api/internal/repository"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
)

type sessionRepoStub struct {
	responses map[string]*models.SurveyResponse
	answers   map[string]map[int]*models.Answer
	upserts   [][]models.AnswerUpsert
	advanced  []models.ResponseStatus

	createErr     error
	createRaceUID string
}

func newSessionRepoStub() *sessionRepoStub {
	return &sessionRepoStub{
		responses: map[string]*models.SurveyResponse{},
		answers:   map[string]map[int]*models.Answer{},
	}
}

func (s *sessionRepoStub) GetBySessionID(ctx context.Context, sessionID string) (*models.SurveyResponse, error) {
	resp, ok := s.responses[sessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *resp
	return &cp, nil
}

func (s *sessionRepoStub) Create(ctx context.Context, resp *models.SurveyResponse) error {
	if s.createErr != nil {
		if s.createRaceUID != "" {
			// Simulate losing the insert race: the winner's row appears.
			s.responses[resp.SessionID] = &models.SurveyResponse{
				ID: s.createRaceUID, SessionID: resp.SessionID, Status: models.StatusDraft,
			}
		}
		return s.createErr
	}
	if resp.ID == "" {
		resp.ID = "resp-" + resp.SessionID
	}
	s.responses[resp.SessionID] = resp
	return nil
}

func (s *sessionRepoStub) AdvanceStatus(ctx context.Context, sessionID string, target models.ResponseStatus) (bool, error) {
	s.advanced = append(s.advanced, target)
	resp, ok := s.responses[sessionID]
	if !ok || resp.Status.Rank() >= target.Rank() {
		return false, nil
	}
	resp.Status = target
	return true, nil
}

func (s *sessionRepoStub) UpsertAnswers(ctx context.Context, responseID string, batch []models.AnswerUpsert) error {
	s.upserts = append(s.upserts, batch)
	if s.answers[responseID] == nil {
		s.answers[responseID] = map[int]*models.Answer{}
	}
	for _, item := range batch {
		moderated := true
		if item.Moderated != nil {
			moderated = *item.Moderated
		}
		s.answers[responseID][item.QuestionID] = &models.Answer{
			ResponseID: responseID, QuestionID: item.QuestionID, Value: item.Value, Moderated: moderated,
		}
	}
	return nil
}

func (s *sessionRepoStub) GetAnswer(ctx context.Context, responseID string, questionID int) (*models.Answer, error) {
	ans, ok := s.answers[responseID][questionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return ans, nil
}

type identityGuardStub struct {
	taken map[models.IdentityField]string
}

func (s *identityGuardStub) ExistsCompletedValue(ctx context.Context, field models.IdentityField, value, excludeResponseID string) (bool, error) {
	return s.taken != nil && s.taken[field] == value, nil
}

type gateStub struct {
	approve bool
	reason  string
}

func (s *gateStub) Review(ctx context.Context, text string) (bool, string) {
	if s.approve {
		return true, "OK"
	}
	return false, s.reason
}

func (s *gateStub) Toxicity(text string) float64 { return 0.5 }

type invalidatorStub struct{ calls int }

func (s *invalidatorStub) Invalidate(ctx context.Context) { s.calls++ }

type consentStoreStub struct {
	saved map[string][]byte
}

func (s *consentStoreStub) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[filename] = data
	return filename, nil
}

var testQuestions = models.QuestionMap{FullNameID: 1, CadastralID: 2, EmailID: 3, PhoneID: 4, CommentsID: 16}

func newSessionFixture(repo *sessionRepoStub, guard *identityGuardStub, gate *gateStub) (*SessionService, *invalidatorStub, *consentStoreStub) {
	stats := &invalidatorStub{}
	consents := &consentStoreStub{}
	svc := NewSessionService(repo, guard, gate, stats, consents, testQuestions, validator.New(), zap.NewNop())
	return svc, stats, consents
}

func TestGetOrCreateNewSession(t *testing.T) {
	repo := newSessionRepoStub()
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	resp, err := svc.GetOrCreate(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, models.StatusDraft, resp.Status)
}

func TestGetOrCreateExisting(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusConsent}
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	resp, err := svc.GetOrCreate(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, models.StatusConsent, resp.Status)
}

func TestGetOrCreateAbsorbsInsertRace(t *testing.T) {
	repo := newSessionRepoStub()
	repo.createErr = repository.ErrDuplicate
	repo.createRaceUID = "resp-winner"
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	resp, err := svc.GetOrCreate(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "resp-winner", resp.ID)
}

func TestSubmitBaseAdvancesOnConsent(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusDraft}
	svc, stats, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	consent := true
	result, err := svc.SubmitBase(context.Background(), BaseStepRequest{
		SessionID: "sess-1",
		Answers: []AnswerInput{
			{QuestionID: 3, Value: "user@example.com"},
			{QuestionID: 2, Value: "50:21:0000000:100"},
		},
		Consent: &consent,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConsent, result.Status)
	require.Len(t, repo.upserts, 1)
	// The base step never sets moderation flags.
	for _, item := range repo.upserts[0] {
		assert.Nil(t, item.Moderated)
	}
	// A cadastral answer changes public aggregates.
	assert.Equal(t, 1, stats.calls)
}

func TestSubmitBaseDeclinedConsentKeepsDraft(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusDraft}
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	consent := false
	result, err := svc.SubmitBase(context.Background(), BaseStepRequest{
		SessionID: "sess-1",
		Answers:   []AnswerInput{{QuestionID: 1, Value: "Иван Петров"}},
		Consent:   &consent,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, result.Status)
	assert.Empty(t, repo.advanced)
}

func TestSubmitBaseStoresConsentBlob(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusDraft}
	svc, _, consents := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	consent := true
	_, err := svc.SubmitBase(context.Background(), BaseStepRequest{
		SessionID:  "sess-1",
		Answers:    []AnswerInput{{QuestionID: 1, Value: "Иван"}},
		Consent:    &consent,
		Screenshot: "data:image/png;base64," + payload,
	})
	require.NoError(t, err)
	require.Len(t, consents.saved, 1)
	for _, data := range consents.saved {
		assert.Equal(t, []byte("png-bytes"), data)
	}
}

func TestSubmitBaseRejectsCompleted(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusComplete}
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	consent := true
	_, err := svc.SubmitBase(context.Background(), BaseStepRequest{
		SessionID: "sess-1",
		Answers:   []AnswerInput{{QuestionID: 1, Value: "Иван"}},
		Consent:   &consent,
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSubmitDetailsCompletes(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusConsent}
	svc, stats, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	result, err := svc.SubmitDetails(context.Background(), DetailsStepRequest{
		SessionID: "sess-1",
		Answers: []AnswerInput{
			{QuestionID: 10, Value: "детская площадка"},
			{QuestionID: 16, Value: "Спасибо, хорошая идея для поселка"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, result.Status)
	assert.Equal(t, models.StatusComplete, repo.responses["sess-1"].Status)
	assert.True(t, repo.answers["resp-1"][16].Moderated)
	assert.Equal(t, 1, stats.calls)
}

func TestSubmitDetailsRejectedCommentStillCompletes(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusDraft}
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: false, reason: "спам"})

	result, err := svc.SubmitDetails(context.Background(), DetailsStepRequest{
		SessionID: "sess-1",
		Answers:   []AnswerInput{{QuestionID: 16, Value: "Купите мои услуги недорого"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, result.Status)
	// The comment is stored but hidden, never blocking submission.
	assert.False(t, repo.answers["resp-1"][16].Moderated)
}

func TestSubmitDetailsSkipsModerationForBlankComment(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusDraft}
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: false, reason: "never called"})

	_, err := svc.SubmitDetails(context.Background(), DetailsStepRequest{
		SessionID: "sess-1",
		Answers:   []AnswerInput{{QuestionID: 16, Value: "   "}},
	})
	require.NoError(t, err)
	assert.True(t, repo.answers["resp-1"][16].Moderated)
}

func TestSubmitDetailsIdentityConflict(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusConsent}
	repo.answers["resp-1"] = map[int]*models.Answer{
		3: {ResponseID: "resp-1", QuestionID: 3, Value: "taken@example.com", Moderated: true},
	}
	guard := &identityGuardStub{taken: map[models.IdentityField]string{models.IdentityEmail: "taken@example.com"}}
	svc, _, _ := newSessionFixture(repo, guard, &gateStub{approve: true})

	_, err := svc.SubmitDetails(context.Background(), DetailsStepRequest{
		SessionID: "sess-1",
		Answers:   []AnswerInput{{QuestionID: 10, Value: "парковка"}},
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.NotEqual(t, models.StatusComplete, repo.responses["sess-1"].Status)
}

func TestSubmitDetailsUnknownSession(t *testing.T) {
	repo := newSessionRepoStub()
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	_, err := svc.SubmitDetails(context.Background(), DetailsStepRequest{
		SessionID: "sess-missing",
		Answers:   []AnswerInput{{QuestionID: 10, Value: "x"}},
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAdvanceStatusUnknownTarget(t *testing.T) {
	repo := newSessionRepoStub()
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	err := svc.AdvanceStatus(context.Background(), "sess-1", models.ResponseStatus("archived"))
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAdvanceStatusBackwardIsNoOp(t *testing.T) {
	repo := newSessionRepoStub()
	repo.responses["sess-1"] = &models.SurveyResponse{ID: "resp-1", SessionID: "sess-1", Status: models.StatusConsent}
	svc, _, _ := newSessionFixture(repo, &identityGuardStub{}, &gateStub{approve: true})

	err := svc.AdvanceStatus(context.Background(), "sess-1", models.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConsent, repo.responses["sess-1"].Status)
}
