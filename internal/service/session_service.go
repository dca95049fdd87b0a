package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/internal/models"
	"github.com/kleymenovo/survey-api/internal/repository"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
)

type sessionRepository interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.SurveyResponse, error)
	Create(ctx context.Context, resp *models.SurveyResponse) error
	AdvanceStatus(ctx context.Context, sessionID string, target models.ResponseStatus) (bool, error)
	UpsertAnswers(ctx context.Context, responseID string, batch []models.AnswerUpsert) error
	GetAnswer(ctx context.Context, responseID string, questionID int) (*models.Answer, error)
}

type identityGuard interface {
	ExistsCompletedValue(ctx context.Context, field models.IdentityField, value, excludeResponseID string) (bool, error)
}

type commentGate interface {
	Review(ctx context.Context, text string) (bool, string)
	Toxicity(text string) float64
}

type statsInvalidator interface {
	Invalidate(ctx context.Context)
}

type consentStore interface {
	Save(filename string, data []byte) (string, error)
}

// SessionService owns the survey-response state machine: it creates or
// resumes sessions, upserts answer batches, gates comments through
// moderation, and runs the finalize-time identity re-check.
type SessionService struct {
	repo       sessionRepository
	identities identityGuard
	moderation commentGate
	stats      statsInvalidator
	consents   consentStore
	questions  models.QuestionMap
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSessionService constructs the service.
func NewSessionService(
	repo sessionRepository,
	identities identityGuard,
	moderation commentGate,
	stats statsInvalidator,
	consents consentStore,
	questions models.QuestionMap,
	validate *validator.Validate,
	logger *zap.Logger,
) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:       repo,
		identities: identities,
		moderation: moderation,
		stats:      stats,
		consents:   consents,
		questions:  questions,
		validator:  validate,
		logger:     logger,
	}
}

// GetOrCreate fetches a response by session token, creating a draft when
// absent. Losing the creation race to a duplicate token is absorbed by
// re-fetching the winner's row, never by retrying the insert.
func (s *SessionService) GetOrCreate(ctx context.Context, sessionID string) (*models.SurveyResponse, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp, err := s.repo.GetBySessionID(ctx, sessionID)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	created := &models.SurveyResponse{SessionID: sessionID, Status: models.StatusDraft}
	err = s.repo.Create(ctx, created)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	resp, err = s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "session creation raced and re-fetch failed")
	}
	return resp, nil
}

// AdvanceStatus moves a session forward. A non-forward target is a
// no-op success so replayed client requests stay harmless.
func (s *SessionService) AdvanceStatus(ctx context.Context, sessionID string, target models.ResponseStatus) error {
	if !target.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", target))
	}
	if _, err := s.repo.AdvanceStatus(ctx, sessionID, target); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance session status")
	}
	return nil
}

// AnswerInput is one submitted answer.
type AnswerInput struct {
	QuestionID int    `json:"question_id" validate:"required,gt=0"`
	Value      string `json:"value"`
}

// BaseStepRequest carries the identity and consent step.
type BaseStepRequest struct {
	SessionID  string        `json:"session_id" validate:"required"`
	Answers    []AnswerInput `json:"answers" validate:"required,dive"`
	Consent    *bool         `json:"consent" validate:"required"`
	Screenshot string        `json:"screenshot"`
}

// BaseStepResult reports the session the step was applied to.
type BaseStepResult struct {
	SessionID string                `json:"session_id"`
	Status    models.ResponseStatus `json:"status"`
}

// SubmitBase upserts the identity and consent answers, advances to
// consent when the flag is set, and stores the optional proof blob as
// an opaque file.
func (s *SessionService) SubmitBase(ctx context.Context, req BaseStepRequest) (*BaseStepResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	resp, err := s.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if resp.Status == models.StatusComplete {
		return nil, appErrors.Clone(appErrors.ErrConflict, "survey already submitted")
	}

	batch := make([]models.AnswerUpsert, 0, len(req.Answers))
	for _, ans := range req.Answers {
		batch = append(batch, models.AnswerUpsert{QuestionID: ans.QuestionID, Value: ans.Value})
	}
	if err := s.repo.UpsertAnswers(ctx, resp.ID, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save answers")
	}

	status := resp.Status
	if *req.Consent {
		if _, err := s.repo.AdvanceStatus(ctx, req.SessionID, models.StatusConsent); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance session status")
		}
		if status.Rank() < models.StatusConsent.Rank() {
			status = models.StatusConsent
		}
	}

	if req.Screenshot != "" {
		if err := s.saveConsentBlob(req.SessionID, req.Screenshot); err != nil {
			return nil, err
		}
	}

	if s.hasCadastralAnswer(req.Answers) && s.stats != nil {
		s.stats.Invalidate(ctx)
	}

	return &BaseStepResult{SessionID: req.SessionID, Status: status}, nil
}

// DetailsStepRequest carries the free-text and priority step.
type DetailsStepRequest struct {
	SessionID string        `json:"session_id" validate:"required"`
	Answers   []AnswerInput `json:"answers" validate:"required,dive"`
}

// DetailsStepResult reports the finalized session.
type DetailsStepResult struct {
	SessionID string                `json:"session_id"`
	Status    models.ResponseStatus `json:"status"`
}

// SubmitDetails moderates the comments answer, upserts the batch, and
// finalizes the session. The step deliberately does not require the
// consent status to have been reached first. Immediately before the
// flip to complete the identity-completed check is re-run; a hit fails
// with Conflict. No transaction spans the check and the flip, so the
// race window is bounded, not eliminated.
func (s *SessionService) SubmitDetails(ctx context.Context, req DetailsStepRequest) (*DetailsStepResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	resp, err := s.repo.GetBySessionID(ctx, req.SessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if resp.Status == models.StatusComplete {
		return nil, appErrors.Clone(appErrors.ErrConflict, "survey already submitted")
	}

	batch := make([]models.AnswerUpsert, 0, len(req.Answers))
	for _, ans := range req.Answers {
		item := models.AnswerUpsert{QuestionID: ans.QuestionID, Value: ans.Value}
		moderated := true
		if ans.QuestionID == s.questions.CommentsID && strings.TrimSpace(ans.Value) != "" {
			approved, reason := s.moderation.Review(ctx, ans.Value)
			moderated = approved
			if !approved {
				s.logger.Info("comment rejected by moderation",
					zap.String("session_id", req.SessionID),
					zap.String("reason", reason),
					zap.Float64("toxicity", s.moderation.Toxicity(ans.Value)))
			}
		}
		item.Moderated = &moderated
		batch = append(batch, item)
	}
	if err := s.repo.UpsertAnswers(ctx, resp.ID, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save answers")
	}

	if err := s.recheckIdentity(ctx, resp.ID); err != nil {
		return nil, err
	}

	if _, err := s.repo.AdvanceStatus(ctx, req.SessionID, models.StatusComplete); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize session")
	}

	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}

	return &DetailsStepResult{SessionID: req.SessionID, Status: models.StatusComplete}, nil
}

// recheckIdentity re-runs the completed-identity lookup for every
// identity answer this response carries, excluding its own rows.
func (s *SessionService) recheckIdentity(ctx context.Context, responseID string) error {
	fields := []models.IdentityField{models.IdentityEmail, models.IdentityPhone, models.IdentityCadastral}
	for _, field := range fields {
		questionID := s.questions.IdentityQuestionID(field)
		ans, err := s.repo.GetAnswer(ctx, responseID, questionID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity answer")
		}
		if strings.TrimSpace(ans.Value) == "" {
			continue
		}
		exists, err := s.identities.ExistsCompletedValue(ctx, field, ans.Value, responseID)
		if err != nil {
			return err
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("a completed submission already uses this %s", field))
		}
	}
	return nil
}

func (s *SessionService) saveConsentBlob(sessionID, screenshot string) error {
	payload := screenshot
	if idx := strings.Index(payload, ","); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed consent screenshot")
	}
	filename := fmt.Sprintf("consent_%s_%s.png", sessionID, time.Now().UTC().Format("20060102_150405"))
	if _, err := s.consents.Save(filename, data); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store consent proof")
	}
	return nil
}

func (s *SessionService) hasCadastralAnswer(answers []AnswerInput) bool {
	for _, ans := range answers {
		if ans.QuestionID == s.questions.CadastralID && strings.TrimSpace(ans.Value) != "" {
			return true
		}
	}
	return false
}
