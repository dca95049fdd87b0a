package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/internal/models"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
)

type identityRepository interface {
	ExistsCompleted(ctx context.Context, questionID int, value, excludeResponseID string) (bool, error)
	FindUnfinished(ctx context.Context, questionID int, value string) (*models.SurveyResponse, error)
}

// IdentityService answers deduplication questions over the fixed
// identity fields. The field-to-question mapping is bound once at
// construction and never re-resolved.
type IdentityService struct {
	repo      identityRepository
	questions models.QuestionMap
	logger    *zap.Logger
}

// NewIdentityService constructs the service.
func NewIdentityService(repo identityRepository, questions models.QuestionMap, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{repo: repo, questions: questions, logger: logger}
}

// IdentityQuery carries the identity fields a client supplied. Empty
// fields are skipped.
type IdentityQuery struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Cadastral string `json:"cadastral"`
}

// UniqueCheckResult reports, per supplied field, whether a completed
// submission already uses the value.
type UniqueCheckResult struct {
	EmailExists     *bool `json:"email_exists,omitempty"`
	PhoneExists     *bool `json:"phone_exists,omitempty"`
	CadastralExists *bool `json:"cadastral_exists,omitempty"`
}

// CheckUnique looks each supplied field up against completed responses
// only. A value present solely on a draft does not count.
func (s *IdentityService) CheckUnique(ctx context.Context, q IdentityQuery) (*UniqueCheckResult, error) {
	result := &UniqueCheckResult{}
	checks := []struct {
		field models.IdentityField
		value string
		dest  **bool
	}{
		{models.IdentityEmail, q.Email, &result.EmailExists},
		{models.IdentityPhone, q.Phone, &result.PhoneExists},
		{models.IdentityCadastral, q.Cadastral, &result.CadastralExists},
	}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		exists, err := s.ExistsCompletedValue(ctx, check.field, check.value, "")
		if err != nil {
			return nil, err
		}
		v := exists
		*check.dest = &v
	}
	return result, nil
}

// UnfinishedResult points a client at a resumable half-finished session.
type UnfinishedResult struct {
	HasUnfinished bool   `json:"has_unfinished"`
	SessionID     string `json:"session_id,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// FindUnfinished searches draft and consent responses matching any one
// supplied identity field, in the order email, phone, cadastral; the
// first hit wins and no merging happens across fields.
func (s *IdentityService) FindUnfinished(ctx context.Context, q IdentityQuery) (*UnfinishedResult, error) {
	probes := []struct {
		field models.IdentityField
		value string
	}{
		{models.IdentityEmail, q.Email},
		{models.IdentityPhone, q.Phone},
		{models.IdentityCadastral, q.Cadastral},
	}
	for _, probe := range probes {
		if probe.value == "" {
			continue
		}
		questionID := s.questions.IdentityQuestionID(probe.field)
		resp, err := s.repo.FindUnfinished(ctx, questionID, probe.value)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search unfinished responses")
		}
		if resp != nil {
			return &UnfinishedResult{
				HasUnfinished: true,
				SessionID:     resp.SessionID,
				CreatedAt:     resp.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			}, nil
		}
	}
	return &UnfinishedResult{HasUnfinished: false}, nil
}

// ExistsCompletedValue checks one identity value against completed
// responses, optionally ignoring a response's own rows. It backs both
// the public uniqueness check and the finalize-time re-check.
func (s *IdentityService) ExistsCompletedValue(ctx context.Context, field models.IdentityField, value, excludeResponseID string) (bool, error) {
	questionID := s.questions.IdentityQuestionID(field)
	if questionID == 0 {
		return false, appErrors.Clone(appErrors.ErrValidation, "unknown identity field")
	}
	exists, err := s.repo.ExistsCompleted(ctx, questionID, value, excludeResponseID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check identity uniqueness")
	}
	return exists, nil
}
