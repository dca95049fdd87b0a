package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/internal/models"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
)

type answerModerator interface {
	GetAnswerByID(ctx context.Context, answerID string) (*models.Answer, error)
	SetModerated(ctx context.Context, answerID string, moderated bool) (bool, error)
}

// AdminService covers the manual moderation override. The automatic
// gate fail-opens, so operators occasionally need to hide a published
// comment or restore a wrongly rejected one after the fact.
type AdminService struct {
	answers answerModerator
	stats   statsInvalidator
	logger  *zap.Logger
}

// NewAdminService constructs the service.
func NewAdminService(answers answerModerator, stats statsInvalidator, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{answers: answers, stats: stats, logger: logger}
}

// SetModeration flips the published flag on an answer and returns the
// updated row.
func (s *AdminService) SetModeration(ctx context.Context, answerID string, moderated bool, actor string) (*models.Answer, error) {
	updated, err := s.answers.SetModerated(ctx, answerID, moderated)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update moderation flag")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "answer not found")
	}

	answer, err := s.answers.GetAnswerByID(ctx, answerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "answer not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answer")
	}

	s.logger.Info("moderation override applied",
		zap.String("answer_id", answerID),
		zap.Bool("moderated", moderated),
		zap.String("actor", actor))

	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
	return answer, nil
}
