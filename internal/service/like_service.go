package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/internal/models"
	"github.com/kleymenovo/survey-api/internal/repository"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
)

type likeRepository interface {
	Insert(ctx context.Context, like *models.CommentLike) error
	CountByAnswer(ctx context.Context, answerID string) (int, error)
}

type likeAnswerReader interface {
	GetAnswerByID(ctx context.Context, answerID string) (*models.Answer, error)
}

// LikeService records at most one like per (answer, origin) pair.
// Duplicate requests are reported as already_liked rather than failed,
// so clients can treat the button as idempotent.
type LikeService struct {
	likes   likeRepository
	answers likeAnswerReader
	stats   statsInvalidator
	logger  *zap.Logger
}

// NewLikeService constructs the service.
func NewLikeService(likes likeRepository, answers likeAnswerReader, stats statsInvalidator, logger *zap.Logger) *LikeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LikeService{likes: likes, answers: answers, stats: stats, logger: logger}
}

// LikeResult is the outcome of a like attempt with the fresh count.
type LikeResult struct {
	Status     string `json:"status"`
	LikesCount int    `json:"likes_count"`
}

const (
	likeStatusLiked        = "liked"
	likeStatusAlreadyLiked = "already_liked"
)

// Like records a like from origin on the given comment answer. Only
// comments that passed moderation accept likes.
func (s *LikeService) Like(ctx context.Context, answerID, origin string) (*LikeResult, error) {
	answer, err := s.answers.GetAnswerByID(ctx, answerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if !answer.Moderated {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "comment is not published")
	}

	status := likeStatusLiked
	err = s.likes.Insert(ctx, &models.CommentLike{AnswerID: answerID, IPAddress: origin})
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		status = likeStatusAlreadyLiked
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record like")
	}

	count, err := s.likes.CountByAnswer(ctx, answerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count likes")
	}

	if status == likeStatusLiked && s.stats != nil {
		s.stats.Invalidate(ctx)
	}

	return &LikeResult{Status: status, LikesCount: count}, nil
}

// Count returns the current like total for an answer.
func (s *LikeService) Count(ctx context.Context, answerID string) (int, error) {
	count, err := s.likes.CountByAnswer(ctx, answerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count likes")
	}
	return count, nil
}
