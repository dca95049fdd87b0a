package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/internal/models"
	"github.com/kleymenovo/survey-api/internal/repository"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
	"github.com/kleymenovo/survey-api/pkg/export"
)

type statsRepository interface {
	TotalCompleted(ctx context.Context) (int, error)
	ValueCounts(ctx context.Context) ([]models.QuestionStats, error)
	ListModeratedComments(ctx context.Context, commentsQuestionID int) ([]models.Comment, error)
	ListCompletedForExport(ctx context.Context) ([]repository.ExportRow, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const (
	statsSummaryKey  = "stats:summary"
	statsCommentsKey = "stats:comments"
	statsKeyPattern  = "stats:*"
)

// StatsService serves read-heavy aggregates behind a Redis cache.
// Writers call Invalidate after any mutation that can change the
// aggregates; cache failures degrade to direct reads.
type StatsService struct {
	repo      statsRepository
	cache     statsCache
	questions models.QuestionMap
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewStatsService constructs the service.
func NewStatsService(repo statsRepository, cache statsCache, questions models.QuestionMap, ttl time.Duration, logger *zap.Logger) *StatsService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		repo:      repo,
		cache:     cache,
		questions: questions,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// Summary returns per-question answer distributions over completed
// submissions, cached for the configured TTL.
func (s *StatsService) Summary(ctx context.Context) (*models.StatsSummary, error) {
	var cached models.StatsSummary
	if err := s.cacheGet(ctx, statsSummaryKey, &cached); err == nil {
		return &cached, nil
	}

	total, err := s.repo.TotalCompleted(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count submissions")
	}
	questions, err := s.repo.ValueCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate answers")
	}

	summary := &models.StatsSummary{
		TotalCompleted: total,
		Questions:      questions,
		GeneratedAt:    s.now().UTC(),
	}
	s.cacheSet(ctx, statsSummaryKey, summary)
	return summary, nil
}

// Comments returns published comments ordered by like count, cached.
func (s *StatsService) Comments(ctx context.Context) ([]models.Comment, error) {
	var cached []models.Comment
	if err := s.cacheGet(ctx, statsCommentsKey, &cached); err == nil {
		return cached, nil
	}

	comments, err := s.repo.ListModeratedComments(ctx, s.questions.CommentsID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	s.cacheSet(ctx, statsCommentsKey, comments)
	return comments, nil
}

// Invalidate drops all cached aggregates. Best effort; a failed delete
// only means stale reads until the TTL runs out.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, statsKeyPattern); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}

// ExportCSV streams all completed submissions as flat CSV rows.
func (s *StatsService) ExportCSV(ctx context.Context, w io.Writer) error {
	rows, err := s.repo.ListCompletedForExport(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}

	dataset := export.Dataset{
		Headers: []string{"session_id", "submitted_at", "question_id", "question", "answer", "published"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		dataset.Rows = append(dataset.Rows, []string{
			r.SessionID,
			r.CreatedAt,
			strconv.Itoa(r.QuestionID),
			r.Question,
			r.Value,
			strconv.FormatBool(r.Moderated),
		})
	}

	exporter := export.NewCSVExporter()
	payload, err := exporter.Render(dataset)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	if _, err := w.Write(payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write export")
	}
	return nil
}

func (s *StatsService) cacheGet(ctx context.Context, key string, dest interface{}) error {
	if s.cache == nil {
		return appErrors.ErrCacheMiss
	}
	err := s.cache.Get(ctx, key, dest)
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

func (s *StatsService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}
