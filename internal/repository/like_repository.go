package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kleymenovo/survey-api/internal/models"
)

// LikeRepository persists comment likes. The (answer_id, ip_address)
// uniqueness constraint is the dedup mechanism.
type LikeRepository struct {
	db *sqlx.DB
}

// NewLikeRepository constructs a new repository.
func NewLikeRepository(db *sqlx.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

// Insert records one like. A repeated like from the same origin is
// rejected by the constraint and reported as ErrDuplicate, which callers
// treat as a normal outcome rather than an error.
func (r *LikeRepository) Insert(ctx context.Context, like *models.CommentLike) error {
	if like.ID == "" {
		like.ID = uuid.NewString()
	}
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO comment_likes (id, answer_id, ip_address, created_at)
        VALUES (:id, :answer_id, :ip_address, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, like); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert comment like: %w", err)
	}
	return nil
}

// CountByAnswer recomputes the like tally on demand; nothing is cached
// at this layer.
func (r *LikeRepository) CountByAnswer(ctx context.Context, answerID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM comment_likes WHERE answer_id = $1", answerID); err != nil {
		return 0, fmt.Errorf("count comment likes: %w", err)
	}
	return count, nil
}
