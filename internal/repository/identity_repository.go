package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kleymenovo/survey-api/internal/models"
)

// IdentityRepository answers identity-deduplication queries over stored
// answers. Uniqueness is only enforced against completed responses; two
// concurrent drafts sharing an identity are not blocked until one of
// them finalizes.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository constructs a new repository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// ExistsCompleted reports whether a completed response already carries
// the given value on the given question. excludeResponseID, when
// non-empty, ignores that response's own rows so a finalize-time
// re-check does not collide with itself on replay.
func (r *IdentityRepository) ExistsCompleted(ctx context.Context, questionID int, value, excludeResponseID string) (bool, error) {
	query := `SELECT 1 FROM answers a
        JOIN responses resp ON resp.id = a.response_id
        WHERE a.question_id = $1 AND a.value = $2 AND resp.status = 'complete'`
	args := []interface{}{questionID, value}
	if excludeResponseID != "" {
		query += " AND resp.id <> $3"
		args = append(args, excludeResponseID)
	}
	query += " LIMIT 1"
	var one int
	err := r.db.GetContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("identity exists check: %w", err)
	}
	return true, nil
}

// FindUnfinished returns the newest response in draft or consent whose
// answer on the given question matches the value, regardless of which
// session that response belongs to. Returns nil when none matches.
func (r *IdentityRepository) FindUnfinished(ctx context.Context, questionID int, value string) (*models.SurveyResponse, error) {
	const query = `SELECT resp.id, resp.session_id, resp.status, resp.created_at
        FROM answers a
        JOIN responses resp ON resp.id = a.response_id
        WHERE a.question_id = $1 AND a.value = $2 AND resp.status IN ('draft', 'consent')
        ORDER BY resp.created_at DESC
        LIMIT 1`
	var resp models.SurveyResponse
	err := r.db.GetContext(ctx, &resp, query, questionID, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find unfinished response: %w", err)
	}
	return &resp, nil
}
