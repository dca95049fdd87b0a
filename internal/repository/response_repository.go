package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kleymenovo/survey-api/internal/models"
)

// ResponseRepository owns persistence for survey responses and their
// answers. Conflicting writes are serialised by the storage layer's
// uniqueness constraints, not by application locks.
type ResponseRepository struct {
	db *sqlx.DB
}

// NewResponseRepository constructs a new repository.
func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// GetBySessionID fetches a response by its session token. Returns
// sql.ErrNoRows unchanged when absent so callers can distinguish a miss.
func (r *ResponseRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.SurveyResponse, error) {
	var resp models.SurveyResponse
	err := r.db.GetContext(ctx, &resp,
		"SELECT id, session_id, status, created_at FROM responses WHERE session_id = $1", sessionID)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Create inserts a new draft response. A racing duplicate session_id is
// rejected by the unique constraint and surfaces as ErrDuplicate; the
// caller must re-fetch, not retry the insert.
func (r *ResponseRepository) Create(ctx context.Context, resp *models.SurveyResponse) error {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	if resp.Status == "" {
		resp.Status = models.StatusDraft
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO responses (id, session_id, status, created_at)
        VALUES (:id, :session_id, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resp); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

// AdvanceStatus moves a response forward to target. The WHERE clause
// only matches statuses strictly below the target, so replays and
// non-forward targets affect zero rows, which is reported as a no-op.
func (r *ResponseRepository) AdvanceStatus(ctx context.Context, sessionID string, target models.ResponseStatus) (bool, error) {
	below := make([]string, 0, 2)
	for _, s := range []models.ResponseStatus{models.StatusDraft, models.StatusConsent} {
		if s.Rank() < target.Rank() {
			below = append(below, string(s))
		}
	}
	if len(below) == 0 {
		return false, nil
	}
	const query = `UPDATE responses SET status = $1 WHERE session_id = $2 AND status = ANY($3)`
	res, err := r.db.ExecContext(ctx, query, string(target), sessionID, pq.Array(below))
	if err != nil {
		return false, fmt.Errorf("advance response status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance response status: %w", err)
	}
	return affected > 0, nil
}

// UpsertAnswers applies a batch atomically: every item either updates
// the existing (response, question) row or inserts a new one. Replaying
// the same batch leaves the same final state.
func (r *ResponseRepository) UpsertAnswers(ctx context.Context, responseID string, batch []models.AnswerUpsert) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin answers tx: %w", err)
	}
	const withFlag = `INSERT INTO answers (id, response_id, question_id, value, moderated)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (response_id, question_id)
        DO UPDATE SET value = EXCLUDED.value, moderated = EXCLUDED.moderated`
	const keepFlag = `INSERT INTO answers (id, response_id, question_id, value, moderated)
        VALUES ($1, $2, $3, $4, TRUE)
        ON CONFLICT (response_id, question_id)
        DO UPDATE SET value = EXCLUDED.value`
	for _, item := range batch {
		if item.Moderated != nil {
			_, err = tx.ExecContext(ctx, withFlag, uuid.NewString(), responseID, item.QuestionID, item.Value, *item.Moderated)
		} else {
			_, err = tx.ExecContext(ctx, keepFlag, uuid.NewString(), responseID, item.QuestionID, item.Value)
		}
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert answer for question %d: %w", item.QuestionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit answers: %w", err)
	}
	return nil
}

// GetAnswer returns one answer of a response, or sql.ErrNoRows.
func (r *ResponseRepository) GetAnswer(ctx context.Context, responseID string, questionID int) (*models.Answer, error) {
	var ans models.Answer
	err := r.db.GetContext(ctx, &ans,
		"SELECT id, response_id, question_id, value, moderated FROM answers WHERE response_id = $1 AND question_id = $2",
		responseID, questionID)
	if err != nil {
		return nil, err
	}
	return &ans, nil
}

// GetAnswerByID fetches a single answer row, or sql.ErrNoRows.
func (r *ResponseRepository) GetAnswerByID(ctx context.Context, answerID string) (*models.Answer, error) {
	var ans models.Answer
	err := r.db.GetContext(ctx, &ans,
		"SELECT id, response_id, question_id, value, moderated FROM answers WHERE id = $1", answerID)
	if err != nil {
		return nil, err
	}
	return &ans, nil
}

// SetModerated flips the moderation flag on a stored answer. This is the
// only mutation allowed on answers of a completed response.
func (r *ResponseRepository) SetModerated(ctx context.Context, answerID string, moderated bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE answers SET moderated = $1 WHERE id = $2", moderated, answerID)
	if err != nil {
		return false, fmt.Errorf("set answer moderation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set answer moderation: %w", err)
	}
	return affected > 0, nil
}
