package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kleymenovo/survey-api/internal/models"
)

// VerificationRepository persists one-time verification codes. Multiple
// rows may exist per (email, session) pair over time; issuance marks all
// prior unused rows as used so at most one stays active.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository constructs a new repository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// LatestForPair returns the most recent code row for the pair, or
// sql.ErrNoRows when the pair never requested a code.
func (r *VerificationRepository) LatestForPair(ctx context.Context, email, sessionID string) (*models.VerificationCode, error) {
	var code models.VerificationCode
	const query = `SELECT id, email, code, session_id, created_at, expires_at, used, last_request_at
        FROM verification_codes
        WHERE email = $1 AND session_id = $2
        ORDER BY created_at DESC
        LIMIT 1`
	if err := r.db.GetContext(ctx, &code, query, email, sessionID); err != nil {
		return nil, err
	}
	return &code, nil
}

// InvalidateUnused marks every unused code for the pair as used.
func (r *VerificationRepository) InvalidateUnused(ctx context.Context, email, sessionID string) error {
	const query = `UPDATE verification_codes SET used = TRUE
        WHERE email = $1 AND session_id = $2 AND used = FALSE`
	if _, err := r.db.ExecContext(ctx, query, email, sessionID); err != nil {
		return fmt.Errorf("invalidate verification codes: %w", err)
	}
	return nil
}

// Insert stores a freshly issued code.
func (r *VerificationRepository) Insert(ctx context.Context, code *models.VerificationCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if code.CreatedAt.IsZero() {
		code.CreatedAt = now
	}
	if code.LastRequestAt.IsZero() {
		code.LastRequestAt = now
	}
	const query = `INSERT INTO verification_codes (id, email, code, session_id, created_at, expires_at, used, last_request_at)
        VALUES (:id, :email, :code, :session_id, :created_at, :expires_at, :used, :last_request_at)`
	if _, err := r.db.NamedExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("insert verification code: %w", err)
	}
	return nil
}

// FindUnused returns the unused row matching all three fields, or
// sql.ErrNoRows. The expiry decision is left to the caller so an
// expired row stays unused until superseded by a new issuance.
func (r *VerificationRepository) FindUnused(ctx context.Context, email, code, sessionID string) (*models.VerificationCode, error) {
	var row models.VerificationCode
	const query = `SELECT id, email, code, session_id, created_at, expires_at, used, last_request_at
        FROM verification_codes
        WHERE email = $1 AND code = $2 AND session_id = $3 AND used = FALSE
        LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, email, code, sessionID); err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkUsed consumes a code after a successful verification.
func (r *VerificationRepository) MarkUsed(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE verification_codes SET used = TRUE WHERE id = $1", id); err != nil {
		return fmt.Errorf("mark verification code used: %w", err)
	}
	return nil
}
