package models

import "time"

// VerificationCode is one issued one-time code bound to an (email,
// session) pair. Issuing a new code marks all prior unused rows for the
// pair as used, so at most one row is ever active.
type VerificationCode struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	Code          string    `db:"code" json:"-"`
	SessionID     string    `db:"session_id" json:"session_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	Used          bool      `db:"used" json:"used"`
	LastRequestAt time.Time `db:"last_request_at" json:"last_request_at"`
}
