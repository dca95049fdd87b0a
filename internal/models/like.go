package models

import "time"

// CommentLike records one approval vote per (answer, origin address).
type CommentLike struct {
	ID        string    `db:"id" json:"id"`
	AnswerID  string    `db:"answer_id" json:"answer_id"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
