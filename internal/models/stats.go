package models

import "time"

// QuestionStats aggregates answer value counts for one question over
// completed responses only.
type QuestionStats struct {
	QuestionID int            `json:"question_id"`
	Text       string         `json:"text"`
	QType      string         `json:"qtype"`
	Counts     map[string]int `json:"counts"`
}

// StatsSummary is the cached public aggregate snapshot.
type StatsSummary struct {
	TotalCompleted int             `json:"total_completed"`
	Questions      []QuestionStats `json:"questions"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
