package models

import "time"

// ResponseStatus is the lifecycle state of a survey response.
type ResponseStatus string

const (
	StatusDraft    ResponseStatus = "draft"
	StatusConsent  ResponseStatus = "consent"
	StatusComplete ResponseStatus = "complete"
)

// statusOrder defines the forward-only progression of a response.
var statusOrder = map[ResponseStatus]int{
	StatusDraft:    0,
	StatusConsent:  1,
	StatusComplete: 2,
}

// Rank returns the position of the status in the forward-only ordering,
// or -1 for an unknown status.
func (s ResponseStatus) Rank() int {
	if rank, ok := statusOrder[s]; ok {
		return rank
	}
	return -1
}

// Valid reports whether the status is one of the known lifecycle states.
func (s ResponseStatus) Valid() bool {
	return s.Rank() >= 0
}

// SurveyResponse is one respondent attempt, identified by an opaque
// session token. Status only ever advances draft -> consent -> complete.
type SurveyResponse struct {
	ID        string         `db:"id" json:"id"`
	SessionID string         `db:"session_id" json:"session_id"`
	Status    ResponseStatus `db:"status" json:"status"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Pagination captures paging metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
