package models

// Answer is a single stored answer on one question for one response.
// At most one live row exists per (response_id, question_id), enforced
// by a uniqueness constraint rather than application convention.
type Answer struct {
	ID         string `db:"id" json:"id"`
	ResponseID string `db:"response_id" json:"response_id"`
	QuestionID int    `db:"question_id" json:"question_id"`
	Value      string `db:"value" json:"value"`
	Moderated  bool   `db:"moderated" json:"moderated"`
}

// AnswerUpsert is one item of an upsert batch. A nil Moderated keeps the
// stored flag (or defaults to true on insert).
type AnswerUpsert struct {
	QuestionID int
	Value      string
	Moderated  *bool
}

// Comment is a moderated free-text answer as shown publicly, with its
// like tally.
type Comment struct {
	AnswerID   string `db:"answer_id" json:"answer_id"`
	Value      string `db:"value" json:"value"`
	LikesCount int    `db:"likes_count" json:"likes_count"`
}
