package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kleymenovo/survey-api/internal/models"
)

// StatsRepository runs the aggregate queries behind the public stats
// snapshot and the admin export. All aggregates consider completed
// responses only, and free text only when moderated.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs a new repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// TotalCompleted counts responses with status complete.
func (r *StatsRepository) TotalCompleted(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM responses WHERE status = 'complete'"); err != nil {
		return 0, fmt.Errorf("count completed responses: %w", err)
	}
	return total, nil
}

type valueCountRow struct {
	QuestionID int    `db:"question_id"`
	Text       string `db:"text"`
	QType      string `db:"qtype"`
	Value      string `db:"value"`
	Count      int    `db:"count"`
}

// ValueCounts aggregates answer values per question over completed
// responses, in catalog order. Unmoderated answers are excluded so
// hidden free text never leaks into public numbers.
func (r *StatsRepository) ValueCounts(ctx context.Context) ([]models.QuestionStats, error) {
	const query = `SELECT q.id AS question_id, q.text, q.qtype, a.value, COUNT(*) AS count
        FROM questions q
        JOIN answers a ON a.question_id = q.id
        JOIN responses resp ON resp.id = a.response_id
        WHERE resp.status = 'complete' AND a.moderated = TRUE
        GROUP BY q.id, q.text, q.qtype, q."order", a.value
        ORDER BY q."order", a.value`
	var rows []valueCountRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("aggregate answer values: %w", err)
	}

	var stats []models.QuestionStats
	index := map[int]int{}
	for _, row := range rows {
		i, ok := index[row.QuestionID]
		if !ok {
			stats = append(stats, models.QuestionStats{
				QuestionID: row.QuestionID,
				Text:       row.Text,
				QType:      row.QType,
				Counts:     map[string]int{},
			})
			i = len(stats) - 1
			index[row.QuestionID] = i
		}
		stats[i].Counts[row.Value] = row.Count
	}
	return stats, nil
}

// ListModeratedComments returns the public comments with like tallies.
// Only moderated answers of completed responses qualify.
func (r *StatsRepository) ListModeratedComments(ctx context.Context, commentsQuestionID int) ([]models.Comment, error) {
	const query = `SELECT a.id AS answer_id, a.value,
            (SELECT COUNT(*) FROM comment_likes cl WHERE cl.answer_id = a.id) AS likes_count
        FROM answers a
        JOIN responses resp ON resp.id = a.response_id
        WHERE a.question_id = $1 AND a.moderated = TRUE AND resp.status = 'complete'
        ORDER BY likes_count DESC, a.id`
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, commentsQuestionID); err != nil {
		return nil, fmt.Errorf("list moderated comments: %w", err)
	}
	return comments, nil
}

// ExportRow is one flattened answer of a completed response.
type ExportRow struct {
	SessionID  string `db:"session_id"`
	CreatedAt  string `db:"created_at"`
	QuestionID int    `db:"question_id"`
	Question   string `db:"question"`
	Value      string `db:"value"`
	Moderated  bool   `db:"moderated"`
}

// ListCompletedForExport flattens completed responses for CSV egress,
// ordered by submission time then catalog order.
func (r *StatsRepository) ListCompletedForExport(ctx context.Context) ([]ExportRow, error) {
	const query = `SELECT resp.session_id, to_char(resp.created_at, 'YYYY-MM-DD"T"HH24:MI:SSOF') AS created_at,
            q.id AS question_id, q.text AS question, a.value, a.moderated
        FROM responses resp
        JOIN answers a ON a.response_id = resp.id
        JOIN questions q ON q.id = a.question_id
        WHERE resp.status = 'complete'
        ORDER BY resp.created_at, resp.id, q."order"`
	var rows []ExportRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("export completed responses: %w", err)
	}
	return rows, nil
}
