package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kleymenovo/survey-api/internal/models"
)

// QuestionRepository reads the static question catalog. The catalog is
// seeded once before first use and never mutated here.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository constructs a new repository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// List returns all questions in display order.
func (r *QuestionRepository) List(ctx context.Context) ([]models.Question, error) {
	var questions []models.Question
	const query = `SELECT id, text, qtype, "order" FROM questions ORDER BY "order"`
	if err := r.db.SelectContext(ctx, &questions, query); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// VerifyWellKnown checks at startup that every configured well-known
// question id exists in the seeded catalog.
func (r *QuestionRepository) VerifyWellKnown(ctx context.Context, qm models.QuestionMap) error {
	ids := []int{qm.FullNameID, qm.CadastralID, qm.EmailID, qm.PhoneID, qm.CommentsID}
	for _, id := range ids {
		var one int
		if err := r.db.GetContext(ctx, &one, "SELECT 1 FROM questions WHERE id = $1", id); err != nil {
			return fmt.Errorf("well-known question %d missing from catalog: %w", id, err)
		}
	}
	return nil
}
