package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kleymenovo/survey-api/internal/models"
	"github.com/kleymenovo/survey-api/pkg/response"
)

type questionLister interface {
	List(ctx context.Context) ([]models.Question, error)
}

// QuestionHandler serves the static question catalog.
type QuestionHandler struct {
	questions questionLister
}

// NewQuestionHandler builds a new handler.
func NewQuestionHandler(questions questionLister) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

// List godoc
// @Summary List the survey questions in display order
// @Tags Survey
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /survey/questions [get]
func (h *QuestionHandler) List(c *gin.Context) {
	questions, err := h.questions.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, nil)
}
