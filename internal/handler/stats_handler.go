package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kleymenovo/survey-api/internal/models"
	"github.com/kleymenovo/survey-api/pkg/response"
)

type statsService interface {
	Summary(ctx context.Context) (*models.StatsSummary, error)
}

// StatsHandler serves the public aggregate snapshot.
type StatsHandler struct {
	stats statsService
}

// NewStatsHandler builds a new handler.
func NewStatsHandler(stats statsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Summary godoc
// @Summary Aggregate answer distributions over completed submissions
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats/summary [get]
func (h *StatsHandler) Summary(c *gin.Context) {
	summary, err := h.stats.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
