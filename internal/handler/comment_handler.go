package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kleymenovo/survey-api/internal/models"
	"github.com/kleymenovo/survey-api/internal/service"
	"github.com/kleymenovo/survey-api/pkg/response"
)

type likeService interface {
	Like(ctx context.Context, answerID, origin string) (*service.LikeResult, error)
}

type commentLister interface {
	Comments(ctx context.Context) ([]models.Comment, error)
}

// CommentHandler exposes the public comment feed and the like endpoint.
type CommentHandler struct {
	likes    likeService
	comments commentLister
	metrics  *service.MetricsService
}

// NewCommentHandler builds a new handler.
func NewCommentHandler(likes likeService, comments commentLister, metrics *service.MetricsService) *CommentHandler {
	return &CommentHandler{likes: likes, comments: comments, metrics: metrics}
}

// Like godoc
// @Summary Like a published comment
// @Tags Comments
// @Produce json
// @Param answerId path string true "Answer ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /survey/comments/{answerId}/like [post]
func (h *CommentHandler) Like(c *gin.Context) {
	result, err := h.likes.Like(c.Request.Context(), c.Param("answerId"), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordLike(result.Status)
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List published comments ordered by likes
// @Tags Comments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /survey/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.comments.Comments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}
