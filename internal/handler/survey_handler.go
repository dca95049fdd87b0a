package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kleymenovo/survey-api/internal/models"
	"github.com/kleymenovo/survey-api/internal/service"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
	"github.com/kleymenovo/survey-api/pkg/response"
)

type sessionService interface {
	GetOrCreate(ctx context.Context, sessionID string) (*models.SurveyResponse, error)
	SubmitBase(ctx context.Context, req service.BaseStepRequest) (*service.BaseStepResult, error)
	SubmitDetails(ctx context.Context, req service.DetailsStepRequest) (*service.DetailsStepResult, error)
}

type identityService interface {
	CheckUnique(ctx context.Context, q service.IdentityQuery) (*service.UniqueCheckResult, error)
	FindUnfinished(ctx context.Context, q service.IdentityQuery) (*service.UnfinishedResult, error)
}

// SurveyHandler exposes the session lifecycle and identity check endpoints.
type SurveyHandler struct {
	sessions sessionService
	identity identityService
	metrics  *service.MetricsService
}

// NewSurveyHandler builds a new handler.
func NewSurveyHandler(sessions sessionService, identity identityService, metrics *service.MetricsService) *SurveyHandler {
	return &SurveyHandler{sessions: sessions, identity: identity, metrics: metrics}
}

type createSessionRequest struct {
	SessionID string `json:"session_id"`
}

// CreateSession godoc
// @Summary Create or resume a survey session
// @Tags Survey
// @Accept json
// @Produce json
// @Param payload body createSessionRequest false "Optional existing session id"
// @Success 200 {object} response.Envelope
// @Router /survey/sessions [post]
func (h *SurveyHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
			return
		}
	}
	resp, err := h.sessions.GetOrCreate(c.Request.Context(), req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// SubmitBase godoc
// @Summary Submit the identity and consent step
// @Tags Survey
// @Accept json
// @Produce json
// @Param payload body service.BaseStepRequest true "Base step payload"
// @Success 200 {object} response.Envelope
// @Router /survey/base [post]
func (h *SurveyHandler) SubmitBase(c *gin.Context) {
	var req service.BaseStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid base step payload"))
		return
	}
	result, err := h.sessions.SubmitBase(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SubmitDetails godoc
// @Summary Submit the final step and complete the survey
// @Tags Survey
// @Accept json
// @Produce json
// @Param payload body service.DetailsStepRequest true "Details step payload"
// @Success 200 {object} response.Envelope
// @Router /survey/details [post]
func (h *SurveyHandler) SubmitDetails(c *gin.Context) {
	var req service.DetailsStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid details step payload"))
		return
	}
	result, err := h.sessions.SubmitDetails(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Status == models.StatusComplete {
		h.metrics.RecordSubmissionCompleted()
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CheckUnique godoc
// @Summary Check identity values against completed submissions
// @Tags Survey
// @Accept json
// @Produce json
// @Param payload body service.IdentityQuery true "Identity values to probe"
// @Success 200 {object} response.Envelope
// @Router /survey/check-unique [post]
func (h *SurveyHandler) CheckUnique(c *gin.Context) {
	var q service.IdentityQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid identity payload"))
		return
	}
	result, err := h.identity.CheckUnique(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CheckUnfinished godoc
// @Summary Find an unfinished session for the given identity values
// @Tags Survey
// @Accept json
// @Produce json
// @Param payload body service.IdentityQuery true "Identity values to probe"
// @Success 200 {object} response.Envelope
// @Router /survey/check-unfinished [post]
func (h *SurveyHandler) CheckUnfinished(c *gin.Context) {
	var q service.IdentityQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid identity payload"))
		return
	}
	result, err := h.identity.FindUnfinished(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
