package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kleymenovo/survey-api/internal/service"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
	"github.com/kleymenovo/survey-api/pkg/response"
)

type verificationService interface {
	Issue(ctx context.Context, email, sessionID string) (*service.IssueResult, error)
	Verify(ctx context.Context, email, code, sessionID string) error
	CanIssue(ctx context.Context, email, sessionID string) (*service.Allowance, error)
}

// VerificationHandler exposes the email-code endpoints.
type VerificationHandler struct {
	service verificationService
	metrics *service.MetricsService
}

// NewVerificationHandler builds a new handler.
func NewVerificationHandler(svc verificationService, metrics *service.MetricsService) *VerificationHandler {
	return &VerificationHandler{service: svc, metrics: metrics}
}

type sendCodeRequest struct {
	Email     string `json:"email" binding:"required,email"`
	SessionID string `json:"session_id" binding:"required"`
}

// SendCode godoc
// @Summary Issue a verification code by email
// @Tags Verification
// @Accept json
// @Produce json
// @Param payload body sendCodeRequest true "Recipient and session"
// @Success 200 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /survey/send-code [post]
func (h *VerificationHandler) SendCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid send-code payload"))
		return
	}
	result, err := h.service.Issue(c.Request.Context(), req.Email, req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Throttled {
		response.ErrorWithMeta(c,
			appErrors.Clone(appErrors.ErrRateLimited, "too many requests, wait before requesting a new code"),
			map[string]interface{}{"seconds_remaining": result.SecondsRemaining})
		return
	}
	h.metrics.RecordCodeIssued()
	response.JSON(c, http.StatusOK, gin.H{"sent": true}, nil)
}

type verifyCodeRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Code      string `json:"code" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

// VerifyCode godoc
// @Summary Verify a previously issued code
// @Tags Verification
// @Accept json
// @Produce json
// @Param payload body verifyCodeRequest true "Code to verify"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /survey/verify-code [post]
func (h *VerificationHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verify-code payload"))
		return
	}
	if err := h.service.Verify(c.Request.Context(), req.Email, req.Code, req.SessionID); err != nil {
		h.metrics.RecordVerification(verificationOutcome(err))
		response.Error(c, err)
		return
	}
	h.metrics.RecordVerification("ok")
	response.JSON(c, http.StatusOK, gin.H{"verified": true}, nil)
}

// ResendAllowance godoc
// @Summary Check whether a new code may be requested
// @Tags Verification
// @Produce json
// @Param email query string true "Recipient email"
// @Param session_id query string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /survey/resend-allowance [get]
func (h *VerificationHandler) ResendAllowance(c *gin.Context) {
	email := c.Query("email")
	sessionID := c.Query("session_id")
	if email == "" || sessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "email and session_id are required"))
		return
	}
	allowance, err := h.service.CanIssue(c.Request.Context(), email, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allowance, nil)
}

func verificationOutcome(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case appErrors.ErrInvalidCode.Code:
			return "invalid"
		case appErrors.ErrCodeExpired.Code:
			return "expired"
		}
	}
	return "error"
}
