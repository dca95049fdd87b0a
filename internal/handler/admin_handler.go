package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kleymenovo/survey-api/internal/models"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
	"github.com/kleymenovo/survey-api/pkg/response"
)

type adminService interface {
	SetModeration(ctx context.Context, answerID string, moderated bool, actor string) (*models.Answer, error)
}

type statsExporter interface {
	ExportCSV(ctx context.Context, w io.Writer) error
}

type consentReader interface {
	Open(filename string) (*os.File, error)
}

// AdminHandler exposes the JWT-protected operator endpoints.
type AdminHandler struct {
	admin    adminService
	exporter statsExporter
	consents consentReader
}

// NewAdminHandler builds a new handler.
func NewAdminHandler(admin adminService, exporter statsExporter, consents consentReader) *AdminHandler {
	return &AdminHandler{admin: admin, exporter: exporter, consents: consents}
}

type moderationOverrideRequest struct {
	Moderated *bool `json:"moderated" binding:"required"`
}

// SetModeration godoc
// @Summary Override the moderation flag on an answer
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Answer ID"
// @Param payload body moderationOverrideRequest true "New flag value"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/answers/{id}/moderation [patch]
func (h *AdminHandler) SetModeration(c *gin.Context) {
	var req moderationOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid moderation payload"))
		return
	}
	answer, err := h.admin.SetModeration(c.Request.Context(), c.Param("id"), *req.Moderated, subjectFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, answer, nil)
}

// ExportCSV godoc
// @Summary Export all completed submissions as CSV
// @Tags Admin
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {string} string "CSV payload"
// @Router /admin/export/responses.csv [get]
func (h *AdminHandler) ExportCSV(c *gin.Context) {
	filename := fmt.Sprintf("survey_export_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := h.exporter.ExportCSV(c.Request.Context(), c.Writer); err != nil {
		response.Error(c, err)
	}
}

// DownloadConsent godoc
// @Summary Download a stored consent-proof blob
// @Tags Admin
// @Produce image/png
// @Security BearerAuth
// @Param filename path string true "Consent blob filename"
// @Success 200 {string} string "PNG payload"
// @Failure 404 {object} response.Envelope
// @Router /admin/consents/{filename} [get]
func (h *AdminHandler) DownloadConsent(c *gin.Context) {
	// Base strips any traversal components from the route parameter.
	filename := filepath.Base(c.Param("filename"))
	file, err := h.consents.Open(filename)
	if errors.Is(err, os.ErrNotExist) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "consent blob not found"))
		return
	}
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open consent blob"))
		return
	}
	defer file.Close()

	c.Header("Content-Type", "image/png")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		response.Error(c, err)
	}
}
