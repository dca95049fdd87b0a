package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kleymenovo/survey-api/internal/middleware"
)

func subjectFromContext(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextSubjectKey)
	if !exists {
		return ""
	}
	subject, ok := value.(string)
	if !ok {
		return ""
	}
	return subject
}
