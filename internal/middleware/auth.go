package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
	"github.com/kleymenovo/survey-api/pkg/response"
)

// ContextSubjectKey is the gin context key storing the admin token subject.
const ContextSubjectKey = "adminSubject"

// AdminJWT protects the admin routes with an HS256 bearer token. There
// is no user store; any token signed with the shared secret grants
// access, and its subject claim is kept for audit logging.
func AdminJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin access is not configured"))
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token"))
			c.Abort()
			return
		}

		if sub, err := claims.GetSubject(); err == nil {
			c.Set(ContextSubjectKey, sub)
		}
		c.Next()
	}
}
