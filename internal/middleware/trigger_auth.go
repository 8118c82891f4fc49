package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/finlink/reports-api/pkg/errors"
	"github.com/finlink/reports-api/pkg/response"
)

// TriggerAuth guards the scheduler trigger with a static bearer token. The
// comparison is constant time so the token cannot be probed byte by byte.
func TriggerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.Error(c, apperrors.Clone(apperrors.ErrForbidden, "scheduler trigger is not configured"))
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		provided, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			response.Error(c, apperrors.Clone(apperrors.ErrUnauthorized, "invalid trigger token"))
			c.Abort()
			return
		}

		c.Next()
	}
}
