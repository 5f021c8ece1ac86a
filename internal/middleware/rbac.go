package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/response"
)

// RequireAdmin lets through callers holding the admin capability. It must run after JWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFrom(c)
		if caller == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !caller.IsAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin capability required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
