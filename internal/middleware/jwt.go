package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/response"
)

// ContextCallerKey is the gin context key storing the authenticated *models.Caller.
const ContextCallerKey = "currentCaller"

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid bearer token issued by the identity provider.
func JWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		caller := claims.Caller()
		caller.IP = c.ClientIP()
		c.Set(ContextCallerKey, caller)
		c.Next()
	}
}

// CallerFrom returns the caller attached by JWT, or nil.
func CallerFrom(c *gin.Context) *models.Caller {
	value, exists := c.Get(ContextCallerKey)
	if !exists {
		return nil
	}
	caller, _ := value.(*models.Caller)
	return caller
}
