package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/middleware"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/response"
)

// callerFromContext returns the authenticated caller or writes a 401 and returns nil.
func callerFromContext(c *gin.Context) *models.Caller {
	caller := middleware.CallerFrom(c)
	if caller == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return caller
}
