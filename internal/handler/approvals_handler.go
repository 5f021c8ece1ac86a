package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/response"
)

type approvalService interface {
	GetApproval(ctx context.Context, caller *models.Caller, slotToken string) (*dto.ApprovalView, error)
	Sign(ctx context.Context, caller *models.Caller, slotToken string, req dto.SignRequest) (*dto.SignResult, error)
	Reject(ctx context.Context, caller *models.Caller, slotToken string, req dto.RejectRequest) (*dto.SignResult, error)
}

// ApprovalHandler exposes the approver side of the workflow, keyed by slot token.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// Get godoc
// @Summary Open an approval link
// @Tags Approvals
// @Produce json
// @Param token path string true "Slot token"
// @Success 200 {object} response.Envelope
// @Router /approvals/{token} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	view, err := h.service.GetApproval(c.Request.Context(), caller, c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Sign godoc
// @Summary Approve a slot
// @Tags Approvals
// @Accept json
// @Produce json
// @Param token path string true "Slot token"
// @Param payload body dto.SignRequest false "Group member signing the slot"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{token}/sign [post]
func (h *ApprovalHandler) Sign(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	var req dto.SignRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sign payload"))
		return
	}
	result, err := h.service.Sign(c.Request.Context(), caller, c.Param("token"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a slot and the whole document
// @Tags Approvals
// @Accept json
// @Produce json
// @Param token path string true "Slot token"
// @Param payload body dto.RejectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{token}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reject payload"))
		return
	}
	result, err := h.service.Reject(c.Request.Context(), caller, c.Param("token"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
