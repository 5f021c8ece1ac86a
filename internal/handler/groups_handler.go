package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/response"
)

type groupService interface {
	ListGroups(ctx context.Context) ([]dto.GroupResponse, error)
	ListMembers(ctx context.Context, alias string, includeInactive bool) ([]dto.GroupMemberResponse, error)
	AddMember(ctx context.Context, caller *models.Caller, alias string, req dto.GroupMemberRequest) (*dto.GroupMemberResponse, error)
	UpdateMember(ctx context.Context, caller *models.Caller, alias, memberID string, req dto.UpdateGroupMemberRequest) (*dto.GroupMemberResponse, error)
	DeactivateMember(ctx context.Context, caller *models.Caller, alias, memberID string) error
}

// GroupHandler administers members of the group aliases.
type GroupHandler struct {
	service groupService
}

// NewGroupHandler constructs the handler.
func NewGroupHandler(service groupService) *GroupHandler {
	return &GroupHandler{service: service}
}

// List godoc
// @Summary List group aliases
// @Tags Groups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// ListMembers godoc
// @Summary List members of an alias
// @Tags Groups
// @Produce json
// @Param alias path string true "Group alias"
// @Param includeInactive query bool false "Include deactivated members"
// @Success 200 {object} response.Envelope
// @Router /groups/{alias}/members [get]
func (h *GroupHandler) ListMembers(c *gin.Context) {
	includeInactive := false
	if raw := c.Query("includeInactive"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "includeInactive must be a boolean"))
			return
		}
		includeInactive = parsed
	}
	members, err := h.service.ListMembers(c.Request.Context(), c.Param("alias"), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// AddMember godoc
// @Summary Add a member to an alias
// @Tags Groups
// @Accept json
// @Produce json
// @Param alias path string true "Group alias"
// @Param payload body dto.GroupMemberRequest true "Member payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{alias}/members [post]
func (h *GroupHandler) AddMember(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	var req dto.GroupMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid member payload"))
		return
	}
	member, err := h.service.AddMember(c.Request.Context(), caller, c.Param("alias"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// UpdateMember godoc
// @Summary Update a member
// @Tags Groups
// @Accept json
// @Produce json
// @Param alias path string true "Group alias"
// @Param id path string true "Member ID"
// @Param payload body dto.UpdateGroupMemberRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /groups/{alias}/members/{id} [patch]
func (h *GroupHandler) UpdateMember(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	var req dto.UpdateGroupMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid member payload"))
		return
	}
	member, err := h.service.UpdateMember(c.Request.Context(), caller, c.Param("alias"), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, member, nil)
}

// DeactivateMember godoc
// @Summary Deactivate a member
// @Tags Groups
// @Param alias path string true "Group alias"
// @Param id path string true "Member ID"
// @Success 204
// @Router /groups/{alias}/members/{id} [delete]
func (h *GroupHandler) DeactivateMember(c *gin.Context) {
	caller := callerFromContext(c)
	if caller == nil {
		return
	}
	if err := h.service.DeactivateMember(c.Request.Context(), caller, c.Param("alias"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
