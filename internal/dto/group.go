package dto

import "github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"

// GroupMemberRequest creates a member under an alias.
type GroupMemberRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=255"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
	PersonnelID string `json:"personnelId" validate:"omitempty,max=64"`
	UserID      *int64 `json:"userId" validate:"omitempty,gt=0"`
}

// UpdateGroupMemberRequest edits a member. Nil fields are left untouched.
type UpdateGroupMemberRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=255"`
	Email       *string `json:"email" validate:"omitempty,max=255"`
	PersonnelID *string `json:"personnelId" validate:"omitempty,max=64"`
	UserID      *int64  `json:"userId" validate:"omitempty,gte=0"`
	Active      *bool   `json:"active"`
}

// GroupMemberResponse is the public view of a member.
type GroupMemberResponse struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Email       *string `json:"email,omitempty"`
	PersonnelID *string `json:"personnelId,omitempty"`
	Active      bool    `json:"active"`
}

// GroupResponse describes an alias with its member count.
type GroupResponse struct {
	models.Group
	ActiveMembers int `json:"activeMembers"`
}

// NewGroupMemberResponse maps a member.
func NewGroupMemberResponse(m models.GroupMember) GroupMemberResponse {
	return GroupMemberResponse{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Email:       m.Email,
		PersonnelID: m.PersonnelID,
		Active:      m.Active,
	}
}
