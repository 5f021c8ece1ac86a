package dto

import (
	"time"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

// ApproverInput describes one approver slot. Exactly one of UserID or GroupAlias must be set.
type ApproverInput struct {
	UserID     *int64  `json:"userId"`
	GroupAlias string  `json:"groupAlias"`
	Position   int     `json:"position" validate:"gte=0"`
	Page       int     `json:"page" validate:"gte=0"`
	X          float64 `json:"x" validate:"gte=0"`
	Y          float64 `json:"y" validate:"gte=0"`
	Width      float64 `json:"width" validate:"gt=0"`
	Height     float64 `json:"height" validate:"gt=0"`
}

// Upload is a received PDF file.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreateDocumentRequest is the metadata part of a document upload.
type CreateDocumentRequest struct {
	Name          string          `json:"name" validate:"required,max=255"`
	Description   string          `json:"description" validate:"max=4000"`
	Approvers     []ApproverInput `json:"approvers" validate:"required,min=1,dive"`
	LimitHours    *int            `json:"limitHours" validate:"omitempty,gt=0,lte=8760"`
	ReminderHours *int            `json:"reminderHours" validate:"omitempty,gt=0,lte=720"`
}

// NewVersionRequest supersedes a rejected document.
type NewVersionRequest struct {
	KeepPrevious  bool            `json:"keepPrevious"`
	Approvers     []ApproverInput `json:"approvers" validate:"omitempty,dive"`
	LimitHours    *int            `json:"limitHours" validate:"omitempty,gt=0,lte=8760"`
	ReminderHours *int            `json:"reminderHours" validate:"omitempty,gt=0,lte=720"`
}

// UpdateDocumentRequest edits metadata of a pending document.
type UpdateDocumentRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description   *string `json:"description" validate:"omitempty,max=4000"`
	ReminderHours *int    `json:"reminderHours" validate:"omitempty,gt=0,lte=720"`
}

// SignRequest carries the chosen group member when signing a group slot.
type SignRequest struct {
	MemberID string `json:"memberId"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// SlotPosition is the new box for one slot.
type SlotPosition struct {
	SlotID string  `json:"slotId" validate:"required"`
	Page   int     `json:"page" validate:"gte=0"`
	X      float64 `json:"x" validate:"gte=0"`
	Y      float64 `json:"y" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// RepositionRequest moves stamp boxes and reapplies existing signatures.
type RepositionRequest struct {
	Slots []SlotPosition `json:"slots" validate:"required,min=1,dive"`
}

// SlotResponse is the public view of an approver slot. Tokens are never included.
type SlotResponse struct {
	ID              string             `json:"id"`
	Position        int                `json:"position"`
	BindingKind     models.BindingKind `json:"bindingKind"`
	UserID          *int64             `json:"userId,omitempty"`
	GroupAlias      *string            `json:"groupAlias,omitempty"`
	SignerName      *string            `json:"signerName,omitempty"`
	State           models.SlotState   `json:"state"`
	Geometry        models.Geometry    `json:"geometry"`
	RejectionReason *string            `json:"rejectionReason,omitempty"`
	SignedAt        *time.Time         `json:"signedAt,omitempty"`
}

// DocumentResponse is the public view of a document version.
type DocumentResponse struct {
	models.Document
	Slots             []SlotResponse `json:"slots"`
	DownloadURL       string         `json:"downloadUrl,omitempty"`
	DownloadExpiresAt *time.Time     `json:"downloadExpiresAt,omitempty"`
}

// ApprovalView is shown to an approver opening a slot link.
type ApprovalView struct {
	Document        DocumentResponse      `json:"document"`
	Slot            SlotResponse          `json:"slot"`
	CanSign         bool                  `json:"canSign"`
	Members         []GroupMemberResponse `json:"members,omitempty"`
	MatchedMemberID *string               `json:"matchedMemberId,omitempty"`
}

// PendingApproval is a slot awaiting the caller's decision.
type PendingApproval struct {
	Token    string          `json:"token"`
	Slot     SlotResponse    `json:"slot"`
	Document models.Document `json:"document"`
}

// SignResult reports the outcome of a signature.
type SignResult struct {
	Slot      SlotResponse         `json:"slot"`
	State     models.DocumentState `json:"documentState"`
	Completed bool                 `json:"completed"`
}

// HistoryVersion is one version of a lineage with its decisions.
type HistoryVersion struct {
	Document   DocumentResponse   `json:"document"`
	Signatures []models.Signature `json:"signatures"`
}

// HistoryResponse lists every version of a lineage, oldest first.
type HistoryResponse struct {
	RootID   string           `json:"rootId"`
	Versions []HistoryVersion `json:"versions"`
}

// NewSlotResponse maps a slot to its public view.
func NewSlotResponse(slot models.ApproverSlot) SlotResponse {
	return SlotResponse{
		ID:              slot.ID,
		Position:        slot.Position,
		BindingKind:     slot.BindingKind,
		UserID:          slot.UserID,
		GroupAlias:      slot.GroupAlias,
		SignerName:      slot.SignerName,
		State:           slot.State,
		Geometry:        slot.Geometry,
		RejectionReason: slot.RejectionReason,
		SignedAt:        slot.SignedAt,
	}
}

// NewDocumentResponse maps a document and its slots.
func NewDocumentResponse(doc models.Document, slots []models.ApproverSlot) DocumentResponse {
	out := DocumentResponse{Document: doc, Slots: make([]SlotResponse, 0, len(slots))}
	for _, slot := range slots {
		out.Slots = append(out.Slots, NewSlotResponse(slot))
	}
	return out
}
