package models

import (
	"fmt"
	"strings"
	"time"
)

// SlotState captures the decision recorded on an approver slot.
type SlotState string

const (
	SlotStatePending  SlotState = "pending"
	SlotStateApproved SlotState = "approved"
	SlotStateRejected SlotState = "rejected"
	SlotStateExpired  SlotState = "expired"
)

// BindingKind distinguishes who may act on a slot.
type BindingKind string

const (
	BindingIndividual BindingKind = "individual"
	BindingGroup      BindingKind = "group"
)

// Binding is either an individual user id or a group alias, never both.
type Binding struct {
	Kind   BindingKind
	UserID int64
	Alias  string
}

// IndividualBinding binds a slot to one user.
func IndividualBinding(userID int64) Binding {
	return Binding{Kind: BindingIndividual, UserID: userID}
}

// GroupBinding binds a slot to any active member of a mail group.
func GroupBinding(alias string) Binding {
	return Binding{Kind: BindingGroup, Alias: NormalizeEmail(alias)}
}

// Validate checks the union holds exactly one coherent variant.
func (b Binding) Validate() error {
	switch b.Kind {
	case BindingIndividual:
		if b.UserID <= 0 || b.Alias != "" {
			return fmt.Errorf("individual binding requires a positive user id only")
		}
	case BindingGroup:
		if b.Alias == "" || b.UserID != 0 {
			return fmt.Errorf("group binding requires an alias only")
		}
	default:
		return fmt.Errorf("unknown binding kind %q", b.Kind)
	}
	return nil
}

// Geometry is the stamp box in PDF points, origin bottom-left. Page 0 means the last page.
type Geometry struct {
	Page   int     `db:"page" json:"page"`
	X      float64 `db:"pos_x" json:"x"`
	Y      float64 `db:"pos_y" json:"y"`
	Width  float64 `db:"width" json:"width"`
	Height float64 `db:"height" json:"height"`
}

// ApproverSlot is one required decision on a document.
type ApproverSlot struct {
	ID              string      `db:"id" json:"id"`
	DocumentID      string      `db:"document_id" json:"documentId"`
	Position        int         `db:"position" json:"position"`
	BindingKind     BindingKind `db:"binding_kind" json:"bindingKind"`
	UserID          *int64      `db:"user_id" json:"userId,omitempty"`
	GroupAlias      *string     `db:"group_alias" json:"groupAlias,omitempty"`
	SignerMemberID  *string     `db:"signer_member_id" json:"signerMemberId,omitempty"`
	SignerName      *string     `db:"signer_name" json:"signerName,omitempty"`
	Token           string      `db:"token" json:"-"`
	State           SlotState   `db:"state" json:"state"`
	Geometry
	RejectionReason *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
	SignedAt        *time.Time `db:"signed_at" json:"signedAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// Binding reconstructs the tagged union from the stored columns.
func (s *ApproverSlot) Binding() Binding {
	switch s.BindingKind {
	case BindingGroup:
		if s.GroupAlias != nil {
			return GroupBinding(*s.GroupAlias)
		}
	case BindingIndividual:
		if s.UserID != nil {
			return IndividualBinding(*s.UserID)
		}
	}
	return Binding{Kind: s.BindingKind}
}

// SetBinding stores b into the slot columns.
func (s *ApproverSlot) SetBinding(b Binding) {
	s.BindingKind = b.Kind
	s.UserID = nil
	s.GroupAlias = nil
	switch b.Kind {
	case BindingIndividual:
		id := b.UserID
		s.UserID = &id
	case BindingGroup:
		alias := b.Alias
		s.GroupAlias = &alias
	}
}

// NormalizeEmail trims and lower-cases an address for comparisons and dedup keys.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
