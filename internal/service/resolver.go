package service

import (
	"context"
	"strings"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
)

// MatchVia records which rule authorized a caller on a slot.
type MatchVia string

const (
	MatchNone       MatchVia = ""
	MatchIndividual MatchVia = "individual"
	MatchAlias      MatchVia = "alias"
	MatchMember     MatchVia = "member"
)

// Match is the outcome of resolving a caller against a slot.
type Match struct {
	Via    MatchVia
	Member *models.GroupMember
}

// Allowed reports whether any rule matched.
func (m Match) Allowed() bool {
	return m.Via != MatchNone
}

type memberDirectory interface {
	ListMembers(ctx context.Context, alias string, activeOnly bool) ([]models.GroupMember, error)
}

// Resolver decides whether a caller may act on an approver slot.
type Resolver struct {
	members memberDirectory
}

// NewResolver constructs a resolver over the group member directory.
func NewResolver(members memberDirectory) *Resolver {
	return &Resolver{members: members}
}

// CanAct reports whether caller may sign or reject slot.
func (r *Resolver) CanAct(ctx context.Context, slot *models.ApproverSlot, caller *models.Caller) (bool, error) {
	match, err := r.Resolve(ctx, slot, caller)
	if err != nil {
		return false, err
	}
	return match.Allowed(), nil
}

// Resolve applies the authorization rules in order: individual binding, login as the alias itself,
// then an active member matched by email, personnel id and finally user id.
func (r *Resolver) Resolve(ctx context.Context, slot *models.ApproverSlot, caller *models.Caller) (Match, error) {
	if slot == nil || caller == nil {
		return Match{}, nil
	}
	binding := slot.Binding()
	switch binding.Kind {
	case models.BindingIndividual:
		if caller.UserID > 0 && caller.UserID == binding.UserID {
			return Match{Via: MatchIndividual}, nil
		}
		return Match{}, nil
	case models.BindingGroup:
	default:
		return Match{}, nil
	}

	if email := models.NormalizeEmail(caller.Email); email != "" && email == binding.Alias {
		return Match{Via: MatchAlias}, nil
	}

	members, err := r.members.ListMembers(ctx, binding.Alias, true)
	if err != nil {
		return Match{}, appErrors.Internal(err, "failed to load group members")
	}
	if member := matchMember(members, caller); member != nil {
		return Match{Via: MatchMember, Member: member}, nil
	}
	return Match{}, nil
}

// SelectSigner resolves the member recorded as signer of a group slot. Individual slots have no member.
func (r *Resolver) SelectSigner(ctx context.Context, slot *models.ApproverSlot, match Match, memberID string) (*models.GroupMember, error) {
	binding := slot.Binding()
	if binding.Kind != models.BindingGroup {
		return nil, nil
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "memberId is required to sign a group approval")
	}
	if match.Via == MatchMember && match.Member != nil && match.Member.ID != memberID {
		return nil, appErrors.ErrForbidden
	}
	members, err := r.members.ListMembers(ctx, binding.Alias, true)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load group members")
	}
	for i := range members {
		if members[i].ID == memberID {
			return &members[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "selected member is not an active member of the group")
}

func matchMember(members []models.GroupMember, caller *models.Caller) *models.GroupMember {
	if email := models.NormalizeEmail(caller.Email); email != "" {
		for i := range members {
			if members[i].Email != nil && models.NormalizeEmail(*members[i].Email) == email {
				return &members[i]
			}
		}
	}
	if pid := strings.TrimSpace(caller.PersonnelID); pid != "" {
		for i := range members {
			if members[i].PersonnelID != nil && strings.TrimSpace(*members[i].PersonnelID) == pid {
				return &members[i]
			}
		}
	}
	if caller.UserID > 0 {
		for i := range members {
			if members[i].UserID != nil && *members[i].UserID == caller.UserID {
				return &members[i]
			}
		}
	}
	return nil
}
