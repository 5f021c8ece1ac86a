package service

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

// recipient is a distinct notification target with the first slot token bound to it.
type recipient struct {
	Email string
	Token string
}

// recipientResolver maps slots to mail addresses. Group slots notify the alias itself; individual
// slots use the email of the bound user.
type recipientResolver struct {
	users  userDirectory
	logger *zap.Logger
}

func (r recipientResolver) forPending(ctx context.Context, slots []models.ApproverSlot) []recipient {
	return r.forSlots(ctx, pendingSlots(slots))
}

func (r recipientResolver) forSlots(ctx context.Context, slots []models.ApproverSlot) []recipient {
	users := r.lookup(ctx, slots)
	seen := make(map[string]struct{}, len(slots))
	out := make([]recipient, 0, len(slots))
	for _, slot := range slots {
		address := ""
		binding := slot.Binding()
		switch binding.Kind {
		case models.BindingIndividual:
			address = users[binding.UserID].Email
		case models.BindingGroup:
			address = binding.Alias
		}
		address = models.NormalizeEmail(address)
		if address == "" {
			continue
		}
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		out = append(out, recipient{Email: address, Token: slot.Token})
	}
	return out
}

// names returns a readable label per slot, in slot order.
func (r recipientResolver) names(ctx context.Context, slots []models.ApproverSlot) []string {
	users := r.lookup(ctx, slots)
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		binding := slot.Binding()
		switch binding.Kind {
		case models.BindingGroup:
			out = append(out, binding.Alias)
		case models.BindingIndividual:
			user, ok := users[binding.UserID]
			switch {
			case ok && user.FullName != "":
				out = append(out, user.FullName)
			case ok && user.Email != "":
				out = append(out, user.Email)
			default:
				out = append(out, "usuario "+strconv.FormatInt(binding.UserID, 10))
			}
		}
	}
	return out
}

func (r recipientResolver) lookup(ctx context.Context, slots []models.ApproverSlot) map[int64]models.User {
	ids := make([]int64, 0, len(slots))
	for _, slot := range slots {
		if slot.BindingKind == models.BindingIndividual && slot.UserID != nil {
			ids = append(ids, *slot.UserID)
		}
	}
	if len(ids) == 0 || r.users == nil {
		return map[int64]models.User{}
	}
	users, err := r.users.FindByIDs(ctx, ids)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("failed to resolve approver emails", zap.Error(err))
		}
		return map[int64]models.User{}
	}
	return users
}

func pendingSlots(slots []models.ApproverSlot) []models.ApproverSlot {
	out := make([]models.ApproverSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.State == models.SlotStatePending {
			out = append(out, slot)
		}
	}
	return out
}
