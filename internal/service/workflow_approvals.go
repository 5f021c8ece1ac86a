package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/token"
)

const autoRejectReasonFormat = "Rechazado automáticamente: %s rechazó el documento"

// Sign approves the slot behind slotToken, stamps the signer into the working PDF and finalizes the
// document once no slot is pending.
func (s *WorkflowService) Sign(ctx context.Context, caller *models.Caller, slotToken string, req dto.SignRequest) (result *dto.SignResult, err error) {
	if err = s.requireCaller(caller); err != nil {
		return nil, err
	}
	if !token.Valid(slotToken) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	var (
		previous   []byte
		workingKey string
		restore    bool
		committed  bool
	)
	defer func() {
		if err != nil && !committed {
			_ = tx.Rollback()
		}
		if err != nil && restore {
			s.restoreWorking(ctx, workingKey, previous)
		}
	}()

	doc, slot, err := s.lockSlot(ctx, tx, slotToken)
	if err != nil {
		return nil, err
	}
	match, err := s.resolver.Resolve(ctx, slot, caller)
	if err != nil {
		return nil, err
	}
	if !match.Allowed() {
		err = appErrors.Clone(appErrors.ErrForbidden, "")
		return nil, err
	}
	if slot.State != models.SlotStatePending {
		err = appErrors.Conflict("approval already decided", slot.State)
		return nil, err
	}
	if doc.State != models.DocumentStatePending {
		err = appErrors.Conflict("document is no longer pending", doc.State)
		return nil, err
	}
	member, err := s.resolver.SelectSigner(ctx, slot, match, req.MemberID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	signerName := caller.DisplayName()
	var memberID *string
	if member != nil {
		signerName = member.DisplayName
		id := member.ID
		memberID = &id
	}
	signerUserID := caller.UserID
	signature := &models.Signature{
		ID:             uuid.NewString(),
		DocumentID:     doc.ID,
		SlotID:         slot.ID,
		SignerUserID:   &signerUserID,
		SignerMemberID: memberID,
		SignerName:     signerName,
		SignedAt:       now,
		IPAddress:      caller.IP,
	}
	if err = s.signatures.Create(ctx, tx, signature); err != nil {
		err = appErrors.Internal(err, "failed to record signature")
		return nil, err
	}
	if err = s.slots.MarkApproved(ctx, tx, slot.ID, memberID, signerName, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Conflict("approval already decided", slot.State)
			return nil, err
		}
		err = appErrors.Internal(err, "failed to approve slot")
		return nil, err
	}
	slot.State = models.SlotStateApproved
	slot.SignerMemberID = memberID
	slot.SignerName = &signerName
	slot.SignedAt = &now

	workingKey = doc.FilePath
	previous, err = s.blobs.Read(ctx, doc.FilePath)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read working file")
		return nil, err
	}
	stamped, renderErr := s.renderStamps(previous, []models.ApproverSlot{*slot})
	if renderErr != nil {
		err = appErrors.Wrap(renderErr, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to render signature")
		return nil, err
	}
	restore = true
	if err = s.blobs.Write(ctx, doc.FilePath, stamped); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to write working file")
		return nil, err
	}

	remaining, err := s.slots.CountPending(ctx, tx, doc.ID)
	if err != nil {
		err = appErrors.Internal(err, "failed to count pending approvals")
		return nil, err
	}
	completed := remaining == 0
	if completed {
		if err = s.documents.TransitionState(ctx, tx, doc.ID, models.DocumentStatePending, models.DocumentStateApproved, now); err != nil {
			err = appErrors.Internal(err, "failed to finalize document")
			return nil, err
		}
		doc.State = models.DocumentStateApproved
		doc.FinalizedAt = &now
	} else if err = s.documents.TouchWorkingFile(ctx, tx, doc.ID, now); err != nil {
		err = appErrors.Internal(err, "failed to update document")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		committed = true
		err = appErrors.Internal(err, "failed to commit signature")
		return nil, err
	}

	s.emitAudit(ctx, caller, models.AuditActionDocumentSign, documentResource, doc.ID, map[string]interface{}{
		"slotId":    slot.ID,
		"signer":    signerName,
		"completed": completed,
	})
	if completed {
		s.metrics.RecordTransition(models.DocumentStateApproved)
		if s.notifier != nil {
			s.notifier.Notify(ctx, Notice{Kind: models.NotificationCompleted, Recipient: doc.CreatorEmail, Document: *doc})
		}
	}

	return &dto.SignResult{Slot: dto.NewSlotResponse(*slot), State: doc.State, Completed: completed}, nil
}

// Reject records a rejection on the slot, auto-rejects every other pending slot and closes the document.
func (s *WorkflowService) Reject(ctx context.Context, caller *models.Caller, slotToken string, req dto.RejectRequest) (result *dto.SignResult, err error) {
	if err = s.requireCaller(caller); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection reason is required")
	}
	if !token.Valid(slotToken) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	doc, slot, err := s.lockSlot(ctx, tx, slotToken)
	if err != nil {
		return nil, err
	}
	allowed, err := s.resolver.CanAct(ctx, slot, caller)
	if err != nil {
		return nil, err
	}
	if !allowed {
		err = appErrors.Clone(appErrors.ErrForbidden, "")
		return nil, err
	}
	if slot.State != models.SlotStatePending {
		err = appErrors.Conflict("approval already decided", slot.State)
		return nil, err
	}
	if doc.State != models.DocumentStatePending {
		err = appErrors.Conflict("document is no longer pending", doc.State)
		return nil, err
	}

	now := s.now()
	rejector := caller.DisplayName()
	if err = s.slots.MarkRejected(ctx, tx, slot.ID, reason, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Conflict("approval already decided", slot.State)
			return nil, err
		}
		err = appErrors.Internal(err, "failed to reject slot")
		return nil, err
	}
	autoReason := fmt.Sprintf(autoRejectReasonFormat, rejector)
	cascaded, err := s.slots.RejectRemaining(ctx, tx, doc.ID, slot.ID, autoReason, now)
	if err != nil {
		err = appErrors.Internal(err, "failed to reject remaining slots")
		return nil, err
	}
	if err = s.documents.TransitionState(ctx, tx, doc.ID, models.DocumentStatePending, models.DocumentStateRejected, now); err != nil {
		err = appErrors.Internal(err, "failed to reject document")
		return nil, err
	}
	slots, err := s.slots.ListByDocument(ctx, tx, doc.ID)
	if err != nil {
		err = appErrors.Internal(err, "failed to load approver slots")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit rejection")
		return nil, err
	}
	doc.State = models.DocumentStateRejected
	slot.State = models.SlotStateRejected
	slot.RejectionReason = &reason

	s.metrics.RecordTransition(models.DocumentStateRejected)
	s.emitAudit(ctx, caller, models.AuditActionDocumentReject, documentResource, doc.ID, map[string]interface{}{
		"slotId":   slot.ID,
		"reason":   reason,
		"cascaded": cascaded,
	})
	s.notifyRejection(ctx, doc, slots, rejector, reason)

	return &dto.SignResult{Slot: dto.NewSlotResponse(*slot), State: doc.State}, nil
}

func (s *WorkflowService) notifyRejection(ctx context.Context, doc *models.Document, slots []models.ApproverSlot, rejector, reason string) {
	if s.notifier == nil {
		return
	}
	participants := s.recipients.forSlots(ctx, slots)
	creator := models.NormalizeEmail(doc.CreatorEmail)
	seen := make(map[string]struct{}, len(participants)+1)
	addresses := make([]string, 0, len(participants)+1)
	for _, rcpt := range participants {
		seen[rcpt.Email] = struct{}{}
		addresses = append(addresses, rcpt.Email)
	}
	if _, ok := seen[creator]; !ok && creator != "" {
		addresses = append(addresses, creator)
	}
	notice := Notice{Kind: models.NotificationRejected, Document: *doc, Actor: rejector, Reason: reason}
	for _, address := range addresses {
		notice.Recipient = address
		s.notifier.Notify(ctx, notice)
	}
	s.notifier.NotifyOversight(ctx, notice)
}

// lockSlot locks the owning document first, then the slot, so every decision on a document serializes.
func (s *WorkflowService) lockSlot(ctx context.Context, tx *sqlx.Tx, slotToken string) (*models.Document, *models.ApproverSlot, error) {
	documentID, err := s.slots.DocumentIDByToken(ctx, tx, slotToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to resolve approval")
	}
	doc, err := s.lockDocument(ctx, tx, documentID)
	if err != nil {
		return nil, nil, err
	}
	slot, err := s.slots.LockByToken(ctx, tx, slotToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to lock approval")
	}
	return doc, slot, nil
}

// GetApproval returns the approver view of a slot link.
func (s *WorkflowService) GetApproval(ctx context.Context, caller *models.Caller, slotToken string) (*dto.ApprovalView, error) {
	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	if !token.Valid(slotToken) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
	}
	slot, err := s.slots.FindByToken(ctx, slotToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		return nil, appErrors.Internal(err, "failed to load approval")
	}
	match, err := s.resolver.Resolve(ctx, slot, caller)
	if err != nil {
		return nil, err
	}
	if !match.Allowed() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	doc, err := s.loadDocument(ctx, slot.DocumentID)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByDocument(ctx, nil, doc.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load approver slots")
	}

	view := &dto.ApprovalView{
		Document: s.documentResponse(doc, slots),
		Slot:     dto.NewSlotResponse(*slot),
		CanSign:  slot.State == models.SlotStatePending && doc.State == models.DocumentStatePending,
	}
	if binding := slot.Binding(); binding.Kind == models.BindingGroup {
		members, listErr := s.groups.ListMembers(ctx, binding.Alias, true)
		if listErr != nil {
			return nil, appErrors.Internal(listErr, "failed to load group members")
		}
		for _, member := range members {
			if match.Via == MatchMember && match.Member != nil && match.Member.ID != member.ID {
				continue
			}
			view.Members = append(view.Members, dto.NewGroupMemberResponse(member))
		}
		if match.Member != nil {
			id := match.Member.ID
			view.MatchedMemberID = &id
		}
	}
	return view, nil
}

// ListPending returns the slots awaiting the caller's decision on pending documents.
func (s *WorkflowService) ListPending(ctx context.Context, caller *models.Caller) ([]dto.PendingApproval, error) {
	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	aliases, err := s.groups.AliasesForIdentity(ctx, caller.GroupIdentity())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resolve group memberships")
	}
	slots, err := s.slots.ListActionable(ctx, caller.UserID, caller.Email, aliases)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pending approvals")
	}
	ids := make([]string, 0, len(slots))
	seen := make(map[string]struct{}, len(slots))
	for _, slot := range slots {
		if _, ok := seen[slot.DocumentID]; ok {
			continue
		}
		seen[slot.DocumentID] = struct{}{}
		ids = append(ids, slot.DocumentID)
	}
	docs, err := s.documents.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load documents")
	}
	byID := make(map[string]models.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	out := make([]dto.PendingApproval, 0, len(slots))
	for _, slot := range slots {
		doc, ok := byID[slot.DocumentID]
		if !ok || doc.State != models.DocumentStatePending {
			continue
		}
		out = append(out, dto.PendingApproval{Token: slot.Token, Slot: dto.NewSlotResponse(slot), Document: doc})
	}
	s.logger.Debug("listed pending approvals", zap.Int64("user_id", caller.UserID), zap.Int("count", len(out)))
	return out, nil
}
