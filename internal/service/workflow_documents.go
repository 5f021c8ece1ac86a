package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/pdfstamp"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/storage"
)

const documentResource = "document"

// CreateDocument stores the uploaded PDF with its approver slots and asks every approver to sign.
func (s *WorkflowService) CreateDocument(ctx context.Context, caller *models.Caller, req dto.CreateDocumentRequest, upload *dto.Upload) (*dto.DocumentResponse, error) {
	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	slots, err := s.buildSlots(ctx, docID, req.Approvers)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.newToken()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate access token")
	}

	limit := req.LimitHours
	if limit == nil && s.config.DefaultLimitHours > 0 {
		fallback := s.config.DefaultLimitHours
		limit = &fallback
	}
	now := s.now()
	doc := &models.Document{
		ID:                    docID,
		Name:                  req.Name,
		Description:           req.Description,
		Version:               1,
		RootID:                docID,
		CreatorID:             caller.UserID,
		CreatorEmail:          caller.Email,
		CreatorName:           caller.DisplayName(),
		AccessToken:           accessToken,
		State:                 models.DocumentStatePending,
		LimitHours:            limit,
		DeadlineAt:            deadlineFrom(now, limit),
		ReminderIntervalHours: req.ReminderHours,
		FilePath:              docID + ".pdf",
		FileName:              cleanFilename(upload.Filename),
		CreatedAt:             now,
	}

	if err := s.persistDocument(ctx, doc, slots, upload.Data); err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(models.DocumentStatePending)
	s.emitAudit(ctx, caller, models.AuditActionDocumentCreate, documentResource, doc.ID, map[string]interface{}{
		"name":      doc.Name,
		"approvers": len(slots),
	})
	s.notifyPending(ctx, doc, slots, models.NotificationApprovalRequest)

	resp := s.documentResponse(doc, slots)
	return &resp, nil
}

// NewVersion supersedes a rejected document with a new pending version in the same lineage.
func (s *WorkflowService) NewVersion(ctx context.Context, caller *models.Caller, documentID string, req dto.NewVersionRequest, upload *dto.Upload) (*dto.DocumentResponse, error) {
	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.KeepPrevious == (len(req.Approvers) > 0) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either keepPrevious or a new approver list is required")
	}

	prev, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !prev.IsCreator(caller.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if prev.State != models.DocumentStateRejected {
		return nil, appErrors.Conflict("only rejected documents can receive a new version", prev.State)
	}

	var data []byte
	filename := prev.FileName
	if upload != nil && len(upload.Data) > 0 {
		if err := s.validateUpload(upload); err != nil {
			return nil, err
		}
		data = upload.Data
		filename = cleanFilename(upload.Filename)
	} else {
		data, err = s.blobs.Read(ctx, storage.OriginalKey(prev.FilePath))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read previous version")
		}
	}

	docID := uuid.NewString()
	var slots []models.ApproverSlot
	if req.KeepPrevious {
		previous, listErr := s.slots.ListByDocument(ctx, nil, prev.ID)
		if listErr != nil {
			return nil, appErrors.Internal(listErr, "failed to load previous approvers")
		}
		slots, err = s.carrySlots(docID, previous)
	} else {
		slots, err = s.buildSlots(ctx, docID, req.Approvers)
	}
	if err != nil {
		return nil, err
	}

	accessToken, err := s.newToken()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate access token")
	}
	limit := prev.LimitHours
	if req.LimitHours != nil {
		limit = req.LimitHours
	}
	reminder := prev.ReminderIntervalHours
	if req.ReminderHours != nil {
		reminder = req.ReminderHours
	}
	now := s.now()
	parentID := prev.ID
	doc := &models.Document{
		ID:                    docID,
		Name:                  prev.Name,
		Description:           prev.Description,
		Version:               prev.Version + 1,
		ParentID:              &parentID,
		RootID:                prev.RootID,
		CreatorID:             prev.CreatorID,
		CreatorEmail:          prev.CreatorEmail,
		CreatorName:           prev.CreatorName,
		AccessToken:           accessToken,
		State:                 models.DocumentStatePending,
		LimitHours:            limit,
		DeadlineAt:            deadlineFrom(now, limit),
		ReminderIntervalHours: reminder,
		FilePath:              docID + ".pdf",
		FileName:              filename,
		CreatedAt:             now,
	}

	if err := s.persistVersion(ctx, prev.ID, doc, slots, data); err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(models.DocumentStatePending)
	s.emitAudit(ctx, caller, models.AuditActionDocumentVersion, documentResource, doc.ID, map[string]interface{}{
		"parentId": prev.ID,
		"version":  doc.Version,
	})
	s.notifyPending(ctx, doc, slots, models.NotificationNewVersion)

	resp := s.documentResponse(doc, slots)
	return &resp, nil
}

// persistDocument writes both file copies and inserts the rows in one transaction.
func (s *WorkflowService) persistDocument(ctx context.Context, doc *models.Document, slots []models.ApproverSlot, data []byte) (err error) {
	if err = s.writeCopies(ctx, doc.FilePath, data); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			s.removeCopies(ctx, doc.FilePath)
		}
	}()

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.documents.Create(ctx, tx, doc); err != nil {
		err = appErrors.Internal(err, "failed to create document")
		return err
	}
	if err = s.slots.CreateBatch(ctx, tx, slots); err != nil {
		err = appErrors.Internal(err, "failed to create approver slots")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit document")
		return err
	}
	return nil
}

// persistVersion re-checks the parent under lock before inserting the successor.
func (s *WorkflowService) persistVersion(ctx context.Context, parentID string, doc *models.Document, slots []models.ApproverSlot, data []byte) (err error) {
	if err = s.writeCopies(ctx, doc.FilePath, data); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			s.removeCopies(ctx, doc.FilePath)
		}
	}()

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	parent, err := s.lockDocument(ctx, tx, parentID)
	if err != nil {
		return err
	}
	if parent.State != models.DocumentStateRejected {
		err = appErrors.Conflict("only rejected documents can receive a new version", parent.State)
		return err
	}
	superseded, err := s.documents.HasSuccessor(ctx, tx, parentID)
	if err != nil {
		err = appErrors.Internal(err, "failed to check document lineage")
		return err
	}
	if superseded {
		err = appErrors.Conflict("document already has a newer version", parent.State)
		return err
	}

	if err = s.documents.Create(ctx, tx, doc); err != nil {
		err = appErrors.Internal(err, "failed to create document version")
		return err
	}
	if err = s.slots.CreateBatch(ctx, tx, slots); err != nil {
		err = appErrors.Internal(err, "failed to create approver slots")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit document version")
		return err
	}
	return nil
}

// UpdateDocument edits the metadata of a pending document.
func (s *WorkflowService) UpdateDocument(ctx context.Context, caller *models.Caller, documentID string, req dto.UpdateDocumentRequest) (*dto.DocumentResponse, error) {
	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.Name == nil && req.Description == nil && req.ReminderHours == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no changes provided")
	}
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsCreator(caller.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if doc.State != models.DocumentStatePending {
		return nil, appErrors.Conflict("only pending documents can be edited", doc.State)
	}

	update := models.DocumentUpdate{Name: req.Name, Description: req.Description, ReminderIntervalHours: req.ReminderHours}
	if err := s.documents.UpdateMetadata(ctx, doc.ID, update, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			current, loadErr := s.loadDocument(ctx, doc.ID)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, appErrors.Conflict("only pending documents can be edited", current.State)
		}
		return nil, appErrors.Internal(err, "failed to update document")
	}
	s.emitAudit(ctx, caller, models.AuditActionDocumentUpdate, documentResource, doc.ID, nil)

	return s.GetDocument(ctx, caller, doc.ID)
}

// DeleteDocument removes a version with its slots and signatures, then its files.
func (s *WorkflowService) DeleteDocument(ctx context.Context, caller *models.Caller, documentID string) error {
	if err := s.requireCaller(caller); err != nil {
		return err
	}
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !doc.IsCreator(caller.UserID) && !caller.IsAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if err := s.documents.Delete(ctx, nil, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Internal(err, "failed to delete document")
	}
	s.removeCopies(ctx, doc.FilePath)
	s.emitAudit(ctx, caller, models.AuditActionDocumentDelete, documentResource, doc.ID, map[string]interface{}{
		"name":    doc.Name,
		"version": doc.Version,
	})
	return nil
}

// Resend reopens an expired document with a fresh deadline and notifies the pending approvers again.
func (s *WorkflowService) Resend(ctx context.Context, caller *models.Caller, documentID string) (resp *dto.DocumentResponse, err error) {
	if err = s.requireCaller(caller); err != nil {
		return nil, err
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

	doc, err := s.lockDocument(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsCreator(caller.UserID) && !caller.IsAdmin {
		err = appErrors.Clone(appErrors.ErrForbidden, "")
		return nil, err
	}
	if doc.State != models.DocumentStateExpired {
		err = appErrors.Conflict("only expired documents can be resent", doc.State)
		return nil, err
	}

	now := s.now()
	deadline := deadlineFrom(now, doc.LimitHours)
	if _, err = s.slots.ReopenExpired(ctx, tx, doc.ID, now); err != nil {
		err = appErrors.Internal(err, "failed to reopen approver slots")
		return nil, err
	}
	if err = s.documents.Reopen(ctx, tx, doc.ID, deadline, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Conflict("only expired documents can be resent", doc.State)
			return nil, err
		}
		err = appErrors.Internal(err, "failed to reopen document")
		return nil, err
	}
	slots, err := s.slots.ListByDocument(ctx, tx, doc.ID)
	if err != nil {
		err = appErrors.Internal(err, "failed to load approver slots")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit resend")
		return nil, err
	}

	doc.State = models.DocumentStatePending
	doc.DeadlineAt = deadline
	doc.LastReminderAt = nil
	doc.UpdatedAt = now

	s.metrics.RecordTransition(models.DocumentStatePending)
	s.emitAudit(ctx, caller, models.AuditActionDocumentResend, documentResource, doc.ID, nil)
	s.notifyPending(ctx, doc, slots, models.NotificationApprovalRequest)

	out := s.documentResponse(doc, slots)
	return &out, nil
}

// Reposition moves stamp boxes and redraws every existing signature from the pristine original.
func (s *WorkflowService) Reposition(ctx context.Context, caller *models.Caller, documentID string, req dto.RepositionRequest) (resp *dto.DocumentResponse, err error) {
	if err = s.requireCaller(caller); err != nil {
		return nil, err
	}
	if !caller.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	var (
		previous   []byte
		workingKey string
	)
	restore := false
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			if restore {
				s.restoreWorking(ctx, workingKey, previous)
			}
		}
	}()

	doc, err := s.lockDocument(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	workingKey = doc.FilePath
	now := s.now()
	for _, pos := range req.Slots {
		g := models.Geometry{Page: pos.Page, X: pos.X, Y: pos.Y, Width: pos.Width, Height: pos.Height}
		if err = s.slots.UpdateGeometry(ctx, tx, doc.ID, pos.SlotID, g, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = appErrors.Clone(appErrors.ErrNotFound, "approver slot not found")
				return nil, err
			}
			err = appErrors.Internal(err, "failed to update slot position")
			return nil, err
		}
	}

	slots, err := s.slots.ListByDocument(ctx, tx, doc.ID)
	if err != nil {
		err = appErrors.Internal(err, "failed to load approver slots")
		return nil, err
	}
	signed := signedSlots(slots)
	if len(signed) > 0 {
		original, readErr := s.blobs.Read(ctx, storage.OriginalKey(doc.FilePath))
		if readErr != nil {
			err = appErrors.Wrap(readErr, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read original file")
			return nil, err
		}
		previous, err = s.blobs.Read(ctx, doc.FilePath)
		if err != nil {
			err = appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read working file")
			return nil, err
		}
		rendered, renderErr := s.renderStamps(original, signed)
		if renderErr != nil {
			err = appErrors.Wrap(renderErr, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to render signatures")
			return nil, err
		}
		restore = true
		if err = s.blobs.Write(ctx, doc.FilePath, rendered); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to write working file")
			return nil, err
		}
		if err = s.documents.TouchWorkingFile(ctx, tx, doc.ID, now); err != nil {
			err = appErrors.Internal(err, "failed to update document")
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit reposition")
		return nil, err
	}

	s.emitAudit(ctx, caller, models.AuditActionDocumentReposition, documentResource, doc.ID, map[string]interface{}{
		"slots":    len(req.Slots),
		"restamps": len(signed),
	})
	out := s.documentResponse(doc, slots)
	return &out, nil
}

// validateUpload checks presence, type, size and that the file parses as a PDF.
func (s *WorkflowService) validateUpload(upload *dto.Upload) error {
	if upload == nil || len(upload.Data) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "a PDF file is required")
	}
	if int64(len(upload.Data)) > s.config.MaxFileSizeBytes {
		return appErrors.Clone(appErrors.ErrPayloadTooBig, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}
	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	switch contentType {
	case "", "application/pdf", "application/x-pdf", "application/octet-stream":
	default:
		return appErrors.Clone(appErrors.ErrValidation, "file must be a PDF")
	}
	if !bytes.HasPrefix(upload.Data, []byte("%PDF-")) {
		return appErrors.Clone(appErrors.ErrValidation, "file must be a PDF")
	}
	if _, err := pdfstamp.PageCount(upload.Data); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "file is not a readable PDF")
	}
	return nil
}

// buildSlots validates approver inputs and turns them into pending slots of documentID.
func (s *WorkflowService) buildSlots(ctx context.Context, documentID string, inputs []dto.ApproverInput) ([]models.ApproverSlot, error) {
	if len(inputs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one approver is required")
	}
	slots := make([]models.ApproverSlot, 0, len(inputs))
	var aliases []string
	var userIDs []int64
	for i, input := range inputs {
		var binding models.Binding
		hasUser := input.UserID != nil
		hasAlias := strings.TrimSpace(input.GroupAlias) != ""
		switch {
		case hasUser && hasAlias, !hasUser && !hasAlias:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("approver %d must set exactly one of userId or groupAlias", i+1))
		case hasUser:
			binding = models.IndividualBinding(*input.UserID)
		default:
			binding = models.GroupBinding(input.GroupAlias)
		}
		if err := binding.Validate(); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("approver %d: %s", i+1, err.Error()))
		}
		box := pdfstamp.Box{X: input.X, Y: input.Y, Width: input.Width, Height: input.Height}
		if !box.Valid() || input.Page < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("approver %d has an invalid signature box", i+1))
		}
		if binding.Kind == models.BindingGroup {
			aliases = append(aliases, binding.Alias)
		} else {
			userIDs = append(userIDs, binding.UserID)
		}

		position := input.Position
		if position == 0 {
			position = i + 1
		}
		slot := models.ApproverSlot{
			DocumentID: documentID,
			Position:   position,
			State:      models.SlotStatePending,
			Geometry:   models.Geometry{Page: input.Page, X: input.X, Y: input.Y, Width: input.Width, Height: input.Height},
		}
		slot.SetBinding(binding)
		slots = append(slots, slot)
	}

	if len(aliases) > 0 {
		known, err := s.groups.ExistingAliases(ctx, aliases)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to verify group aliases")
		}
		for _, alias := range aliases {
			if !known[alias] {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown group alias %s", alias))
			}
		}
	}
	if len(userIDs) > 0 && s.users != nil {
		users, err := s.users.FindByIDs(ctx, userIDs)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to verify approvers")
		}
		for _, id := range userIDs {
			if _, ok := users[id]; !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown approver user %d", id))
			}
		}
	}
	return s.assignTokens(slots)
}

// carrySlots copies bindings and geometry of a previous version into fresh pending slots.
func (s *WorkflowService) carrySlots(documentID string, previous []models.ApproverSlot) ([]models.ApproverSlot, error) {
	if len(previous) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "previous version has no approvers to keep")
	}
	sortSlots(previous)
	slots := make([]models.ApproverSlot, 0, len(previous))
	for _, prev := range previous {
		slot := models.ApproverSlot{
			DocumentID: documentID,
			Position:   prev.Position,
			State:      models.SlotStatePending,
			Geometry:   prev.Geometry,
		}
		slot.SetBinding(prev.Binding())
		slots = append(slots, slot)
	}
	return s.assignTokens(slots)
}

func (s *WorkflowService) assignTokens(slots []models.ApproverSlot) ([]models.ApproverSlot, error) {
	for i := range slots {
		tok, err := s.newToken()
		if err != nil {
			return nil, appErrors.Internal(err, "failed to generate approval token")
		}
		slots[i].ID = uuid.NewString()
		slots[i].Token = tok
	}
	return slots, nil
}

func (s *WorkflowService) writeCopies(ctx context.Context, key string, data []byte) error {
	if err := s.blobs.Write(ctx, storage.OriginalKey(key), data); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store original file")
	}
	if err := s.blobs.Write(ctx, key, data); err != nil {
		_ = s.blobs.Delete(ctx, storage.OriginalKey(key))
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store working file")
	}
	return nil
}

func (s *WorkflowService) removeCopies(ctx context.Context, key string) {
	for _, k := range []string{key, storage.OriginalKey(key)} {
		if err := s.blobs.Delete(ctx, k); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			s.logger.Warn("failed to remove document file", zap.String("key", k), zap.Error(err))
		}
	}
}

// restoreWorking puts back the working file bytes captured before a failed transaction.
func (s *WorkflowService) restoreWorking(ctx context.Context, key string, previous []byte) {
	if key == "" || len(previous) == 0 {
		return
	}
	if err := s.blobs.Write(ctx, key, previous); err != nil {
		s.logger.Error("failed to restore working file, reapply from original required",
			zap.String("key", key), zap.Error(err))
	}
}

func signedSlots(slots []models.ApproverSlot) []models.ApproverSlot {
	out := make([]models.ApproverSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.State == models.SlotStateApproved && slot.SignerName != nil {
			out = append(out, slot)
		}
	}
	return out
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "document.pdf"
	}
	return name
}
