package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/export"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/token"
)

// History export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportResult is a rendered history file.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ListMine returns the documents created by the caller, newest first.
func (s *WorkflowService) ListMine(ctx context.Context, caller *models.Caller) ([]dto.DocumentResponse, error) {
	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByCreator(ctx, caller.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list documents")
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	slots, err := s.slots.ListByDocuments(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load approver slots")
	}
	out := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, s.documentResponse(&docs[i], slots[docs[i].ID]))
	}
	return out, nil
}

// GetDocument returns one version for its creator, an admin or a participant.
func (s *WorkflowService) GetDocument(ctx context.Context, caller *models.Caller, documentID string) (*dto.DocumentResponse, error) {
	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByDocument(ctx, nil, doc.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load approver slots")
	}
	allowed, err := s.canView(ctx, caller, []models.Document{*doc}, map[string][]models.ApproverSlot{doc.ID: slots}, nil)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	resp := s.documentResponse(doc, slots)
	return &resp, nil
}

// GetByAccessToken resolves a read-only document link.
func (s *WorkflowService) GetByAccessToken(ctx context.Context, accessToken string) (*dto.DocumentResponse, error) {
	if !token.Valid(accessToken) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	doc, err := s.documents.FindByAccessToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to load document")
	}
	slots, err := s.slots.ListByDocument(ctx, nil, doc.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load approver slots")
	}
	resp := s.documentResponse(doc, slots)
	return &resp, nil
}

// History returns every version of the lineage containing documentID, oldest first.
func (s *WorkflowService) History(ctx context.Context, caller *models.Caller, documentID string) (*dto.HistoryResponse, error) {
	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	versions, err := s.documents.ListByRoot(ctx, doc.RootID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load document history")
	}
	ids := make([]string, 0, len(versions))
	for _, version := range versions {
		ids = append(ids, version.ID)
	}
	slots, err := s.slots.ListByDocuments(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load approver slots")
	}
	signatures, err := s.signatures.ListByDocuments(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load signatures")
	}
	allowed, err := s.canView(ctx, caller, versions, slots, signatures)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	out := &dto.HistoryResponse{RootID: doc.RootID, Versions: make([]dto.HistoryVersion, 0, len(versions))}
	for i := range versions {
		sigs := signatures[versions[i].ID]
		if sigs == nil {
			sigs = []models.Signature{}
		}
		out.Versions = append(out.Versions, dto.HistoryVersion{
			Document:   s.documentResponse(&versions[i], slots[versions[i].ID]),
			Signatures: sigs,
		})
	}
	return out, nil
}

// ExportHistory renders the lineage decisions as CSV or PDF.
func (s *WorkflowService) ExportHistory(ctx context.Context, caller *models.Caller, documentID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	history, err := s.History(ctx, caller, documentID)
	if err != nil {
		return nil, err
	}
	dataset := historyDataset(history)
	filename := fmt.Sprintf("history-%s.%s", history.RootID, format)

	if format == ExportFormatPDF {
		exporter := export.NewPDFExporter()
		title := "Historial de aprobación"
		if len(history.Versions) > 0 {
			title += ": " + history.Versions[0].Document.Name
		}
		data, renderErr := exporter.Render(dataset, title)
		if renderErr != nil {
			return nil, appErrors.Internal(renderErr, "failed to render history")
		}
		return &ExportResult{Filename: filename, ContentType: exporter.ContentType(), Data: data}, nil
	}
	exporter := export.NewCSVExporter()
	data, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render history")
	}
	return &ExportResult{Filename: filename, ContentType: exporter.ContentType(), Data: data}, nil
}

func historyDataset(history *dto.HistoryResponse) export.Dataset {
	dataset := export.Dataset{Columns: []export.Column{
		{Key: "version", Title: "Versión"},
		{Key: "document_state", Title: "Estado documento"},
		{Key: "position", Title: "Orden"},
		{Key: "approver", Title: "Aprobador"},
		{Key: "slot_state", Title: "Estado"},
		{Key: "signer", Title: "Firmante"},
		{Key: "decided_at", Title: "Fecha"},
		{Key: "reason", Title: "Motivo"},
	}}
	for _, version := range history.Versions {
		for _, slot := range version.Document.Slots {
			row := map[string]string{
				"version":        strconv.Itoa(version.Document.Version),
				"document_state": string(version.Document.State),
				"position":       strconv.Itoa(slot.Position),
				"approver":       slotLabel(slot),
				"slot_state":     string(slot.State),
			}
			if slot.SignerName != nil {
				row["signer"] = *slot.SignerName
			}
			if slot.SignedAt != nil {
				row["decided_at"] = slot.SignedAt.UTC().Format(time.RFC3339)
			}
			if slot.RejectionReason != nil {
				row["reason"] = *slot.RejectionReason
			}
			dataset.Rows = append(dataset.Rows, row)
		}
	}
	return dataset
}

func slotLabel(slot dto.SlotResponse) string {
	if slot.GroupAlias != nil {
		return *slot.GroupAlias
	}
	if slot.UserID != nil {
		return "user:" + strconv.FormatInt(*slot.UserID, 10)
	}
	return ""
}

// canView allows the creator, admins and anyone who signed or could act on a slot of the lineage.
func (s *WorkflowService) canView(ctx context.Context, caller *models.Caller, docs []models.Document, slots map[string][]models.ApproverSlot, signatures map[string][]models.Signature) (bool, error) {
	if caller.IsAdmin {
		return true, nil
	}
	for i := range docs {
		if docs[i].IsCreator(caller.UserID) {
			return true, nil
		}
	}
	for _, sigs := range signatures {
		for _, sig := range sigs {
			if sig.SignerUserID != nil && *sig.SignerUserID == caller.UserID {
				return true, nil
			}
		}
	}
	for _, list := range slots {
		for i := range list {
			allowed, err := s.resolver.CanAct(ctx, &list[i], caller)
			if err != nil {
				return false, err
			}
			if allowed {
				return true, nil
			}
		}
	}
	return false, nil
}
