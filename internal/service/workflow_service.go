package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/pdfstamp"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/storage"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/token"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type documentStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error)
	FindByAccessToken(ctx context.Context, token string) (*models.Document, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Document, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]models.Document, error)
	ListByRoot(ctx context.Context, rootID string) ([]models.Document, error)
	HasSuccessor(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
	TransitionState(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.DocumentState, at time.Time) error
	Reopen(ctx context.Context, exec sqlx.ExtContext, id string, deadline *time.Time, at time.Time) error
	UpdateMetadata(ctx context.Context, id string, update models.DocumentUpdate, at time.Time) error
	TouchWorkingFile(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type slotStore interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.ApproverSlot) error
	ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentID string) ([]models.ApproverSlot, error)
	ListByDocuments(ctx context.Context, documentIDs []string) (map[string][]models.ApproverSlot, error)
	FindByToken(ctx context.Context, token string) (*models.ApproverSlot, error)
	LockByToken(ctx context.Context, exec sqlx.ExtContext, token string) (*models.ApproverSlot, error)
	DocumentIDByToken(ctx context.Context, exec sqlx.ExtContext, token string) (string, error)
	MarkApproved(ctx context.Context, exec sqlx.ExtContext, id string, memberID *string, signerName string, at time.Time) error
	MarkRejected(ctx context.Context, exec sqlx.ExtContext, id, reason string, at time.Time) error
	RejectRemaining(ctx context.Context, exec sqlx.ExtContext, documentID, exceptID, reason string, at time.Time) (int64, error)
	ReopenExpired(ctx context.Context, exec sqlx.ExtContext, documentID string, at time.Time) (int64, error)
	CountPending(ctx context.Context, exec sqlx.ExtContext, documentID string) (int, error)
	UpdateGeometry(ctx context.Context, exec sqlx.ExtContext, documentID, slotID string, g models.Geometry, at time.Time) error
	ListActionable(ctx context.Context, userID int64, email string, aliases []string) ([]models.ApproverSlot, error)
}

type signatureStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, sig *models.Signature) error
	ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentID string) ([]models.Signature, error)
	ListByDocuments(ctx context.Context, documentIDs []string) (map[string][]models.Signature, error)
}

type groupDirectory interface {
	memberDirectory
	ExistingAliases(ctx context.Context, aliases []string) (map[string]bool, error)
	AliasesForIdentity(ctx context.Context, identity models.GroupIdentity) ([]string, error)
}

type userDirectory interface {
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error)
}

type pdfRenderer interface {
	Apply(src []byte, stamps []pdfstamp.Stamp) ([]byte, error)
}

type downloadSigner interface {
	Generate(subject, key, filename string) (string, time.Time, error)
}

type notifier interface {
	Notify(ctx context.Context, notice Notice)
	NotifyOnce(ctx context.Context, notice Notice)
	NotifyOversight(ctx context.Context, notice Notice)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// WorkflowDeps groups the collaborators of the workflow service.
type WorkflowDeps struct {
	Tx         txProvider
	Documents  documentStore
	Slots      slotStore
	Signatures signatureStore
	Groups     groupDirectory
	Users      userDirectory
	Blobs      storage.BlobStore
	Renderer   pdfRenderer
	Signer     downloadSigner
	Notifier   notifier
	Audit      auditLogger
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// WorkflowConfig tunes upload limits and defaults.
type WorkflowConfig struct {
	MaxFileSizeBytes  int64
	DefaultLimitHours int
	DownloadBaseURL   string
}

// WorkflowService implements the document approval state machine.
type WorkflowService struct {
	tx         txProvider
	documents  documentStore
	slots      slotStore
	signatures signatureStore
	groups     groupDirectory
	users      userDirectory
	blobs      storage.BlobStore
	renderer   pdfRenderer
	signer     downloadSigner
	notifier   notifier
	audit      auditLogger
	metrics    *MetricsService
	resolver   *Resolver
	recipients recipientResolver
	validator  *validator.Validate
	logger     *zap.Logger
	config     WorkflowConfig
	now        func() time.Time
	newToken   func() (string, error)
}

// NewWorkflowService wires the workflow service.
func NewWorkflowService(deps WorkflowDeps, cfg WorkflowConfig) *WorkflowService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Renderer == nil {
		deps.Renderer = pdfstamp.NewStamper(nil)
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 20 * 1024 * 1024
	}
	cfg.DownloadBaseURL = strings.TrimRight(cfg.DownloadBaseURL, "/")
	return &WorkflowService{
		tx:         deps.Tx,
		documents:  deps.Documents,
		slots:      deps.Slots,
		signatures: deps.Signatures,
		groups:     deps.Groups,
		users:      deps.Users,
		blobs:      deps.Blobs,
		renderer:   deps.Renderer,
		signer:     deps.Signer,
		notifier:   deps.Notifier,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		resolver:   NewResolver(deps.Groups),
		recipients: recipientResolver{users: deps.Users, logger: deps.Logger},
		validator:  deps.Validator,
		logger:     deps.Logger,
		config:     cfg,
		now:        func() time.Time { return time.Now().UTC() },
		newToken:   token.New,
	}
}

// Resolver exposes the delegation resolver used by the service.
func (s *WorkflowService) Resolver() *Resolver {
	return s.resolver
}

func (s *WorkflowService) begin(ctx context.Context) (*sqlx.Tx, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin transaction")
	}
	return tx, nil
}

// loadDocument fetches a document mapping sql.ErrNoRows to NotFound.
func (s *WorkflowService) loadDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to load document")
	}
	return doc, nil
}

func (s *WorkflowService) lockDocument(ctx context.Context, tx sqlx.ExtContext, id string) (*models.Document, error) {
	doc, err := s.documents.LockByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to lock document")
	}
	return doc, nil
}

func (s *WorkflowService) requireCaller(caller *models.Caller) error {
	if caller == nil || caller.UserID <= 0 {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	return nil
}

// renderStamps draws the signer name of every slot onto src.
func (s *WorkflowService) renderStamps(src []byte, slots []models.ApproverSlot) ([]byte, error) {
	stamps := make([]pdfstamp.Stamp, 0, len(slots))
	for _, slot := range slots {
		if slot.SignerName == nil {
			continue
		}
		stamps = append(stamps, pdfstamp.Stamp{
			Page: slot.Page,
			Box:  pdfstamp.Box{X: slot.X, Y: slot.Y, Width: slot.Width, Height: slot.Height},
			Text: *slot.SignerName,
		})
	}
	started := time.Now()
	out, err := s.renderer.Apply(src, stamps)
	s.metrics.ObserveStamp(time.Since(started))
	return out, err
}

func (s *WorkflowService) notifyPending(ctx context.Context, doc *models.Document, slots []models.ApproverSlot, kind models.NotificationKind) {
	if s.notifier == nil {
		return
	}
	for _, rcpt := range s.recipients.forPending(ctx, slots) {
		s.notifier.Notify(ctx, Notice{Kind: kind, Recipient: rcpt.Email, Document: *doc, SlotToken: rcpt.Token})
	}
}

func (s *WorkflowService) emitAudit(ctx context.Context, caller *models.Caller, action, resource, resourceID string, payload map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := auditEntry(action, resource, resourceID, s.now(), payload)
	if caller != nil {
		if caller.UserID > 0 {
			id := caller.UserID
			entry.ActorID = &id
		}
		if caller.IP != "" {
			entry.IPAddress = caller.IP
		}
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err), zap.String("action", action))
	}
}

// auditEntry builds a system-attributed audit record.
func auditEntry(action, resource, resourceID string, at time.Time, payload map[string]interface{}) *models.AuditLog {
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Resource:  resource,
		Payload:   types.JSONText("{}"),
		IPAddress: "system",
		CreatedAt: at,
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if len(payload) > 0 {
		if raw, err := json.Marshal(payload); err == nil {
			entry.Payload = types.JSONText(raw)
		}
	}
	return entry
}

// documentResponse maps doc and its slots, attaching a signed download link when possible.
func (s *WorkflowService) documentResponse(doc *models.Document, slots []models.ApproverSlot) dto.DocumentResponse {
	sortSlots(slots)
	out := dto.NewDocumentResponse(*doc, slots)
	if s.signer == nil || doc.FilePath == "" {
		return out
	}
	grant, expires, err := s.signer.Generate(doc.ID, doc.FilePath, doc.FileName)
	if err != nil {
		s.logger.Warn("failed to sign download url", zap.Error(err), zap.String("document_id", doc.ID))
		return out
	}
	out.DownloadURL = s.config.DownloadBaseURL + "/" + grant
	out.DownloadExpiresAt = &expires
	return out
}

func sortSlots(slots []models.ApproverSlot) {
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Position < slots[j].Position })
}

func deadlineFrom(now time.Time, limitHours *int) *time.Time {
	if limitHours == nil || *limitHours <= 0 {
		return nil
	}
	deadline := now.Add(time.Duration(*limitHours) * time.Hour)
	return &deadline
}
