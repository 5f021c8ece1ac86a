package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
)

type sweepDocumentStore interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error)
	TransitionState(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.DocumentState, at time.Time) error
	MarkReminded(ctx context.Context, id string, at time.Time) error
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]models.Document, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Document, error)
}

type sweepSlotStore interface {
	ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentID string) ([]models.ApproverSlot, error)
	ExpirePending(ctx context.Context, exec sqlx.ExtContext, documentID string, at time.Time) (int64, error)
}

type receiptPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweeperConfig tunes the background sweepers.
type SweeperConfig struct {
	Interval         time.Duration
	BatchSize        int
	ReceiptRetention time.Duration
}

// SweeperDeps groups the collaborators of the sweepers.
type SweeperDeps struct {
	Tx        txProvider
	Documents sweepDocumentStore
	Slots     sweepSlotStore
	Users     userDirectory
	Receipts  receiptPurger
	Notifier  notifier
	Audit     auditLogger
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// SweeperService sends due reminders and expires overdue documents.
type SweeperService struct {
	tx         txProvider
	documents  sweepDocumentStore
	slots      sweepSlotStore
	receipts   receiptPurger
	recipients recipientResolver
	notifier   notifier
	audit      auditLogger
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        SweeperConfig
	now        func() time.Time
}

// NewSweeperService constructs the sweepers.
func NewSweeperService(deps SweeperDeps, cfg SweeperConfig) *SweeperService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ReceiptRetention <= 0 {
		cfg.ReceiptRetention = 24 * time.Hour
	}
	return &SweeperService{
		tx:         deps.Tx,
		documents:  deps.Documents,
		slots:      deps.Slots,
		receipts:   deps.Receipts,
		recipients: recipientResolver{users: deps.Users, logger: deps.Logger},
		notifier:   deps.Notifier,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start boots the polling goroutine. It stops when ctx is cancelled.
func (s *SweeperService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
	s.logger.Info("sweepers started", zap.Duration("interval", s.cfg.Interval))
}

// RunOnce executes one round of every sweeper.
func (s *SweeperService) RunOnce(ctx context.Context) {
	if _, err := s.RunReminders(ctx); err != nil {
		s.logger.Warn("reminder sweep failed", zap.Error(err))
	}
	if _, err := s.RunExpirations(ctx); err != nil {
		s.logger.Warn("expiration sweep failed", zap.Error(err))
	}
	if s.receipts != nil {
		cutoff := s.now().Add(-s.cfg.ReceiptRetention)
		if purged, err := s.receipts.PurgeOlderThan(ctx, cutoff); err != nil {
			s.logger.Warn("receipt purge failed", zap.Error(err))
		} else if purged > 0 {
			s.logger.Debug("purged notification receipts", zap.Int64("count", purged))
		}
	}
}

// RunReminders notifies pending approvers of documents whose reminder interval elapsed.
// It returns the number of documents reminded.
func (s *SweeperService) RunReminders(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveSweep("reminder", time.Since(started)) }()

	now := s.now()
	due, err := s.documents.ListDueReminders(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	reminded := 0
	for _, candidate := range due {
		ok, err := s.remind(ctx, candidate.ID, now)
		if err != nil {
			s.logger.Warn("failed to remind document", zap.String("document_id", candidate.ID), zap.Error(err))
			continue
		}
		if ok {
			reminded++
		}
	}
	return reminded, nil
}

func (s *SweeperService) remind(ctx context.Context, documentID string, now time.Time) (bool, error) {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if doc.State != models.DocumentStatePending {
		return false, nil
	}
	slots, err := s.slots.ListByDocument(ctx, nil, doc.ID)
	if err != nil {
		return false, err
	}
	if s.notifier != nil {
		for _, rcpt := range s.recipients.forPending(ctx, slots) {
			s.notifier.Notify(ctx, Notice{Kind: models.NotificationReminder, Recipient: rcpt.Email, Document: *doc, SlotToken: rcpt.Token})
		}
	}
	if err := s.documents.MarkReminded(ctx, doc.ID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RunExpirations expires pending documents past their deadline. It returns the number expired.
func (s *SweeperService) RunExpirations(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveSweep("expiration", time.Since(started)) }()

	now := s.now()
	overdue, err := s.documents.ListOverdue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, candidate := range overdue {
		doc, waiting, err := s.expire(ctx, candidate.ID, now)
		if err != nil {
			s.logger.Warn("failed to expire document", zap.String("document_id", candidate.ID), zap.Error(err))
			continue
		}
		if doc == nil {
			continue
		}
		expired++
		s.metrics.RecordTransition(models.DocumentStateExpired)
		s.emitAudit(ctx, doc, len(waiting))
		if s.notifier != nil {
			s.notifier.NotifyOnce(ctx, Notice{
				Kind:      models.NotificationExpired,
				Recipient: doc.CreatorEmail,
				Document:  *doc,
				Pending:   s.recipients.names(ctx, waiting),
			})
		}
	}
	return expired, nil
}

// expire locks the document and re-checks the predicate. A nil document means it was skipped.
func (s *SweeperService) expire(ctx context.Context, documentID string, now time.Time) (doc *models.Document, waiting []models.ApproverSlot, err error) {
	if s.tx == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil || doc == nil {
			_ = tx.Rollback()
		}
	}()

	locked, err := s.documents.LockByID(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if locked.State != models.DocumentStatePending || locked.DeadlineAt == nil || !locked.DeadlineAt.Before(now) {
		return nil, nil, nil
	}
	slots, err := s.slots.ListByDocument(ctx, tx, locked.ID)
	if err != nil {
		return nil, nil, err
	}
	if _, err = s.slots.ExpirePending(ctx, tx, locked.ID, now); err != nil {
		return nil, nil, err
	}
	if err = s.documents.TransitionState(ctx, tx, locked.ID, models.DocumentStatePending, models.DocumentStateExpired, now); err != nil {
		return nil, nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, err
	}
	locked.State = models.DocumentStateExpired
	locked.UpdatedAt = now
	return locked, pendingSlots(slots), nil
}

func (s *SweeperService) emitAudit(ctx context.Context, doc *models.Document, waiting int) {
	if s.audit == nil {
		return
	}
	entry := auditEntry(models.AuditActionDocumentExpire, documentResource, doc.ID, s.now(), map[string]interface{}{
		"pendingApprovers": waiting,
	})
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err), zap.String("action", entry.Action))
	}
}
