package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

const slotColumns = `id, document_id, position, binding_kind, user_id, group_alias, signer_member_id, signer_name,
       token, state, page, pos_x, pos_y, width, height, rejection_reason, signed_at, created_at, updated_at`

// ApproverSlotRepository persists approver slots.
type ApproverSlotRepository struct {
	db *sqlx.DB
}

// NewApproverSlotRepository constructs the repository.
func NewApproverSlotRepository(db *sqlx.DB) *ApproverSlotRepository {
	return &ApproverSlotRepository{db: db}
}

func (r *ApproverSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts the slots of a document.
func (r *ApproverSlotRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.ApproverSlot) error {
	if len(slots) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range slots {
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		if slots[i].State == "" {
			slots[i].State = models.SlotStatePending
		}
		if slots[i].CreatedAt.IsZero() {
			slots[i].CreatedAt = now
		}
		slots[i].UpdatedAt = slots[i].CreatedAt
	}
	const query = `INSERT INTO approver_slots (` + slotColumns + `)
VALUES (:id, :document_id, :position, :binding_kind, :user_id, :group_alias, :signer_member_id, :signer_name,
        :token, :state, :page, :pos_x, :pos_y, :width, :height, :rejection_reason, :signed_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slots); err != nil {
		return fmt.Errorf("insert approver slots: %w", err)
	}
	return nil
}

// ListByDocument returns the slots of a document ordered by position.
func (r *ApproverSlotRepository) ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentID string) ([]models.ApproverSlot, error) {
	const query = `SELECT ` + slotColumns + ` FROM approver_slots WHERE document_id = $1 ORDER BY position ASC, created_at ASC, id ASC`
	var slots []models.ApproverSlot
	if err := sqlx.SelectContext(ctx, r.exec(exec), &slots, query, documentID); err != nil {
		return nil, fmt.Errorf("list approver slots: %w", err)
	}
	return slots, nil
}

// ListByDocuments returns slots for several documents grouped by document id.
func (r *ApproverSlotRepository) ListByDocuments(ctx context.Context, documentIDs []string) (map[string][]models.ApproverSlot, error) {
	grouped := make(map[string][]models.ApproverSlot, len(documentIDs))
	if len(documentIDs) == 0 {
		return grouped, nil
	}
	const query = `SELECT ` + slotColumns + ` FROM approver_slots WHERE document_id = ANY($1) ORDER BY position ASC, created_at ASC, id ASC`
	var slots []models.ApproverSlot
	if err := r.db.SelectContext(ctx, &slots, query, pq.Array(documentIDs)); err != nil {
		return nil, fmt.Errorf("list approver slots by documents: %w", err)
	}
	for _, slot := range slots {
		grouped[slot.DocumentID] = append(grouped[slot.DocumentID], slot)
	}
	return grouped, nil
}

// FindByToken resolves a slot link without locking.
func (r *ApproverSlotRepository) FindByToken(ctx context.Context, token string) (*models.ApproverSlot, error) {
	const query = `SELECT ` + slotColumns + ` FROM approver_slots WHERE token = $1`
	var slot models.ApproverSlot
	if err := r.db.GetContext(ctx, &slot, query, token); err != nil {
		return nil, err
	}
	return &slot, nil
}

// LockByToken resolves a slot link holding a row lock.
func (r *ApproverSlotRepository) LockByToken(ctx context.Context, exec sqlx.ExtContext, token string) (*models.ApproverSlot, error) {
	const query = `SELECT ` + slotColumns + ` FROM approver_slots WHERE token = $1 FOR UPDATE`
	var slot models.ApproverSlot
	if err := sqlx.GetContext(ctx, r.exec(exec), &slot, query, token); err != nil {
		return nil, err
	}
	return &slot, nil
}

// DocumentIDByToken returns the owning document of a slot token.
func (r *ApproverSlotRepository) DocumentIDByToken(ctx context.Context, exec sqlx.ExtContext, token string) (string, error) {
	const query = `SELECT document_id FROM approver_slots WHERE token = $1`
	var id string
	if err := sqlx.GetContext(ctx, r.exec(exec), &id, query, token); err != nil {
		return "", err
	}
	return id, nil
}

// MarkApproved records the resolved signer on a pending slot.
func (r *ApproverSlotRepository) MarkApproved(ctx context.Context, exec sqlx.ExtContext, id string, memberID *string, signerName string, at time.Time) error {
	const query = `UPDATE approver_slots SET state = 'approved', signer_member_id = $2, signer_name = $3, signed_at = $4, updated_at = $4
WHERE id = $1 AND state = 'pending'`
	result, err := r.exec(exec).ExecContext(ctx, query, id, memberID, signerName, at)
	if err != nil {
		return fmt.Errorf("approve slot: %w", err)
	}
	return expectAffected(result, "slot approve")
}

// MarkRejected records a rejection on a pending slot.
func (r *ApproverSlotRepository) MarkRejected(ctx context.Context, exec sqlx.ExtContext, id, reason string, at time.Time) error {
	const query = `UPDATE approver_slots SET state = 'rejected', rejection_reason = $2, updated_at = $3
WHERE id = $1 AND state = 'pending'`
	result, err := r.exec(exec).ExecContext(ctx, query, id, reason, at)
	if err != nil {
		return fmt.Errorf("reject slot: %w", err)
	}
	return expectAffected(result, "slot reject")
}

// RejectRemaining rejects every pending slot of the document other than exceptID.
func (r *ApproverSlotRepository) RejectRemaining(ctx context.Context, exec sqlx.ExtContext, documentID, exceptID, reason string, at time.Time) (int64, error) {
	const query = `UPDATE approver_slots SET state = 'rejected', rejection_reason = $3, updated_at = $4
WHERE document_id = $1 AND id <> $2 AND state = 'pending'`
	result, err := r.exec(exec).ExecContext(ctx, query, documentID, exceptID, reason, at)
	if err != nil {
		return 0, fmt.Errorf("reject remaining slots: %w", err)
	}
	return result.RowsAffected()
}

// ExpirePending expires every pending slot of the document.
func (r *ApproverSlotRepository) ExpirePending(ctx context.Context, exec sqlx.ExtContext, documentID string, at time.Time) (int64, error) {
	const query = `UPDATE approver_slots SET state = 'expired', updated_at = $2 WHERE document_id = $1 AND state = 'pending'`
	result, err := r.exec(exec).ExecContext(ctx, query, documentID, at)
	if err != nil {
		return 0, fmt.Errorf("expire slots: %w", err)
	}
	return result.RowsAffected()
}

// ReopenExpired returns expired slots to pending. Approved and rejected slots are untouched.
func (r *ApproverSlotRepository) ReopenExpired(ctx context.Context, exec sqlx.ExtContext, documentID string, at time.Time) (int64, error) {
	const query = `UPDATE approver_slots SET state = 'pending', updated_at = $2 WHERE document_id = $1 AND state IN ('pending', 'expired')`
	result, err := r.exec(exec).ExecContext(ctx, query, documentID, at)
	if err != nil {
		return 0, fmt.Errorf("reopen slots: %w", err)
	}
	return result.RowsAffected()
}

// CountPending counts the slots still awaiting a decision.
func (r *ApproverSlotRepository) CountPending(ctx context.Context, exec sqlx.ExtContext, documentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM approver_slots WHERE document_id = $1 AND state = 'pending'`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, documentID); err != nil {
		return 0, fmt.Errorf("count pending slots: %w", err)
	}
	return count, nil
}

// UpdateGeometry moves the stamp box of a slot belonging to documentID.
func (r *ApproverSlotRepository) UpdateGeometry(ctx context.Context, exec sqlx.ExtContext, documentID, slotID string, g models.Geometry, at time.Time) error {
	if _, err := uuid.Parse(slotID); err != nil {
		return sql.ErrNoRows
	}
	const query = `UPDATE approver_slots SET page = $3, pos_x = $4, pos_y = $5, width = $6, height = $7, updated_at = $8
WHERE id = $1 AND document_id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, slotID, documentID, g.Page, g.X, g.Y, g.Width, g.Height, at)
	if err != nil {
		return fmt.Errorf("update slot geometry: %w", err)
	}
	return expectAffected(result, "slot geometry")
}

// ListActionable returns pending slots on pending documents bound to the user, to the caller's email
// as an alias, or to one of the aliases the caller is an active member of.
func (r *ApproverSlotRepository) ListActionable(ctx context.Context, userID int64, email string, aliases []string) ([]models.ApproverSlot, error) {
	const query = `SELECT s.id, s.document_id, s.position, s.binding_kind, s.user_id, s.group_alias, s.signer_member_id,
       s.signer_name, s.token, s.state, s.page, s.pos_x, s.pos_y, s.width, s.height, s.rejection_reason, s.signed_at,
       s.created_at, s.updated_at
FROM approver_slots s
JOIN documents d ON d.id = s.document_id
WHERE s.state = 'pending' AND d.state = 'pending'
  AND ((s.binding_kind = 'individual' AND s.user_id = $1)
    OR (s.binding_kind = 'group' AND (LOWER(s.group_alias) = $2 OR s.group_alias = ANY($3))))
ORDER BY d.created_at DESC, s.position ASC`
	if aliases == nil {
		aliases = []string{}
	}
	var slots []models.ApproverSlot
	if err := r.db.SelectContext(ctx, &slots, query, userID, models.NormalizeEmail(email), pq.Array(aliases)); err != nil {
		return nil, fmt.Errorf("list actionable slots: %w", err)
	}
	return slots, nil
}
