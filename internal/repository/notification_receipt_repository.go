package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

// NotificationReceiptRepository records which notifications were reserved for sending.
type NotificationReceiptRepository struct {
	db *sqlx.DB
}

// NewNotificationReceiptRepository constructs the repository.
func NewNotificationReceiptRepository(db *sqlx.DB) *NotificationReceiptRepository {
	return &NotificationReceiptRepository{db: db}
}

// Reserve inserts a receipt unless one newer than window exists. It returns false when the notification
// was already reserved, including when a concurrent writer won the insert.
func (r *NotificationReceiptRepository) Reserve(ctx context.Context, key models.ReceiptKey, window time.Duration, now time.Time) (reserved bool, err error) {
	key = key.Normalized()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin receipt transaction: %w", err)
	}
	defer func() {
		if err != nil || !reserved {
			_ = tx.Rollback()
		}
	}()

	const recentQuery = `SELECT EXISTS (
SELECT 1 FROM notification_receipts
WHERE recipient = $1 AND document_id = $2 AND kind = $3 AND slot_token = $4 AND created_at > $5)`
	var recent bool
	if err = tx.GetContext(ctx, &recent, recentQuery, key.Recipient, key.DocumentID, key.Kind, key.SlotToken, now.Add(-window)); err != nil {
		return false, fmt.Errorf("check recent receipt: %w", err)
	}
	if recent {
		return false, nil
	}

	const staleQuery = `DELETE FROM notification_receipts
WHERE recipient = $1 AND document_id = $2 AND kind = $3 AND slot_token = $4`
	if _, err = tx.ExecContext(ctx, staleQuery, key.Recipient, key.DocumentID, key.Kind, key.SlotToken); err != nil {
		return false, fmt.Errorf("drop stale receipt: %w", err)
	}

	const insertQuery = `INSERT INTO notification_receipts (recipient, document_id, kind, slot_token, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT ON CONSTRAINT notification_receipts_unique DO NOTHING`
	result, err := tx.ExecContext(ctx, insertQuery, key.Recipient, key.DocumentID, key.Kind, key.SlotToken, now)
	if err != nil {
		if isUniqueViolation(err) {
			err = nil
			return false, nil
		}
		return false, fmt.Errorf("insert receipt: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check receipt rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}
	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			err = nil
			return false, nil
		}
		return false, fmt.Errorf("commit receipt: %w", err)
	}
	return true, nil
}

// PurgeOlderThan removes receipts that can no longer suppress anything.
func (r *NotificationReceiptRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM notification_receipts WHERE created_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge receipts: %w", err)
	}
	return result.RowsAffected()
}
