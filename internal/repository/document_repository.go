package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

const documentColumns = `id, name, description, version, parent_id, root_id, creator_id, creator_email, creator_name,
       access_token, state, limit_hours, deadline_at, reminder_interval_hours, last_reminder_at, finalized_at,
       file_path, file_name, created_at, updated_at`

// DocumentRepository persists document versions.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a document version.
func (r *DocumentRepository) Create(ctx context.Context, exec sqlx.ExtContext, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document payload is nil")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.RootID == "" {
		doc.RootID = doc.ID
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	if doc.State == "" {
		doc.State = models.DocumentStatePending
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt

	const query = `INSERT INTO documents (` + documentColumns + `)
VALUES (:id, :name, :description, :version, :parent_id, :root_id, :creator_id, :creator_email, :creator_name,
        :access_token, :state, :limit_hours, :deadline_at, :reminder_interval_hours, :last_reminder_at, :finalized_at,
        :file_path, :file_name, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, doc); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// FindByID loads a document. Returns sql.ErrNoRows when missing.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LockByID loads a document holding a row lock until the surrounding transaction ends.
func (r *DocumentRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	var doc models.Document
	if err := sqlx.GetContext(ctx, r.exec(exec), &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByAccessToken resolves a read-only document link.
func (r *DocumentRepository) FindByAccessToken(ctx context.Context, token string) (*models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE access_token = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, token); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByIDs loads several documents at once. Unknown ids are skipped.
func (r *DocumentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return []models.Document{}, nil
	}
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = ANY($1) ORDER BY created_at DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find documents by ids: %w", err)
	}
	return docs, nil
}

// ListByCreator returns documents created by the user, newest first.
func (r *DocumentRepository) ListByCreator(ctx context.Context, creatorID int64) ([]models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE creator_id = $1 ORDER BY created_at DESC, version DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, creatorID); err != nil {
		return nil, fmt.Errorf("list documents by creator: %w", err)
	}
	return docs, nil
}

// ListByRoot returns every version of a lineage, oldest first.
func (r *DocumentRepository) ListByRoot(ctx context.Context, rootID string) ([]models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE root_id = $1 ORDER BY version ASC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, rootID); err != nil {
		return nil, fmt.Errorf("list document lineage: %w", err)
	}
	return docs, nil
}

// HasSuccessor reports whether a newer version already points at id.
func (r *DocumentRepository) HasSuccessor(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM documents WHERE parent_id = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, id); err != nil {
		return false, fmt.Errorf("check document successor: %w", err)
	}
	return exists, nil
}

// TransitionState moves a document from one state to another. Returns sql.ErrNoRows when the
// document is no longer in the expected state.
func (r *DocumentRepository) TransitionState(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.DocumentState, at time.Time) error {
	var finalized *time.Time
	if to == models.DocumentStateApproved {
		finalized = &at
	}
	const query = `UPDATE documents SET state = $3, finalized_at = COALESCE($4, finalized_at), updated_at = $5
WHERE id = $1 AND state = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, id, from, to, finalized, at)
	if err != nil {
		return fmt.Errorf("update document state: %w", err)
	}
	return expectAffected(result, "document state")
}

// Reopen returns an expired document to pending with a fresh deadline.
func (r *DocumentRepository) Reopen(ctx context.Context, exec sqlx.ExtContext, id string, deadline *time.Time, at time.Time) error {
	const query = `UPDATE documents SET state = 'pending', deadline_at = $2, last_reminder_at = NULL, updated_at = $3
WHERE id = $1 AND state = 'expired'`
	result, err := r.exec(exec).ExecContext(ctx, query, id, deadline, at)
	if err != nil {
		return fmt.Errorf("reopen document: %w", err)
	}
	return expectAffected(result, "document reopen")
}

// UpdateMetadata edits name, description or reminder interval of a pending document.
func (r *DocumentRepository) UpdateMetadata(ctx context.Context, id string, update models.DocumentUpdate, at time.Time) error {
	setParts := []string{"updated_at = :updated_at"}
	args := map[string]interface{}{"id": id, "updated_at": at}
	if update.Name != nil {
		setParts = append(setParts, "name = :name")
		args["name"] = *update.Name
	}
	if update.Description != nil {
		setParts = append(setParts, "description = :description")
		args["description"] = *update.Description
	}
	if update.ReminderIntervalHours != nil {
		setParts = append(setParts, "reminder_interval_hours = :reminder_interval_hours")
		args["reminder_interval_hours"] = *update.ReminderIntervalHours
	}
	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = :id AND state = '%s'",
		strings.Join(setParts, ", "),
		models.DocumentStatePending,
	)
	result, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update document metadata: %w", err)
	}
	return expectAffected(result, "document metadata")
}

// TouchWorkingFile bumps updated_at after the working PDF was rewritten.
func (r *DocumentRepository) TouchWorkingFile(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	const query = `UPDATE documents SET updated_at = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("touch document: %w", err)
	}
	return nil
}

// MarkReminded records a reminder round while the document is still pending.
// Returns sql.ErrNoRows when the document left the pending state meanwhile.
func (r *DocumentRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE documents SET last_reminder_at = $2, updated_at = $2 WHERE id = $1 AND state = 'pending'`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark document reminded: %w", err)
	}
	return expectAffected(result, "document reminder")
}

// ListDueReminders returns pending documents whose reminder interval elapsed since the last
// reminder, or since creation when none was sent yet.
func (r *DocumentRepository) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT ` + documentColumns + ` FROM documents
WHERE state = 'pending' AND reminder_interval_hours IS NOT NULL
  AND COALESCE(last_reminder_at, created_at) + make_interval(hours => reminder_interval_hours) <= $1
ORDER BY COALESCE(last_reminder_at, created_at) ASC
LIMIT $2`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, now, limit); err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	return docs, nil
}

// ListOverdue returns pending documents past their deadline.
func (r *DocumentRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT ` + documentColumns + ` FROM documents
WHERE state = 'pending' AND deadline_at IS NOT NULL AND deadline_at < $1
ORDER BY deadline_at ASC
LIMIT $2`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, now, limit); err != nil {
		return nil, fmt.Errorf("list overdue documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document version. Slots and signatures cascade.
func (r *DocumentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return expectAffected(result, "document delete")
}

func expectAffected(result sql.Result, label string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", label, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
