package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

// ErrDuplicate reports a unique constraint violation.
var ErrDuplicate = errors.New("duplicate record")

const signatureColumns = `id, document_id, slot_id, signer_user_id, signer_member_id, signer_name, signed_at, ip_address`

// SignatureRepository persists append-only signature records.
type SignatureRepository struct {
	db *sqlx.DB
}

// NewSignatureRepository constructs the repository.
func NewSignatureRepository(db *sqlx.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

func (r *SignatureRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a signature. A second signature for the same slot yields ErrDuplicate.
func (r *SignatureRepository) Create(ctx context.Context, exec sqlx.ExtContext, sig *models.Signature) error {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.SignedAt.IsZero() {
		sig.SignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO signatures (` + signatureColumns + `)
VALUES (:id, :document_id, :slot_id, :signer_user_id, :signer_member_id, :signer_name, :signed_at, :ip_address)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, sig); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert signature: %w", err)
	}
	return nil
}

// ListByDocument returns the signatures of a document in signing order.
func (r *SignatureRepository) ListByDocument(ctx context.Context, exec sqlx.ExtContext, documentID string) ([]models.Signature, error) {
	const query = `SELECT ` + signatureColumns + ` FROM signatures WHERE document_id = $1 ORDER BY signed_at ASC, id ASC`
	var sigs []models.Signature
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sigs, query, documentID); err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	return sigs, nil
}

// ListByDocuments returns signatures for several documents grouped by document id.
func (r *SignatureRepository) ListByDocuments(ctx context.Context, documentIDs []string) (map[string][]models.Signature, error) {
	grouped := make(map[string][]models.Signature, len(documentIDs))
	if len(documentIDs) == 0 {
		return grouped, nil
	}
	const query = `SELECT ` + signatureColumns + ` FROM signatures WHERE document_id = ANY($1) ORDER BY signed_at ASC, id ASC`
	var sigs []models.Signature
	if err := r.db.SelectContext(ctx, &sigs, query, pq.Array(documentIDs)); err != nil {
		return nil, fmt.Errorf("list signatures by documents: %w", err)
	}
	for _, sig := range sigs {
		grouped[sig.DocumentID] = append(grouped[sig.DocumentID], sig)
	}
	return grouped, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
