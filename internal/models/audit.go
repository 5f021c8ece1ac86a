package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionDocumentCreate     = "DOCUMENT_CREATE"
	AuditActionDocumentUpdate     = "DOCUMENT_UPDATE"
	AuditActionDocumentDelete     = "DOCUMENT_DELETE"
	AuditActionDocumentSign       = "DOCUMENT_SIGN"
	AuditActionDocumentReject     = "DOCUMENT_REJECT"
	AuditActionDocumentExpire     = "DOCUMENT_EXPIRE"
	AuditActionDocumentVersion    = "DOCUMENT_VERSION"
	AuditActionDocumentReposition = "DOCUMENT_REPOSITION"
	AuditActionDocumentResend     = "DOCUMENT_RESEND"
	AuditActionMemberCreate       = "GROUP_MEMBER_CREATE"
	AuditActionMemberUpdate       = "GROUP_MEMBER_UPDATE"
	AuditActionMemberDeactivate   = "GROUP_MEMBER_DEACTIVATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string         `db:"id" json:"id"`
	ActorID    *int64         `db:"actor_id" json:"actorId,omitempty"`
	Action     string         `db:"action" json:"action"`
	Resource   string         `db:"resource" json:"resource"`
	ResourceID *string        `db:"resource_id" json:"resourceId,omitempty"`
	Payload    types.JSONText `db:"payload" json:"payload,omitempty"`
	IPAddress  string         `db:"ip_address" json:"ipAddress"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}
