package models

import "time"

// DocumentState captures the lifecycle of a document version.
type DocumentState string

const (
	DocumentStatePending  DocumentState = "pending"
	DocumentStateApproved DocumentState = "approved"
	DocumentStateRejected DocumentState = "rejected"
	DocumentStateExpired  DocumentState = "expired"
)

// Document is one version of a PDF routed for approval. Versions of the same lineage share RootID.
type Document struct {
	ID                    string        `db:"id" json:"id"`
	Name                  string        `db:"name" json:"name"`
	Description           string        `db:"description" json:"description"`
	Version               int           `db:"version" json:"version"`
	ParentID              *string       `db:"parent_id" json:"parentId,omitempty"`
	RootID                string        `db:"root_id" json:"rootId"`
	CreatorID             int64         `db:"creator_id" json:"creatorId"`
	CreatorEmail          string        `db:"creator_email" json:"creatorEmail"`
	CreatorName           string        `db:"creator_name" json:"creatorName"`
	AccessToken           string        `db:"access_token" json:"-"`
	State                 DocumentState `db:"state" json:"state"`
	LimitHours            *int          `db:"limit_hours" json:"limitHours,omitempty"`
	DeadlineAt            *time.Time    `db:"deadline_at" json:"deadlineAt,omitempty"`
	ReminderIntervalHours *int          `db:"reminder_interval_hours" json:"reminderIntervalHours,omitempty"`
	LastReminderAt        *time.Time    `db:"last_reminder_at" json:"lastReminderAt,omitempty"`
	FinalizedAt           *time.Time    `db:"finalized_at" json:"finalizedAt,omitempty"`
	FilePath              string        `db:"file_path" json:"-"`
	FileName              string        `db:"file_name" json:"fileName"`
	CreatedAt             time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updatedAt"`
}

// IsCreator reports whether userID created the document.
func (d *Document) IsCreator(userID int64) bool {
	return d != nil && userID > 0 && d.CreatorID == userID
}

// DocumentUpdate carries editable metadata. Nil fields are left untouched.
type DocumentUpdate struct {
	Name                  *string
	Description           *string
	ReminderIntervalHours *int
}
