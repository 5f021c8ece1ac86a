package models

import "time"

// NotificationKind identifies the purpose of an outbound notice.
type NotificationKind string

const (
	NotificationApprovalRequest NotificationKind = "solicitud_aprobacion"
	NotificationReminder        NotificationKind = "reminder"
	NotificationCompleted       NotificationKind = "aprobacion_completa"
	NotificationRejected        NotificationKind = "rechazo"
	NotificationExpired         NotificationKind = "expiracion"
	NotificationNewVersion      NotificationKind = "nueva_version"
)

// ReceiptKey identifies a notification for deduplication.
type ReceiptKey struct {
	Recipient  string           `db:"recipient"`
	DocumentID string           `db:"document_id"`
	Kind       NotificationKind `db:"kind"`
	SlotToken  string           `db:"slot_token"`
}

// Normalized returns the key with the recipient trimmed and lower-cased.
func (k ReceiptKey) Normalized() ReceiptKey {
	k.Recipient = NormalizeEmail(k.Recipient)
	return k
}

// NotificationReceipt records that a notice was reserved for sending.
type NotificationReceipt struct {
	ReceiptKey
	CreatedAt time.Time `db:"created_at"`
}
