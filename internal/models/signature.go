package models

import "time"

// Signature is an append-only record of a slot approval.
type Signature struct {
	ID             string    `db:"id" json:"id"`
	DocumentID     string    `db:"document_id" json:"documentId"`
	SlotID         string    `db:"slot_id" json:"slotId"`
	SignerUserID   *int64    `db:"signer_user_id" json:"signerUserId,omitempty"`
	SignerMemberID *string   `db:"signer_member_id" json:"signerMemberId,omitempty"`
	SignerName     string    `db:"signer_name" json:"signerName"`
	SignedAt       time.Time `db:"signed_at" json:"signedAt"`
	IPAddress      string    `db:"ip_address" json:"ipAddress"`
}
