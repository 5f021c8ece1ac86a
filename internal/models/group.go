package models

import "time"

// Group is a mail alias whose active members may act on group-bound slots.
type Group struct {
	Alias       string    `db:"alias" json:"alias" yaml:"alias"`
	DisplayName string    `db:"display_name" json:"displayName" yaml:"display_name"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt" yaml:"-"`
}

// GroupMember is a person that may sign on behalf of an alias.
type GroupMember struct {
	ID          string    `db:"id" json:"id"`
	Alias       string    `db:"alias" json:"alias"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Email       *string   `db:"email" json:"email,omitempty"`
	PersonnelID *string   `db:"personnel_id" json:"personnelId,omitempty"`
	UserID      *int64    `db:"user_id" json:"userId,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// GroupIdentity carries the identifiers a caller can match group members by.
type GroupIdentity struct {
	Email       string
	PersonnelID string
	UserID      int64
}
