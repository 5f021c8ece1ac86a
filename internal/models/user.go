package models

// User is a read-only view of the identity provider's users table.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"fullName"`
	Active   bool   `db:"active" json:"active"`
}
