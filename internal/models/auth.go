package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the payload of access tokens issued by the identity provider.
type JWTClaims struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	PersonnelID string `json:"personnel_id,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Caller is the verified identity acting on a request.
type Caller struct {
	UserID      int64
	Email       string
	FullName    string
	PersonnelID string
	IsAdmin     bool
	IP          string
}

// Caller converts claims to the identity passed to services.
func (c *JWTClaims) Caller() *Caller {
	if c == nil {
		return nil
	}
	return &Caller{
		UserID:      c.UserID,
		Email:       NormalizeEmail(c.Email),
		FullName:    strings.TrimSpace(c.FullName),
		PersonnelID: strings.TrimSpace(c.PersonnelID),
		IsAdmin:     c.IsAdmin,
	}
}

// DisplayName returns the best human name for the caller.
func (c *Caller) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.FullName != "" {
		return c.FullName
	}
	return c.Email
}

// GroupIdentity returns the identifiers used to match group membership.
func (c *Caller) GroupIdentity() GroupIdentity {
	return GroupIdentity{Email: c.Email, PersonnelID: c.PersonnelID, UserID: c.UserID}
}
