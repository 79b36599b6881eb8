// Package model defines the data structures used throughout the application.
package model

import "time"

// User roles. Stored as plain strings in the role column; RoleAdmin unlocks
// the moderation endpoints.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account.
//
// Identity can come from two places: direct registration (email + bcrypt
// password hash) or an OAuth provider. GoogleID and MicrosoftID hold the
// provider's opaque subject identifier; each is unique across users when set,
// so one external account maps to exactly one row. A user who signs in with a
// second provider that resolves to the same email gets that provider ID linked
// onto the existing row rather than a duplicate account.
//
// PasswordHash is the bcrypt hash for directly-registered users and empty for
// OAuth-only accounts. It is never serialized to JSON.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Email        string    `json:"email"        db:"email"`
	FirstName    string    `json:"firstName"    db:"first_name"`
	LastName     string    `json:"lastName"     db:"last_name"`
	PasswordHash string    `json:"-"            db:"password_hash"`
	Role         string    `json:"role"         db:"role"`
	GoogleID     string    `json:"-"            db:"google_id"`    // Google OAuth subject (empty if unlinked)
	MicrosoftID  string    `json:"-"            db:"microsoft_id"` // Microsoft OAuth subject (empty if unlinked)
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"    db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
