package model

import "time"

// User represents an application user record as stored in the `users`
// table.  PasswordHash never leaves the process: it is excluded from JSON so
// a User can be returned from handlers directly.
//
// Fields:
//  ID           – UUID primary key.
//  Username     – unique login name.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hash of the password.
//  IsActive     – inactive users cannot authenticate or use tokens.
//  IsVerified   – email verification flag, informational only.
//  LastLogin    – time of the last successful authentication, nil if never.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	IsActive     bool       `json:"is_active"`
	IsVerified   bool       `json:"is_verified"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
