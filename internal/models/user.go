// Package models defines domain models for Pontual.
package models

import (
	"time"
)

// User represents an account holder. Authorization is never derived from the
// user itself; roles live on organization memberships.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates a new User with initialized timestamps.
func NewUser(email, fullName string) *User {
	now := time.Now()
	return &User{
		Email:     email,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
