package models

import (
	"time"
)

// Role represents a member's permission level within an organization.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Organization is the top-level tenant. It owns projects and memberships.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrganization creates a new Organization with initialized timestamps.
func NewOrganization(name, createdBy string) *Organization {
	now := time.Now()
	return &Organization{
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Member represents a user's membership in an organization. The
// (organization, user) pair is unique; the role is the sole authorization
// signal for everything inside the organization.
type Member struct {
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// MemberDetail is a membership joined with the member's profile fields.
type MemberDetail struct {
	Member
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// ParseRole converts a string to Role. Unknown values map to the least
// privileged role.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	case "manager":
		return RoleManager
	default:
		return RoleUser
	}
}

// ValidRole reports whether s names one of the three roles.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}
