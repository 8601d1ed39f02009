package models

import (
	"time"
)

// Project is a unit of work within an organization. A finished project no
// longer accepts new time entries; existing entries stay intact.
type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	IsFinished     bool      `json:"is_finished"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewProject creates a new Project with initialized timestamps.
func NewProject(organizationID, name string) *Project {
	now := time.Now()
	return &Project{
		OrganizationID: organizationID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
