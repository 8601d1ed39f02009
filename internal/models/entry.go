package models

import (
	"errors"
	"time"
)

// Validation errors for time entries.
var (
	ErrMissingUser    = errors.New("user_id is required")
	ErrMissingProject = errors.New("project_id is required")
	ErrMissingStart   = errors.New("started_at is required")
	ErrEndBeforeStart = errors.New("ended_at must be strictly after started_at")
)

// TimeEntry is a (possibly open) interval of logged work by one user on one
// project. A nil EndedAt means the entry is a running timer; at most one
// running entry may exist per user, enforced at the storage layer.
type TimeEntry struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	ProjectID string     `json:"project_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewTimeEntry creates a closed manual entry. Open entries are created by the
// timer service only.
func NewTimeEntry(userID, projectID string, startedAt, endedAt time.Time) *TimeEntry {
	now := time.Now()
	return &TimeEntry{
		UserID:    userID,
		ProjectID: projectID,
		StartedAt: startedAt,
		EndedAt:   &endedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsRunning reports whether the entry is an open timer.
func (e *TimeEntry) IsRunning() bool {
	return e.EndedAt == nil
}

// Validate checks the entry invariants. Zero or negative durations are
// rejected; open entries only need a start instant.
func (e *TimeEntry) Validate() error {
	if e.UserID == "" {
		return ErrMissingUser
	}
	if e.ProjectID == "" {
		return ErrMissingProject
	}
	if e.StartedAt.IsZero() {
		return ErrMissingStart
	}
	if e.EndedAt != nil && !e.EndedAt.After(e.StartedAt) {
		return ErrEndBeforeStart
	}
	return nil
}

// TimeEntryDetail is a time entry joined with its project and organization
// context, the shape the aggregation engine consumes.
type TimeEntryDetail struct {
	TimeEntry
	ProjectName      string `json:"project_name"`
	ProjectFinished  bool   `json:"project_finished"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	UserEmail        string `json:"user_email"`
	UserFullName     string `json:"user_full_name,omitempty"`
}

// EntryFilter narrows time entry queries. Zero values mean "no constraint".
// From/To bound started_at as a half-open interval [From, To).
type EntryFilter struct {
	UserID         string
	ProjectID      string
	OrganizationID string
	From           time.Time
	To             time.Time
}
