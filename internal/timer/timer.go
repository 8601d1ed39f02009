// Package timer implements the live timer: at most one running entry per
// user, started against an unfinished project and closed into a regular
// time entry.
package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/storage"
)

var (
	// ErrProjectNotFound reports a start against an unknown project.
	ErrProjectNotFound = errors.New("project not found")
	// ErrProjectFinished reports a start against a finished project.
	ErrProjectFinished = errors.New("project is finished")
	// ErrAlreadyRunning reports a start while a timer is already running.
	ErrAlreadyRunning = errors.New("a timer is already running")
	// ErrNotRunning reports a stop with no running timer.
	ErrNotRunning = errors.New("no timer is running")
)

// Controller starts and stops timers. The one-running-timer-per-user rule is
// enforced by the storage layer, so concurrent starts cannot both succeed.
type Controller struct {
	projects storage.ProjectRepository
	entries  storage.EntryRepository

	now func() time.Time
}

// NewController creates a timer controller.
func NewController(projects storage.ProjectRepository, entries storage.EntryRepository) *Controller {
	return &Controller{
		projects: projects,
		entries:  entries,
		now:      time.Now,
	}
}

// Start opens a timer for the user on the project. The entry's start instant
// is the current server time in UTC.
func (c *Controller) Start(ctx context.Context, userID, projectID string) (*models.TimeEntry, error) {
	project, err := c.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	if project.IsFinished {
		return nil, ErrProjectFinished
	}

	now := c.now().UTC()
	entry := &models.TimeEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProjectID: projectID,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.entries.Create(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrActiveTimerExists) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("create timer entry: %w", err)
	}
	return entry, nil
}

// Stop closes the user's running timer and returns the finished entry.
func (c *Controller) Stop(ctx context.Context, userID string) (*models.TimeEntry, error) {
	entry, err := c.entries.GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load active timer: %w", err)
	}
	if entry == nil {
		return nil, ErrNotRunning
	}

	now := c.now().UTC()
	entry.EndedAt = &now
	if err := c.entries.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("close timer entry: %w", err)
	}
	return entry, nil
}

// Active returns the user's running timer, or nil when idle.
func (c *Controller) Active(ctx context.Context, userID string) (*models.TimeEntry, error) {
	entry, err := c.entries.GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load active timer: %w", err)
	}
	return entry, nil
}
