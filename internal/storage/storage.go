// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ponto-labs/pontual/internal/models"
)

// Sentinel errors surfaced to services. Constraint violations are mapped
// here so callers never see driver error codes.
var (
	// ErrNotFound reports a mutation against a missing row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail reports a user create/update colliding on email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateMember reports an insert for an existing (organization,
	// user) membership pair.
	ErrDuplicateMember = errors.New("user is already a member of the organization")
	// ErrActiveTimerExists reports an open-entry insert for a user who
	// already has one. Backed by a partial unique index, so concurrent
	// inserts cannot both succeed.
	ErrActiveTimerExists = errors.New("an active timer already exists for this user")
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Users() UserRepository
	Organizations() OrganizationRepository
	Projects() ProjectRepository
	Entries() EntryRepository
	Tokens() TokenRepository
}

// UserRepository defines operations for account management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// OrganizationRepository defines operations for tenants and memberships.
type OrganizationRepository interface {
	// Create inserts the organization and its creator's admin membership
	// in one transaction.
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string) ([]*models.Organization, error)
	// List returns every organization. Intended for administrative tooling.
	List(ctx context.Context) ([]*models.Organization, error)

	AddMember(ctx context.Context, member *models.Member) error
	RemoveMember(ctx context.Context, organizationID, userID string) error
	UpdateMemberRole(ctx context.Context, organizationID, userID string, role models.Role) error
	// GetMember returns nil when the user has no membership row; callers
	// must treat that as zero capabilities.
	GetMember(ctx context.Context, organizationID, userID string) (*models.Member, error)
	ListMembers(ctx context.Context, organizationID string) ([]*models.MemberDetail, error)
	CountAdmins(ctx context.Context, organizationID string) (int64, error)
}

// ProjectRepository defines operations for project management.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	ListByOrganization(ctx context.Context, organizationID string, activeOnly bool) ([]*models.Project, error)
	SetFinished(ctx context.Context, id string, finished bool) error
}

// EntryRepository defines operations for time entries.
type EntryRepository interface {
	// Create inserts an entry. Inserting an open entry (nil EndedAt) for
	// a user who already has one returns ErrActiveTimerExists.
	Create(ctx context.Context, entry *models.TimeEntry) error
	GetByID(ctx context.Context, id string) (*models.TimeEntry, error)
	Update(ctx context.Context, entry *models.TimeEntry) error
	Delete(ctx context.Context, id string) error
	// GetActive returns the user's open entry, or nil when idle.
	GetActive(ctx context.Context, userID string) (*models.TimeEntry, error)
	// List returns entries with project/organization/user context joined,
	// newest first. Filter zero values are ignored.
	List(ctx context.Context, filter models.EntryFilter) ([]models.TimeEntryDetail, error)
}

// TokenRepository defines operations for refresh token management.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// nullableTime converts a *time.Time for DB writes.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
