package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ponto-labs/pontual/internal/models"
)

type sqliteOrganizationRepo struct {
	db *sql.DB
}

// Create inserts the organization and its creator's admin membership in one
// transaction so an organization can never exist without an admin.
func (r *sqliteOrganizationRepo) Create(ctx context.Context, org *models.Organization) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, org.ID, org.Name, org.CreatedBy, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
	`, org.ID, org.CreatedBy, models.RoleAdmin, org.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert creator membership: %w", err)
	}

	return tx.Commit()
}

func (r *sqliteOrganizationRepo) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, created_by, created_at, updated_at
		FROM organizations WHERE id = ?
	`
	org := &models.Organization{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

func (r *sqliteOrganizationRepo) Update(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx,
		"UPDATE organizations SET name = ?, updated_at = ? WHERE id = ?",
		org.Name, org.UpdatedAt, org.ID,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteOrganizationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM organizations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteOrganizationRepo) ListForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.created_by, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = ?
		ORDER BY o.name
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list organizations for user: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(
			&org.ID, &org.Name, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (r *sqliteOrganizationRepo) List(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT id, name, created_by, created_at, updated_at
		FROM organizations
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(
			&org.ID, &org.Name, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (r *sqliteOrganizationRepo) AddMember(ctx context.Context, member *models.Member) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
	`, member.OrganizationID, member.UserID, member.Role, member.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMember
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *sqliteOrganizationRepo) RemoveMember(ctx context.Context, organizationID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM organization_members WHERE organization_id = ? AND user_id = ?",
		organizationID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteOrganizationRepo) UpdateMemberRole(ctx context.Context, organizationID, userID string, role models.Role) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE organization_members SET role = ? WHERE organization_id = ? AND user_id = ?",
		role, organizationID, userID,
	)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteOrganizationRepo) GetMember(ctx context.Context, organizationID, userID string) (*models.Member, error) {
	query := `
		SELECT organization_id, user_id, role, created_at
		FROM organization_members
		WHERE organization_id = ? AND user_id = ?
	`
	member := &models.Member{}
	err := r.db.QueryRowContext(ctx, query, organizationID, userID).Scan(
		&member.OrganizationID, &member.UserID, &member.Role, &member.CreatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

func (r *sqliteOrganizationRepo) ListMembers(ctx context.Context, organizationID string) ([]*models.MemberDetail, error) {
	query := `
		SELECT m.organization_id, m.user_id, m.role, m.created_at,
		       u.email, u.full_name
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = ?
		ORDER BY m.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*models.MemberDetail
	for rows.Next() {
		member := &models.MemberDetail{}
		var fullName sql.NullString
		if err := rows.Scan(
			&member.OrganizationID, &member.UserID, &member.Role, &member.CreatedAt,
			&member.Email, &fullName,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		member.FullName = fullName.String
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *sqliteOrganizationRepo) CountAdmins(ctx context.Context, organizationID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM organization_members WHERE organization_id = ? AND role = ?",
		organizationID, models.RoleAdmin,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}
