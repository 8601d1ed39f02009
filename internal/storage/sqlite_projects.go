package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ponto-labs/pontual/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (id, organization_id, name, is_finished, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.OrganizationID, project.Name, project.IsFinished,
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, organization_id, name, is_finished, created_at, updated_at
		FROM projects WHERE id = ?
	`
	project := &models.Project{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.OrganizationID, &project.Name, &project.IsFinished,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

func (r *sqliteProjectRepo) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, is_finished = ?, updated_at = ? WHERE id = ?",
		project.Name, project.IsFinished, project.UpdatedAt, project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteProjectRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteProjectRepo) ListByOrganization(ctx context.Context, organizationID string, activeOnly bool) ([]*models.Project, error) {
	query := `
		SELECT id, organization_id, name, is_finished, created_at, updated_at
		FROM projects WHERE organization_id = ?
	`
	if activeOnly {
		query += " AND is_finished = 0"
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project := &models.Project{}
		if err := rows.Scan(
			&project.ID, &project.OrganizationID, &project.Name, &project.IsFinished,
			&project.CreatedAt, &project.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) SetFinished(ctx context.Context, id string, finished bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE projects SET is_finished = ?, updated_at = ? WHERE id = ?",
		finished, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("set project finished: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
