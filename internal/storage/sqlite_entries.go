package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ponto-labs/pontual/internal/models"
)

type sqliteEntryRepo struct {
	db *sql.DB
}

func (r *sqliteEntryRepo) Create(ctx context.Context, entry *models.TimeEntry) error {
	query := `
		INSERT INTO time_entries (id, user_id, project_id, started_at, ended_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.ProjectID, entry.StartedAt,
		nullableTime(entry.EndedAt), entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		// The partial unique index only covers open entries, so a unique
		// violation here means a running timer already exists.
		if entry.EndedAt == nil && isUniqueViolation(err) {
			return ErrActiveTimerExists
		}
		return fmt.Errorf("insert time entry: %w", err)
	}
	return nil
}

func (r *sqliteEntryRepo) GetByID(ctx context.Context, id string) (*models.TimeEntry, error) {
	query := `
		SELECT id, user_id, project_id, started_at, ended_at, created_at, updated_at
		FROM time_entries WHERE id = ?
	`
	return r.getOne(ctx, query, id)
}

func (r *sqliteEntryRepo) GetActive(ctx context.Context, userID string) (*models.TimeEntry, error) {
	query := `
		SELECT id, user_id, project_id, started_at, ended_at, created_at, updated_at
		FROM time_entries WHERE user_id = ? AND ended_at IS NULL
	`
	return r.getOne(ctx, query, userID)
}

func (r *sqliteEntryRepo) getOne(ctx context.Context, query, arg string) (*models.TimeEntry, error) {
	entry := &models.TimeEntry{}
	var endedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&entry.ID, &entry.UserID, &entry.ProjectID, &entry.StartedAt,
		&endedAt, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time entry: %w", err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		entry.EndedAt = &t
	}
	return entry, nil
}

func (r *sqliteEntryRepo) Update(ctx context.Context, entry *models.TimeEntry) error {
	entry.UpdatedAt = time.Now()
	query := `
		UPDATE time_entries SET project_id = ?, started_at = ?, ended_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		entry.ProjectID, entry.StartedAt, nullableTime(entry.EndedAt),
		entry.UpdatedAt, entry.ID,
	)
	if err != nil {
		if entry.EndedAt == nil && isUniqueViolation(err) {
			return ErrActiveTimerExists
		}
		return fmt.Errorf("update time entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteEntryRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM time_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteEntryRepo) List(ctx context.Context, filter models.EntryFilter) ([]models.TimeEntryDetail, error) {
	query := `
		SELECT e.id, e.user_id, e.project_id, e.started_at, e.ended_at,
		       e.created_at, e.updated_at,
		       p.name, p.is_finished,
		       o.id, o.name,
		       u.email, u.full_name
		FROM time_entries e
		JOIN projects p ON p.id = e.project_id
		JOIN organizations o ON o.id = p.organization_id
		JOIN users u ON u.id = e.user_id
		WHERE 1=1
	`
	var args []any
	if filter.UserID != "" {
		query += " AND e.user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.ProjectID != "" {
		query += " AND e.project_id = ?"
		args = append(args, filter.ProjectID)
	}
	if filter.OrganizationID != "" {
		query += " AND p.organization_id = ?"
		args = append(args, filter.OrganizationID)
	}
	if !filter.From.IsZero() {
		query += " AND e.started_at >= ?"
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		query += " AND e.started_at < ?"
		args = append(args, filter.To)
	}
	query += " ORDER BY e.started_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var entries []models.TimeEntryDetail
	for rows.Next() {
		var detail models.TimeEntryDetail
		var endedAt sql.NullTime
		var fullName sql.NullString
		if err := rows.Scan(
			&detail.ID, &detail.UserID, &detail.ProjectID, &detail.StartedAt,
			&endedAt, &detail.CreatedAt, &detail.UpdatedAt,
			&detail.ProjectName, &detail.ProjectFinished,
			&detail.OrganizationID, &detail.OrganizationName,
			&detail.UserEmail, &fullName,
		); err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			detail.EndedAt = &t
		}
		detail.UserFullName = fullName.String
		entries = append(entries, detail)
	}
	return entries, rows.Err()
}
