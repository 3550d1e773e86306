// ABOUTME: Project store methods for construction project CRUD
// ABOUTME: Projects are owned by a principal via its external identity key

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const projectColumns = `id, owner_key, title, description, location, status, floor_plan_url, created_at, updated_at`

// CreateProject creates a new project. Generates ID and timestamps if not set.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = ProjectStatusPlanning
	}

	query := `
		INSERT INTO projects (id, owner_key, title, description, location, status, floor_plan_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.OwnerKey,
		p.Title,
		p.Description,
		p.Location,
		p.Status,
		p.FloorPlanURL,
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}

	s.logger.Info("created project", "id", p.ID, "owner", p.OwnerKey)
	return nil
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}
	return p, nil
}

// ListProjects returns projects newest first. An empty ownerKey lists all
// projects (admin view); otherwise only the owner's projects are returned.
func (s *SQLiteStore) ListProjects(ctx context.Context, ownerKey string, limit int) ([]*Project, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC LIMIT ?`
	args := []any{limit}
	if ownerKey != "" {
		query = `SELECT ` + projectColumns + ` FROM projects WHERE owner_key = ? ORDER BY created_at DESC LIMIT ?`
		args = []any{ownerKey, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}

	return projects, nil
}

// UpdateProject updates a project's mutable fields.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE projects
		SET title = ?, description = ?, location = ?, status = ?, floor_plan_url = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		p.Title,
		p.Description,
		p.Location,
		p.Status,
		p.FloorPlanURL,
		p.UpdatedAt.UTC().Format(time.RFC3339),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteProject deletes a project by ID.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("deleted project", "id", id)
	return nil
}

// scanProject scans a row into a Project.
func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var p Project
	var description, location, floorPlanURL sql.NullString
	var createdAtStr, updatedAtStr string

	if err := scanner.Scan(
		&p.ID,
		&p.OwnerKey,
		&p.Title,
		&description,
		&location,
		&p.Status,
		&floorPlanURL,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}

	p.Description = description.String
	p.Location = location.String
	p.FloorPlanURL = floorPlanURL.String

	var err error
	p.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &p, nil
}
