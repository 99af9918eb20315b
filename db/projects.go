package db

// projects.go contains the read paths the orchestrator needs against the
// projects table. Project rows are created by the external façade; this
// package never writes one, except InsertProject which corvusctl uses for
// local/demo operation when there is no façade running.

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

// ErrProjectNotFound is returned when no project row matches the given ID.
var ErrProjectNotFound = errors.New("project not found")

// GetProject fetches a single project row by ID.
func (database *Database) GetProject(id string) (*models.Project, error) {
	query := `SELECT id, owner_id, name, git_repo_url, created_at FROM projects WHERE id = ?`

	var project models.Project
	err := database.connection.QueryRow(query, id).Scan(
		&project.ID,
		&project.OwnerID,
		&project.Name,
		&project.GitRepoURL,
		&project.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %q: %w", id, err)
	}
	return &project, nil
}

// ListProjects returns every project row, newest first.
func (database *Database) ListProjects() ([]*models.Project, error) {
	query := `SELECT id, owner_id, name, git_repo_url, created_at FROM projects ORDER BY created_at DESC`

	rows, err := database.connection.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(&project.ID, &project.OwnerID, &project.Name, &project.GitRepoURL, &project.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, &project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}

// InsertProject writes a new project row. Used by corvusctl's "project
// create" subcommand for operating this module without a façade in front
// of it; the real deployment platform owns this table in production.
func (database *Database) InsertProject(project *models.Project) error {
	query := `
		INSERT INTO projects (id, owner_id, name, git_repo_url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	_, err := database.connection.Exec(query, project.ID, project.OwnerID, project.Name, project.GitRepoURL, project.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project %q: %w", project.ID, err)
	}
	return nil
}
