package db

// deployments.go contains all SQL query functions for the deployments
// table. Each function is a method on *Database. Raw SQL is used
// intentionally: it keeps the query layer explicit, avoids ORM magic, and
// makes every statement readable and auditable without knowing a library's
// internal conventions.

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

// ErrRecordNotFound is returned when no row matches the given ID. Callers
// check for this sentinel to distinguish "not found" from a real database
// error.
var ErrRecordNotFound = errors.New("deployment not found")

// ErrIllegalTransition names a transition that does not exist in the
// Deployment status DAG (spec.md §3 invariant 1). The status-mutating
// methods below do not return it: a row that is not in the required source
// status matches no row and is reported as ErrRecordNotFound.
var ErrIllegalTransition = errors.New("illegal deployment status transition")

// InsertDeployment writes a new deployment row in status `pending`. The
// caller supplies ID, ProjectID, Name, and AutoDeploy; every other field
// starts at its zero value (DockerfileUsed = unknown, Version = "TBD").
func (database *Database) InsertDeployment(deployment *models.Deployment) error {
	query := `
		INSERT INTO deployments (
			id, project_id, status, version,
			dockerfile_used, log_file_path, name, auto_deploy,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	timeNow := time.Now().UTC()
	deployment.Status = models.StatusPending
	if deployment.Version == "" {
		deployment.Version = "TBD"
	}
	if deployment.DockerfileUsed == "" {
		deployment.DockerfileUsed = models.DockerfileUnknown
	}
	deployment.CreatedAt = timeNow
	deployment.UpdatedAt = timeNow

	_, err := database.connection.Exec(query,
		deployment.ID,
		deployment.ProjectID,
		deployment.Status,
		deployment.Version,
		deployment.DockerfileUsed,
		deployment.LogFilePath,
		deployment.Name,
		deployment.AutoDeploy,
		deployment.CreatedAt,
		deployment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deployment %q: %w", deployment.ID, err)
	}
	return nil
}

const deploymentColumns = `
	id, project_id, status, version, deployment_url, internal_port,
	build_output_path, dockerfile_used, error_message, log_file_path,
	name, auto_deploy, created_at, updated_at
`

// GetDeployment fetches a single deployment row by ID.
func (database *Database) GetDeployment(id string) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = ?`

	row := database.connection.QueryRow(query, id)
	deployment, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment %q: %w", id, err)
	}
	return deployment, nil
}

// ListDeployments returns all deployment rows, newest first.
func (database *Database) ListDeployments() ([]*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments ORDER BY created_at DESC`

	rows, err := database.connection.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*models.Deployment
	for rows.Next() {
		deployment, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment row: %w", err)
		}
		deployments = append(deployments, deployment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployment rows: %w", err)
	}

	return deployments, nil
}

// ListActiveDeploymentURLs returns the set of non-null deployment_url values
// for rows whose status is `deploying` or `success`. The URL Minter (C9)
// uses this to enforce invariant 3: deploymentUrl is unique among active
// deployments.
func (database *Database) ListActiveDeploymentURLs() (map[string]bool, error) {
	query := `
		SELECT deployment_url FROM deployments
		WHERE status IN (?, ?) AND deployment_url IS NOT NULL
	`
	rows, err := database.connection.Query(query, models.StatusDeploying, models.StatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("failed to list active deployment urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan deployment url: %w", err)
		}
		urls[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployment url rows: %w", err)
	}
	return urls, nil
}

// TransitionToDeploying moves a deployment from pending to deploying and
// assigns its logFilePath in the same statement, satisfying invariant 5
// (logFilePath is assigned before the row first leaves pending and never
// changes after). The WHERE clause only matches rows currently in pending,
// so a concurrent double-dispatch is caught via RowsAffected == 0 rather
// than silently clobbering state.
func (database *Database) TransitionToDeploying(id string, logFilePath string) error {
	query := `
		UPDATE deployments
		SET status = ?, log_file_path = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := database.connection.Exec(query,
		models.StatusDeploying, logFilePath, time.Now().UTC(), id, models.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to transition deployment %q to deploying: %w", id, err)
	}
	return requireRowAffected(result, id)
}

// MarkSuccess transitions a deployment from deploying to success and writes
// the fields invariant 2 requires to be non-empty at that point.
func (database *Database) MarkSuccess(id string, deploymentURL string, internalPort int, buildOutputPath string, dockerfileUsed models.DockerfileSource, version string) error {
	query := `
		UPDATE deployments
		SET status = ?, deployment_url = ?, internal_port = ?,
		    build_output_path = ?, dockerfile_used = ?, version = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := database.connection.Exec(query,
		models.StatusSuccess, deploymentURL, internalPort, buildOutputPath,
		dockerfileUsed, version, time.Now().UTC(), id, models.StatusDeploying,
	)
	if err != nil {
		return fmt.Errorf("failed to mark deployment %q success: %w", id, err)
	}
	return requireRowAffected(result, id)
}

// MarkFailed transitions a deployment from deploying to failed and records
// the (caller-truncated) error message and dockerfile_used. It does not
// write deployment_url or internal_port, even when the failing step ran
// after they were known.
func (database *Database) MarkFailed(id string, errorMessage string, dockerfileUsed models.DockerfileSource) error {
	query := `
		UPDATE deployments
		SET status = ?, error_message = ?, dockerfile_used = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := database.connection.Exec(query,
		models.StatusFailed, errorMessage, dockerfileUsed, time.Now().UTC(), id, models.StatusDeploying,
	)
	if err != nil {
		return fmt.Errorf("failed to mark deployment %q failed: %w", id, err)
	}
	return requireRowAffected(result, id)
}

// UpdateVersion records the commit hash captured at clone time. Per the
// design-note open question, this module does persist the real commit
// hash rather than leaving Version at the literal "TBD" (see DESIGN.md).
func (database *Database) UpdateVersion(id string, version string) error {
	query := `UPDATE deployments SET version = ?, updated_at = ? WHERE id = ?`
	result, err := database.connection.Exec(query, version, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update version for deployment %q: %w", id, err)
	}
	return requireRowAffected(result, id)
}

// DeleteDeployment removes a deployment row by ID. The caller is
// responsible for tearing down the supervised process, proxy config, and
// on-disk artifacts first.
func (database *Database) DeleteDeployment(id string) error {
	query := `DELETE FROM deployments WHERE id = ?`
	result, err := database.connection.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete deployment %q: %w", id, err)
	}
	return requireRowAffected(result, id)
}

func requireRowAffected(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for deployment %q: %w", id, err)
	}
	if rowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows, letting scanDeployment
// serve both QueryRow and Query call sites without duplicating scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row scanner) (*models.Deployment, error) {
	var deployment models.Deployment
	err := row.Scan(
		&deployment.ID,
		&deployment.ProjectID,
		&deployment.Status,
		&deployment.Version,
		&deployment.DeploymentURL,
		&deployment.InternalPort,
		&deployment.BuildOutputPath,
		&deployment.DockerfileUsed,
		&deployment.ErrorMessage,
		&deployment.LogFilePath,
		&deployment.Name,
		&deployment.AutoDeploy,
		&deployment.CreatedAt,
		&deployment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}
