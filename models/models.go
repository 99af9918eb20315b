// Package models defines the data structures (structs) shared across the
// application. This package has no imports from other internal packages,
// making it the foundation of the dependency graph: db, orchestrator, and
// handlers all import from here, never the other way around.
package models

import "time"

// DeploymentStatus is the lifecycle state of a Deployment. Using a named
// string type instead of a plain string means the compiler rejects
// `deployment.Status = "typo"` wherever a DeploymentStatus is expected and
// the value isn't one of the declared constants.
type DeploymentStatus string

const (
	// StatusPending means the row exists and a task has been (or is about
	// to be) handed to the admission queue, but no worker has picked it up yet.
	StatusPending DeploymentStatus = "pending"

	// StatusDeploying means a worker owns this deployment and is actively
	// running it through the clone/plan/build/extract/supervise/proxy pipeline.
	StatusDeploying DeploymentStatus = "deploying"

	// StatusSuccess means the pipeline completed and the deployment is
	// reachable at DeploymentURL.
	StatusSuccess DeploymentStatus = "success"

	// StatusFailed means the pipeline aborted; ErrorMessage is populated.
	StatusFailed DeploymentStatus = "failed"
)

// validTransitions encodes the DAG: pending -> deploying -> (success | failed).
// No other edge is legal. Kept here, next to the type it governs, rather than
// in the db package, so any caller (not just SQL-backed ones) can consult it.
var validTransitions = map[DeploymentStatus]map[DeploymentStatus]bool{
	StatusPending:   {StatusDeploying: true},
	StatusDeploying: {StatusSuccess: true, StatusFailed: true},
	StatusSuccess:   {},
	StatusFailed:    {},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// in the Deployment status DAG.
func CanTransition(from, to DeploymentStatus) bool {
	return validTransitions[from][to]
}

// DockerfileSource records which Dockerfile strategy the Build Planner (C4)
// chose for a Deployment, and is never "unknown" once status = success.
type DockerfileSource string

const (
	// DockerfileUser means the repository's own root Dockerfile was used and
	// either a framework config declares standalone output or no framework
	// signature was detected at all.
	DockerfileUser DockerfileSource = "user"

	// DockerfileUserClassicAssumed means the repository's own root Dockerfile
	// was used and a Next.js signature was detected without a standalone
	// declaration, so the supervisor falls back to classic start.
	DockerfileUserClassicAssumed DockerfileSource = "user_classic_assumed"

	// DockerfileDefaultStandalone means a bundled default Dockerfile was used
	// because the Next.js framework config declared standalone output.
	DockerfileDefaultStandalone DockerfileSource = "default_standalone"

	// DockerfileDefaultClassic means a bundled default Dockerfile was used
	// because Next.js was detected but standalone output was not declared.
	DockerfileDefaultClassic DockerfileSource = "default_classic"

	// DockerfileUnknown is the zero value. A Deployment with status = success
	// must never carry this value (invariant 2 of the data model).
	DockerfileUnknown DockerfileSource = "unknown"
)

// BuildType is derived from DockerfileSource (see Build Planner rules) and
// decides how the App Supervisor (C7) starts the extracted artifact.
type BuildType string

const (
	BuildTypeStandalone BuildType = "standalone"
	BuildTypeClassic    BuildType = "classic"
)

// BuildTypeFor maps a DockerfileSource to the BuildType the supervisor uses
// to choose a start command, per Build Planner / State Machine rules:
// default_classic and user_classic_assumed -> classic, everything else ->
// standalone.
func BuildTypeFor(source DockerfileSource) BuildType {
	switch source {
	case DockerfileDefaultClassic, DockerfileUserClassicAssumed:
		return BuildTypeClassic
	default:
		return BuildTypeStandalone
	}
}

// Project is the stable identity of a user-owned repository target. It is
// created by the external façade (out of scope for this module) and is
// never mutated by the orchestrator; the orchestrator only reads it to
// start a Deployment.
type Project struct {
	ID         string    `json:"id" db:"id"`
	OwnerID    string    `json:"owner_id" db:"owner_id"`
	Name       string    `json:"name" db:"name"`
	GitRepoURL string    `json:"git_repo_url" db:"git_repo_url"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Deployment is one attempt to produce and expose a running instance of a
// Project. Pointer fields are optional data: a Deployment that has not yet
// reached `success` has no DeploymentURL, InternalPort, or BuildOutputPath,
// and Go gives no sentinel for "empty int"/"empty string" as convincing as
// a nil pointer.
type Deployment struct {
	ID        string `json:"id" db:"id"`
	ProjectID string `json:"project_id" db:"project_id"`

	Status DeploymentStatus `json:"status" db:"status"`

	// Version is the commit hash captured at clone time. Per the open
	// question in the design notes, this module DOES capture and persist
	// the real commit hash once the clone succeeds (see DESIGN.md); a
	// deployment that fails before or during the clone keeps "TBD".
	Version string `json:"version" db:"version"`

	DeploymentURL *string `json:"deployment_url,omitempty" db:"deployment_url"`

	InternalPort *int `json:"internal_port,omitempty" db:"internal_port"`

	BuildOutputPath *string `json:"build_output_path,omitempty" db:"build_output_path"`

	DockerfileUsed DockerfileSource `json:"dockerfile_used" db:"dockerfile_used"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	// LogFilePath is assigned once, before the row first leaves `pending`,
	// and is never changed afterward (invariant 5).
	LogFilePath string `json:"log_file_path" db:"log_file_path"`

	// Name is a display label copied from Project.Name at enqueue time, kept
	// only so a façade can render a deployment list without an extra join.
	Name string `json:"name" db:"name"`

	// AutoDeploy is read but never acted on by the orchestrator itself;
	// webhook-triggered redeploys are façade territory.
	AutoDeploy bool `json:"auto_deploy" db:"auto_deploy"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the deployment has reached success or failed
// and will never be mutated again.
func (d *Deployment) IsTerminal() bool {
	return d.Status == StatusSuccess || d.Status == StatusFailed
}

// IsActive reports whether the deployment currently occupies a
// DeploymentURL slot for uniqueness purposes (invariant 3): deploying or
// success.
func (d *Deployment) IsActive() bool {
	return d.Status == StatusDeploying || d.Status == StatusSuccess
}

// GitAccount holds ownership-bearing Git provider credentials. Managed
// externally (OAuth exchange is out of scope); the orchestrator reads
// AccessToken only at clone time, never writes this table.
type GitAccount struct {
	UserID         string `json:"user_id" db:"user_id"`
	Provider       string `json:"provider" db:"provider"`
	ProviderUserID string `json:"provider_user_id" db:"provider_user_id"`
	AccessToken    string `json:"-" db:"access_token"`
}

// User is read only to join GitAccount rows back to a human; the
// orchestrator never writes it. Listed in spec.md §6's table list but not
// in the §3 data model proper.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Domain and SslCertificate are inert: the schema carries them because
// spec.md §6 lists them as part of the persistent store, but SSL
// provisioning and custom domain management are explicit Non-goals, so no
// orchestrator code ever reads or writes these tables. They exist purely so
// the façade has somewhere to put rows.
type Domain struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Hostname  string    `json:"hostname" db:"hostname"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SslCertificate struct {
	ID        string    `json:"id" db:"id"`
	DomainID  string    `json:"domain_id" db:"domain_id"`
	IssuedAt  time.Time `json:"issued_at" db:"issued_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}
