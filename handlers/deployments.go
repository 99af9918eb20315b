package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/db"
	"github.com/sasta-kro/corvus-paas/corvus-control-plane/models"
)

// DeploymentHandler serves the operator HTTP surface's read-only view of
// deployment state. It never creates, mutates, or deletes a deployment:
// that is the external façade's job, dispatched into this module via the
// admission queue rather than through this HTTP surface. See spec.md §1's
// out-of-scope list.
type DeploymentHandler struct {
	database *db.Database
	logger   *slog.Logger
}

// NewDeploymentHandler constructs a DeploymentHandler.
func NewDeploymentHandler(database *db.Database, logger *slog.Logger) *DeploymentHandler {
	return &DeploymentHandler{database: database, logger: logger}
}

// ListDeployments handles GET /api/deployments.
func (handler *DeploymentHandler) ListDeployments(responseWriter http.ResponseWriter, request *http.Request) {
	deployments, err := handler.database.ListDeployments()
	if err != nil {
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to list deployments", handler.logger)
		return
	}
	writeJsonAndRespond(responseWriter, http.StatusOK, deployments)
}

// GetDeployment handles GET /api/deployments/{id}.
func (handler *DeploymentHandler) GetDeployment(responseWriter http.ResponseWriter, request *http.Request) {
	id := chi.URLParam(request, "id")

	deployment, err := handler.database.GetDeployment(id)
	if errors.Is(err, db.ErrRecordNotFound) {
		writeErrorJsonAndLogIt(responseWriter, http.StatusNotFound, "deployment not found", handler.logger)
		return
	}
	if err != nil {
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to get deployment", handler.logger)
		return
	}
	writeJsonAndRespond(responseWriter, http.StatusOK, deployment)
}

// deploymentStatusCounts is a small convenience view for an operator
// dashboard: how many deployments currently sit in each status.
type deploymentStatusCounts struct {
	Pending   int `json:"pending"`
	Deploying int `json:"deploying"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
}

// Summary handles GET /api/deployments/summary.
func (handler *DeploymentHandler) Summary(responseWriter http.ResponseWriter, request *http.Request) {
	deployments, err := handler.database.ListDeployments()
	if err != nil {
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to summarize deployments", handler.logger)
		return
	}

	var counts deploymentStatusCounts
	for _, d := range deployments {
		switch d.Status {
		case models.StatusPending:
			counts.Pending++
		case models.StatusDeploying:
			counts.Deploying++
		case models.StatusSuccess:
			counts.Success++
		case models.StatusFailed:
			counts.Failed++
		}
	}
	writeJsonAndRespond(responseWriter, http.StatusOK, counts)
}
