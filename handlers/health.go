package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/db"
)

// HealthHandler backs GET /healthz with a real readiness signal: the
// process is alive AND its SQLite connection, which every other handler
// and the admission queue's orchestrator depend on, can still be reached.
type HealthHandler struct {
	database *db.Database
	logger   *slog.Logger
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(database *db.Database, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{database: database, logger: logger}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /healthz. It pings the database and reports 503 if the
// connection is unreachable, since a control plane whose database is down
// cannot admit or track deployments even though the HTTP process itself is
// still running.
func (handler *HealthHandler) Health(responseWriter http.ResponseWriter, request *http.Request) {
	if err := handler.database.Ping(); err != nil {
		handler.logger.Error("health check failed: database unreachable", "error", err)
		writeJsonAndRespond(responseWriter, http.StatusServiceUnavailable, healthResponse{
			Status:    "unavailable",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJsonAndRespond(responseWriter, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
