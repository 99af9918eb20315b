package handlers

// router.go constructs the chi router, registers all middleware, and wires all
// routes to their respective handlers. it is the single source of truth for
// the HTTP surface area of the corvus control plane's operator API.
// adding a new endpoint means adding one line in this file, nothing else.

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sasta-kro/corvus-paas/corvus-control-plane/db"
)

// RouterDependencies groups all external dependencies that the router and
// its handlers need. passing a single struct instead of N arguments keeps
// CreateAndSetupRouter's signature stable as more handlers are added.
type RouterDependencies struct {
	Logger   *slog.Logger
	Database *db.Database
}

// CreateAndSetupRouter constructs the chi multiplexer, attaches middleware, constructs
// all handlers with their dependencies, and registers all routes.
// it returns a plain http.Handler so main.go has no chi import or awareness.
// the server in main.go only needs to know it has something that satisfies http.Handler.
//
// This is deliberately a read-only surface: a deployment is created by
// inserting a pending row (cmd/corvusctl) that cmd/corvusd's poller then
// enqueues onto the admission queue, never through this HTTP API. The
// external façade that accepts user-facing requests is out of scope for
// this module.
func CreateAndSetupRouter(dependencies RouterDependencies) http.Handler {
	router := chi.NewRouter() // type is *chi.Mux, implements http.Handler interface

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	healthHandler := NewHealthHandler(dependencies.Database, dependencies.Logger)
	deploymentHandler := NewDeploymentHandler(dependencies.Database, dependencies.Logger)

	// /healthz and /metrics are intentionally kept at the root level rather
	// than under an /api prefix, matching what load balancers, container
	// orchestrators, and Prometheus scrape configs expect by convention.
	router.Get("/healthz", healthHandler.Health)
	router.Handle("/metrics", MetricsHandler())

	router.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Get("/deployments", deploymentHandler.ListDeployments)
		apiRouter.Get("/deployments/summary", deploymentHandler.Summary)
		apiRouter.Get("/deployments/{id}", deploymentHandler.GetDeployment)
	})

	return router
}
