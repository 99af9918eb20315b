package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler returns the standard Prometheus exposition handler. Kept
// as its own tiny file rather than inlined in router.go so the promhttp
// import stays scoped to one place.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
