package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parley/internal/transport/http/shared"
)

// Registrar is implemented by every domain handler. Each one mounts its own
// sub-router with its own middleware chain, so the top-level router stays a
// wiring surface only.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// New assembles the public router. Health and metrics endpoints bypass the
// domain middleware chains.
func New(checkers map[string]HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth(checkers))
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealth(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, c := range checkers {
			if c == nil {
				continue
			}
			if err := c.Health(r.Context()); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		shared.WriteJSON(w, code, status)
	}
}
