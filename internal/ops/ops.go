// Package ops serves the operational HTTP endpoints: liveness, readiness, metrics and the entry point catalogue.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"server-actions/backend/internal/action"
)

// ReadinessFunc reports whether dependencies are reachable; *health/handler.Server.Ready satisfies it.
type ReadinessFunc func(ctx context.Context) error

// Options configures the router. Nil fields disable the corresponding behavior.
type Options struct {
	Ready    ReadinessFunc
	Metrics  http.Handler
	Registry *action.Registry
	Log      logrus.FieldLogger
}

// CatalogueEntry describes one entry point in GET /actions.
type CatalogueEntry struct {
	Name        string             `json:"name"`
	Method      string             `json:"method"`
	Public      bool               `json:"public"`
	Description string             `json:"description,omitempty"`
	Input       []action.FieldSpec `json:"input"`
}

// NewRouter returns the ops handler.
func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(req.Context()); err != nil {
				log.WithError(err).Warn("ops: readiness check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Registry != nil {
		r.Get("/actions", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, Catalogue(opts.Registry))
		})
	}
	return r
}

// Catalogue lists the registry's entry points in registration order.
func Catalogue(reg *action.Registry) []CatalogueEntry {
	eps := reg.EntryPoints()
	out := make([]CatalogueEntry, 0, len(eps))
	for _, ep := range eps {
		out = append(out, CatalogueEntry{
			Name:        ep.Name(),
			Method:      ep.FullMethod(),
			Public:      ep.IsPublic(),
			Description: ep.Description(),
			Input:       ep.Fields(),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
