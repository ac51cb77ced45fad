package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/dealflow/pkg/application"
)

type HealthController struct {
	schemaVersion func(context.Context) (int64, error)
}

// NewHealthController reports the schema version as a storage probe.
func NewHealthController(schemaVersion func(context.Context) (int64, error)) application.Controller {
	return &HealthController{schemaVersion: schemaVersion}
}

func (c *HealthController) Key() string {
	return "/health"
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc("/health", c.Get).Methods(http.MethodGet)
}

func (c *HealthController) Get(w http.ResponseWriter, r *http.Request) {
	version, err := c.schemaVersion(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "schema_version": version})
}
