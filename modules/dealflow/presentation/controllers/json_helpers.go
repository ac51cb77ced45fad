package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/organization"
	"github.com/iota-uz/dealflow/pkg/composables"
	"github.com/iota-uz/dealflow/pkg/httpapi"
)

// PageOptions bounds list endpoints.
type PageOptions struct {
	Default int
	Max     int
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	if err := httpapi.WriteError(w, r, status, code, message); err != nil {
		panic(err)
	}
}

// writeServiceError maps domain errors to responses and logs the rest.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, organization.ErrNotFound):
		writeAPIError(w, r, http.StatusNotFound, "ORGANIZATION_NOT_FOUND", "organization not found")
	case errors.Is(err, organization.ErrNameTaken):
		writeAPIError(w, r, http.StatusConflict, "ORGANIZATION_ALREADY_EXISTS", "organization already exists")
	default:
		composables.UseLogger(r.Context()).WithError(err).Error("request failed")
		writeAPIError(w, r, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}
