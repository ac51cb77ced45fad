package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/iota-uz/dealflow/pkg/composables"
)

// ErrorEnvelope standardizes JSON error responses for API namespaces.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}

// WriteError answers with an ErrorEnvelope carrying the request id.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    map[string]string{"request_id": RequestID(w, r)},
	})
}

// RequestID returns the id attached by the logging middleware. Outside of
// it a fresh id is generated and echoed in the response.
func RequestID(w http.ResponseWriter, r *http.Request) string {
	if r != nil {
		if id, ok := composables.UseRequestID(r.Context()); ok && id != "" {
			return id
		}
	}
	id := uuid.NewString()
	if w != nil {
		w.Header().Set("X-Request-Id", id)
	}
	return id
}
