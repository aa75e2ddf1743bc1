package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/uniforme/internal/eligibility"
	"github.com/erazemk/uniforme/internal/inflight"
	"github.com/erazemk/uniforme/internal/store"
)

// envelope is the body of every JSON response except the limit snapshot.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonResponse writes a successful envelope around data.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// jsonMessage writes a successful envelope with only a message.
func jsonMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

// jsonError writes a failed envelope.
func jsonError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// storeError maps business rule errors to 4xx responses and logs the rest.
func storeError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrProfileIncomplete):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, eligibility.ErrNotEligible):
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, inflight.ErrInFlight):
		jsonError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("failed to "+action, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
