package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/store"
)

// SettingsHandler handles school-wide ordering limits.
type SettingsHandler struct {
	DB  *sql.DB
	Bus *events.Bus
}

// GetLimits handles GET /api/settings/limits.
func (h *SettingsHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	settings, err := store.GetOrderSettings(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "load settings")
		return
	}
	jsonResponse(w, http.StatusOK, settings)
}

// SetLimits handles PUT /api/settings/limits.
func (h *SettingsHandler) SetLimits(w http.ResponseWriter, r *http.Request) {
	var req store.OrderSettings
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TotalItemLimit != nil && *req.TotalItemLimit < 0 {
		jsonError(w, http.StatusBadRequest, "totalItemLimit must not be negative")
		return
	}
	if req.QRValidDays <= 0 {
		jsonError(w, http.StatusBadRequest, "qrValidDays must be positive")
		return
	}

	if err := store.SetOrderSettings(r.Context(), h.DB, req); err != nil {
		storeError(w, err, "save settings")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("order limits updated", "user", claims.Username, "qr_valid_days", req.QRValidDays)
	// Every student's snapshot depends on these values.
	publish(h.Bus, events.New(events.StudentPermissionsUpdated))
	jsonResponse(w, http.StatusOK, req)
}
