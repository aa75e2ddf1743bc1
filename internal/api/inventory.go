package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/store"
)

// InventoryHandler handles stock endpoints.
type InventoryHandler struct {
	DB  *sql.DB
	Bus *events.Bus
}

type adjustRequest struct {
	ItemID int64  `json:"item_id"`
	Delta  int    `json:"delta"`
	Notes  string `json:"notes"`
}

// Adjust handles POST /api/inventory/adjust.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ItemID <= 0 || req.Delta == 0 {
		jsonError(w, http.StatusBadRequest, "item_id and non-zero delta required")
		return
	}

	stock, err := store.AdjustStock(r.Context(), h.DB, req.ItemID, req.Delta)
	if err != nil {
		storeError(w, err, "adjust stock")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("stock adjusted", "user", claims.Username, "item_id", req.ItemID, "delta", req.Delta, "stock", stock, "notes", req.Notes)

	ev := events.New(events.ItemUpdated)
	ev.ItemID = req.ItemID
	publish(h.Bus, ev)

	jsonResponse(w, http.StatusOK, map[string]int{"stock": stock})
}
