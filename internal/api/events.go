package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/uniforme/internal/auth"
	"github.com/erazemk/uniforme/internal/events"
)

// heartbeatInterval keeps idle streams open through proxies.
const heartbeatInterval = 25 * time.Second

// EventsHandler streams bus events as server-sent events.
type EventsHandler struct {
	Bus *events.Bus
}

func publish(bus *events.Bus, ev events.Event) {
	if bus != nil {
		bus.Publish(ev)
	}
}

// visible reports whether the caller may see ev. Students only receive
// events about themselves and school-wide events.
func visible(claims *auth.Claims, ev events.Event) bool {
	if isStaff(claims) || ev.StudentID == 0 {
		return true
	}
	return ev.StudentID == claims.StudentID
}

// Stream handles GET /api/events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || h.Bus == nil {
		jsonError(w, http.StatusNotImplemented, "streaming not supported")
		return
	}
	claims := GetClaims(r.Context())

	ch, unsubscribe := h.Bus.Subscribe(32)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !visible(claims, ev) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("failed to encode event", "event", ev.Name, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Name, data)
			flusher.Flush()
		}
	}
}
