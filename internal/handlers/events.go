package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sealbox-protocol/sealbox/internal/api/middleware"
	"github.com/sealbox-protocol/sealbox/internal/notify"
)

// keepAliveInterval is how often a comment frame is written to hold the
// connection open through idle-timeout proxies.
const keepAliveInterval = 25 * time.Second

// Events is the long-lived server-sent-events stream pushing handshake state
// transitions to the authenticated user. One subscription per connection; a
// user may hold several (tabs, devices). Disconnect is detected through the
// request context and unregisters the subscription immediately.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := h.bus.Subscribe(p.ID)
	defer sub.Close()

	writeSSE(w, notify.Event{
		Type:      notify.EventConnected,
		Data:      map[string]string{"subscription_id": sub.ID},
		Timestamp: time.Now().UnixMilli(),
	})
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.C:
			if !open {
				// Bus dropped us as a stalled handle.
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSE frames one event in wire format: named event plus JSON data line.
func writeSSE(w http.ResponseWriter, ev notify.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}
