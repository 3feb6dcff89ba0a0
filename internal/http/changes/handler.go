package changes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terrakit/terrakit/internal/changefeed"
)

// keepAliveInterval is how often an SSE comment is written so proxies don't
// reap an idle stream.
const keepAliveInterval = 30 * time.Second

// Handler streams change-feed events to clients as server-sent events.
type Handler struct {
	hub *changefeed.Hub
}

func NewHandler(hub *changefeed.Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.stream)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.hub.Subscribe(r.Context())

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				// Dropped by the hub; the client reconnects and re-fetches.
				return
			}

			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}

			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
