package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/audit"
)

type Handler struct {
	svc *audit.Service
}

func NewHandler(svc *audit.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
}

type entryResponse struct {
	ID         uuid.UUID                    `json:"id"`
	EntityType string                       `json:"entity_type"`
	EntityID   uuid.UUID                    `json:"entity_id"`
	Action     string                       `json:"action"`
	ActorID    uuid.UUID                    `json:"actor_id"`
	ActorName  string                       `json:"actor_name,omitempty"`
	Changes    map[string]audit.FieldChange `json:"changes,omitempty"`
	Snapshot   map[string]any               `json:"snapshot,omitempty"`
	CreatedAt  time.Time                    `json:"created_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	if entityType == "" {
		http.Error(w, "entity_type is required", http.StatusBadRequest)
		return
	}

	entityID, err := uuid.Parse(r.URL.Query().Get("entity_id"))
	if err != nil {
		http.Error(w, "invalid entity_id", http.StatusBadRequest)
		return
	}

	entries, err := h.svc.List(r.Context(), entityType, entityID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]entryResponse, len(entries))

	for i, e := range entries {
		resp[i] = entryResponse{
			ID:         e.ID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     string(e.Action),
			ActorID:    e.ActorID,
			ActorName:  e.ActorName,
			Changes:    e.Changes,
			Snapshot:   e.Snapshot,
			CreatedAt:  e.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
