package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/actor"
	"github.com/terrakit/terrakit/internal/appointment"
)

type Handler struct {
	svc      *appointment.Service
	validate *validator.Validate
}

func NewHandler(svc *appointment.Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.schedule)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.reschedule)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/no-show", h.noShow)
}

func writeError(w http.ResponseWriter, err error) {
	var validation *appointment.ValidationError

	switch {
	case errors.As(err, &validation):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, appointment.ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, appointment.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, appointment.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type scheduleRequest struct {
	SaleID   uuid.UUID `json:"sale_id" validate:"required"`
	ClientID uuid.UUID `json:"client_id" validate:"required"`
	Date     time.Time `json:"appointment_date" validate:"required"`
	Time     string    `json:"appointment_time" validate:"required"`
	Notes    string    `json:"notes"`
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	act, _ := actor.FromContext(r.Context())

	created, err := h.svc.Schedule(r.Context(), act, appointment.ScheduleParams{
		SaleID:   req.SaleID,
		ClientID: req.ClientID,
		Date:     req.Date,
		Time:     req.Time,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(toResponse(created)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := appointment.ListFilter{}

	q := r.URL.Query()

	if s := q.Get("sale_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filter.SaleID = &id
		}
	}

	if s := q.Get("client_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filter.ClientID = &id
		}
	}

	if s := q.Get("status"); s != "" {
		st := appointment.Status(s)
		filter.Status = &st
	}

	if s := q.Get("from"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.From = &t
		}
	}

	if s := q.Get("to"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.To = &t
		}
	}

	appointments, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponseList(appointments)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(a)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type rescheduleRequest struct {
	Date  *time.Time `json:"appointment_date"`
	Time  *string    `json:"appointment_time"`
	Notes *string    `json:"notes"`
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	act, _ := actor.FromContext(r.Context())

	updated, err := h.svc.Reschedule(r.Context(), act, id, appointment.RescheduleParams{
		Date:  req.Date,
		Time:  req.Time,
		Notes: req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(updated)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	act, _ := actor.FromContext(r.Context())

	if err := h.svc.Delete(r.Context(), act, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, h.svc.Complete)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, h.svc.Cancel)
}

func (h *Handler) noShow(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, h.svc.MarkNoShow)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, act actor.Actor, id uuid.UUID) (*appointment.Appointment, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	act, _ := actor.FromContext(r.Context())

	updated, err := apply(r.Context(), act, id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(updated)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
