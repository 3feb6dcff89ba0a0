package sale

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/actor"
	"github.com/terrakit/terrakit/internal/plan"
	"github.com/terrakit/terrakit/internal/sale"
)

type Handler struct {
	svc      *sale.Service
	validate *validator.Validate
}

func NewHandler(svc *sale.Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.reserve)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/revert", h.revert)
	r.Get("/{id}/installments", h.installments)
}

// writeError maps domain errors onto HTTP statuses. Conflicts get their own
// status so the UI can prompt a refresh instead of retrying blindly.
func writeError(w http.ResponseWriter, err error) {
	var validation *sale.ValidationError

	var invalidPlan *plan.InvalidPlanError

	switch {
	case errors.As(err, &validation), errors.As(err, &invalidPlan):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, sale.ErrNotFound):
		http.Error(w, "sale not found", http.StatusNotFound)
	case errors.Is(err, sale.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type reserveRequest struct {
	ClientID uuid.UUID  `json:"client_id" validate:"required"`
	ParcelID uuid.UUID  `json:"parcel_id" validate:"required"`
	BatchID  uuid.UUID  `json:"batch_id" validate:"required"`
	OfferID  *uuid.UUID `json:"payment_offer_id"`

	Price          int64  `json:"sale_price" validate:"gt=0"`
	Deposit        int64  `json:"deposit_amount" validate:"gte=0"`
	PartialPayment *int64 `json:"partial_payment_amount"`

	Method   sale.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=full installment promise"`
	Deadline *time.Time         `json:"deadline_date"`
	SaleDate time.Time          `json:"sale_date"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	act, _ := actor.FromContext(r.Context())

	created, err := h.svc.Reserve(r.Context(), act, sale.ReserveParams{
		ClientID:       req.ClientID,
		ParcelID:       req.ParcelID,
		BatchID:        req.BatchID,
		OfferID:        req.OfferID,
		Price:          req.Price,
		Deposit:        req.Deposit,
		PartialPayment: req.PartialPayment,
		Method:         req.Method,
		Deadline:       req.Deadline,
		SaleDate:       req.SaleDate,
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
	filter := sale.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		st := sale.Status(s)
		filter.Status = &st
	}

	if s := r.URL.Query().Get("payment_method"); s != "" {
		m := sale.PaymentMethod(s)
		filter.Method = &m
	}

	if s := r.URL.Query().Get("batch_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filter.BatchID = &id
		}
	}

	if s := r.URL.Query().Get("client_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filter.ClientID = &id
		}
	}

	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	sales, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponseList(sales)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	s, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(s)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type updateRequest struct {
	Price          *int64              `json:"sale_price" validate:"omitempty,gt=0"`
	Deposit        *int64              `json:"deposit_amount" validate:"omitempty,gte=0"`
	PartialPayment *int64              `json:"partial_payment_amount"`
	Method         *sale.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=full installment promise"`
	OfferID        *uuid.UUID          `json:"payment_offer_id"`
	Deadline       *time.Time          `json:"deadline_date"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	act, _ := actor.FromContext(r.Context())

	updated, err := h.svc.Update(r.Context(), act, id, sale.UpdateParams{
		Price:          req.Price,
		Deposit:        req.Deposit,
		PartialPayment: req.PartialPayment,
		Method:         req.Method,
		OfferID:        req.OfferID,
		Deadline:       req.Deadline,
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

type confirmRequest struct {
	CompanyFee int64 `json:"company_fee_amount" validate:"gte=0"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	act, _ := actor.FromContext(r.Context())

	confirmed, err := h.svc.Confirm(r.Context(), act, id, req.CompanyFee)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(confirmed)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *Handler) revert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Revert)
}

func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, act actor.Actor, id uuid.UUID) (*sale.Sale, error),
) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	act, _ := actor.FromContext(r.Context())

	result, err := apply(r.Context(), act, id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(result)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	act, _ := actor.FromContext(r.Context())

	if err := h.svc.Remove(r.Context(), act, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) installments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	rows, err := h.svc.Installments(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toInstallmentList(rows)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
