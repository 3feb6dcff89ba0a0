package confirmation

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/grouping"
	"github.com/terrakit/terrakit/internal/sale"
)

// maxGroupingRows caps the load-everything mode the grouped view uses.
// Grouping happens client-side of the store, so the query must see every
// matching row, but not without a ceiling.
const maxGroupingRows = 5000

type Handler struct {
	sales  *sale.Service
	engine *grouping.Engine
}

func NewHandler(sales *sale.Service, engine *grouping.Engine) *Handler {
	return &Handler{sales: sales, engine: engine}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.grouped)
}

type rowResponse struct {
	ID          uuid.UUID  `json:"id"`
	ParcelID    uuid.UUID  `json:"parcel_id"`
	Parcel      string     `json:"parcel_number,omitempty"`
	Batch       string     `json:"batch_name,omitempty"`
	Price       int64      `json:"sale_price"`
	Received    int64      `json:"received"`
	Remaining   int64      `json:"remaining"`
	Status      string     `json:"status"`
	SaleDate    time.Time  `json:"sale_date"`
	Deadline    *time.Time `json:"deadline_date,omitempty"`
	Overdue     bool       `json:"overdue"`
	OverdueDays int        `json:"overdue_days,omitempty"`
}

type planGroupResponse struct {
	Method         string        `json:"payment_method"`
	OfferID        *uuid.UUID    `json:"payment_offer_id,omitempty"`
	OfferName      string        `json:"payment_offer_name,omitempty"`
	Rows           []rowResponse `json:"sales"`
	ReceivedTotal  int64         `json:"received_total"`
	RemainingTotal int64         `json:"remaining_total"`
}

type clientGroupResponse struct {
	ClientID       uuid.UUID           `json:"client_id"`
	ClientName     string              `json:"client_name"`
	ClientPhone    string              `json:"client_phone,omitempty"`
	Groups         []planGroupResponse `json:"groups"`
	ReceivedTotal  int64               `json:"received_total"`
	RemainingTotal int64               `json:"remaining_total"`
}

func (h *Handler) grouped(w http.ResponseWriter, r *http.Request) {
	filter := sale.ListFilter{Limit: maxGroupingRows}

	status := sale.StatusPending
	if s := r.URL.Query().Get("status"); s != "" {
		status = sale.Status(s)
	}

	filter.Status = &status

	if s := r.URL.Query().Get("batch_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			filter.BatchID = &id
		}
	}

	if s := r.URL.Query().Get("payment_method"); s != "" {
		m := sale.PaymentMethod(s)
		filter.Method = &m
	}

	sales, err := h.sales.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	groups := h.engine.Group(sales, time.Now())

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(groups)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func toResponse(groups []grouping.ClientGroup) []clientGroupResponse {
	resp := make([]clientGroupResponse, len(groups))

	for i, cg := range groups {
		out := clientGroupResponse{
			ClientID:       cg.Client.ID,
			ClientName:     cg.Client.Name,
			ClientPhone:    cg.Client.Phone,
			ReceivedTotal:  cg.ReceivedTotal,
			RemainingTotal: cg.RemainingTotal,
		}

		for _, pg := range cg.Groups {
			out.Groups = append(out.Groups, toPlanGroup(pg))
		}

		resp[i] = out
	}

	return resp
}

func toPlanGroup(pg grouping.PlanGroup) planGroupResponse {
	out := planGroupResponse{
		Method:         string(pg.Key.Method),
		ReceivedTotal:  pg.ReceivedTotal,
		RemainingTotal: pg.RemainingTotal,
	}

	if pg.Key.OfferID != uuid.Nil {
		offerID := pg.Key.OfferID
		out.OfferID = &offerID
	}

	for _, row := range pg.Rows {
		r := rowResponse{
			ID:          row.Sale.ID,
			ParcelID:    row.Sale.ParcelID,
			Price:       row.Sale.Price,
			Received:    row.Received,
			Remaining:   row.Remaining,
			Status:      string(row.Sale.Status),
			SaleDate:    row.Sale.SaleDate,
			Deadline:    row.Sale.Deadline,
			Overdue:     row.Overdue,
			OverdueDays: row.OverdueDays,
		}

		if row.Sale.Parcel != nil {
			r.Parcel = row.Sale.Parcel.Number
		}

		if row.Sale.Batch != nil {
			r.Batch = row.Sale.Batch.Name
		}

		if out.OfferName == "" && row.Sale.Offer != nil {
			out.OfferName = row.Sale.Offer.Name
		}

		out.Rows = append(out.Rows, r)
	}

	return out
}
