package planquote

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/terrakit/terrakit/internal/plan"
)

// Handler quotes payment plans without touching any stored sale. The same
// calculation runs at confirmation time, so a quote always matches what a
// confirmed sale would materialize.
type Handler struct {
	validate *validator.Validate
}

func NewHandler() *Handler {
	return &Handler{validate: validator.New()}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/quote", h.quote)
}

type quoteRequest struct {
	SurfaceM2   float64 `json:"surface_m2" validate:"gt=0"`
	DepositPaid int64   `json:"deposit_paid" validate:"gte=0"`

	PricePerM2    int64  `json:"price_per_m2" validate:"gt=0"`
	AdvanceMode   string `json:"advance_mode" validate:"oneof=fixed percent"`
	AdvanceValue  int64  `json:"advance_value" validate:"gte=0"`
	CalcMode      string `json:"calc_mode" validate:"oneof=monthly_amount months"`
	MonthlyAmount int64  `json:"monthly_amount"`
	Months        int    `json:"months"`
}

type quoteResponse struct {
	Total               int64   `json:"total"`
	AdvanceTotal        int64   `json:"advance_total"`
	AdvanceAfterDeposit int64   `json:"advance_after_deposit"`
	MonthlyAmount       int64   `json:"monthly_amount"`
	Months              int     `json:"months"`
	Schedule            []int64 `json:"schedule"`
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	offer := plan.Offer{
		PricePerM2:    req.PricePerM2,
		AdvanceMode:   plan.AdvanceMode(req.AdvanceMode),
		AdvanceValue:  req.AdvanceValue,
		CalcMode:      plan.CalcMode(req.CalcMode),
		MonthlyAmount: req.MonthlyAmount,
		Months:        req.Months,
	}

	p, err := plan.Compute(req.SurfaceM2, offer, req.DepositPaid)
	if err != nil {
		var invalid *plan.InvalidPlanError
		if errors.As(err, &invalid) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(quoteResponse{
		Total:               p.Total,
		AdvanceTotal:        p.AdvanceTotal,
		AdvanceAfterDeposit: p.AdvanceAfterDeposit,
		MonthlyAmount:       p.MonthlyAmount,
		Months:              p.Months,
		Schedule:            p.Schedule,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
