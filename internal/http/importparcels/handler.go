package importparcels

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/importer"
	"github.com/terrakit/terrakit/internal/parcel"
)

type Handler struct {
	importSvc *importer.Service
	parcelSvc *parcel.Service
}

func NewHandler(importSvc *importer.Service, parcelSvc *parcel.Service) *Handler {
	return &Handler{
		importSvc: importSvc,
		parcelSvc: parcelSvc,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importInventory)
	r.Post("/confirm", h.confirmImport)
}

type parcelResponse struct {
	ID        uuid.UUID  `json:"id"`
	BatchID   uuid.UUID  `json:"batch_id"`
	Number    string     `json:"number"`
	SurfaceM2 float64    `json:"surface_m2"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type importSuccessResponse struct {
	Imported int              `json:"imported"`
	Parcels  []parcelResponse `json:"parcels"`
}

type rowDTO struct {
	Number    string  `json:"number"`
	SurfaceM2 float64 `json:"surface_m2"`
}

type importConflictResponse struct {
	New        []rowDTO `json:"new"`
	Duplicates []string `json:"duplicates"`
}

type confirmRequest struct {
	BatchID uuid.UUID `json:"batch_id"`
	Rows    []rowDTO  `json:"rows"`
}

func (h *Handler) importInventory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	batchID, err := uuid.Parse(r.FormValue("batch_id"))
	if err != nil {
		http.Error(w, "batch_id field is required", http.StatusBadRequest)
		return
	}

	source := importer.Source(r.FormValue("source"))
	if source == "" {
		source = importer.SourceRegistry
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, err := h.importSvc.Import(source, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.parcelSvc.ImportInventory(r.Context(), batchID, rows, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(result.Duplicates) > 0 {
		resp := importConflictResponse{
			New:        make([]rowDTO, 0, len(rows)),
			Duplicates: result.Duplicates,
		}

		dupes := make(map[string]struct{}, len(result.Duplicates))
		for _, n := range result.Duplicates {
			dupes[n] = struct{}{}
		}

		for _, row := range rows {
			if _, ok := dupes[row.Number]; ok {
				continue
			}

			resp.New = append(resp.New, rowDTO{Number: row.Number, SurfaceM2: row.SurfaceM2})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to encode response", "error", err)
		}

		return
	}

	writeCreated(w, result.Created)
}

func (h *Handler) confirmImport(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.BatchID == uuid.Nil {
		http.Error(w, "batch_id is required", http.StatusBadRequest)
		return
	}

	rows := make([]parcel.InventoryRow, 0, len(req.Rows))
	for _, dto := range req.Rows {
		rows = append(rows, parcel.InventoryRow{Number: dto.Number, SurfaceM2: dto.SurfaceM2})
	}

	result, err := h.parcelSvc.ImportInventory(r.Context(), req.BatchID, rows, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeCreated(w, result.Created)
}

func writeCreated(w http.ResponseWriter, created []*parcel.Parcel) {
	resp := importSuccessResponse{
		Imported: len(created),
		Parcels:  make([]parcelResponse, 0, len(created)),
	}

	for _, p := range created {
		resp.Parcels = append(resp.Parcels, parcelResponse{
			ID:        p.ID,
			BatchID:   p.BatchID,
			Number:    p.Number,
			SurfaceM2: p.SurfaceM2,
			Status:    string(p.Status),
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
