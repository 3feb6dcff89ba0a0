package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/appointment"
)

type appointmentResponse struct {
	ID        uuid.UUID  `json:"id"`
	SaleID    uuid.UUID  `json:"sale_id"`
	ClientID  uuid.UUID  `json:"client_id"`
	Date      string     `json:"appointment_date"`
	Time      string     `json:"appointment_time"`
	Status    string     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toResponse(a *appointment.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:        a.ID,
		SaleID:    a.SaleID,
		ClientID:  a.ClientID,
		Date:      a.Date.Format(time.DateOnly),
		Time:      a.Time,
		Status:    string(a.Status),
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toResponseList(appointments []*appointment.Appointment) []appointmentResponse {
	resp := make([]appointmentResponse, len(appointments))

	for i, a := range appointments {
		resp[i] = toResponse(a)
	}

	return resp
}
