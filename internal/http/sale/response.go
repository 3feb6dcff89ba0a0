package sale

import (
	"time"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/sale"
)

type clientResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone,omitempty"`
}

type parcelResponse struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	SurfaceM2 float64   `json:"surface_m2"`
	Status    string    `json:"status"`
}

type batchResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type offerResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	PricePerM2    int64     `json:"price_per_m2"`
	AdvanceMode   string    `json:"advance_mode"`
	AdvanceValue  int64     `json:"advance_value"`
	CalcMode      string    `json:"calc_mode"`
	MonthlyAmount int64     `json:"monthly_amount,omitempty"`
	Months        int       `json:"months,omitempty"`
}

type saleResponse struct {
	ID       uuid.UUID  `json:"id"`
	ClientID uuid.UUID  `json:"client_id"`
	ParcelID uuid.UUID  `json:"parcel_id"`
	BatchID  uuid.UUID  `json:"batch_id"`
	OfferID  *uuid.UUID `json:"payment_offer_id,omitempty"`

	Price            int64  `json:"sale_price"`
	Deposit          int64  `json:"deposit_amount"`
	PartialPayment   *int64 `json:"partial_payment_amount,omitempty"`
	RemainingPayment *int64 `json:"remaining_payment_amount,omitempty"`
	CompanyFee       *int64 `json:"company_fee_amount,omitempty"`

	Method   string     `json:"payment_method,omitempty"`
	Status   string     `json:"status"`
	Deadline *time.Time `json:"deadline_date,omitempty"`
	SaleDate time.Time  `json:"sale_date"`

	SoldBy      uuid.UUID  `json:"sold_by"`
	ConfirmedBy *uuid.UUID `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`

	Client *clientResponse `json:"client,omitempty"`
	Parcel *parcelResponse `json:"parcel,omitempty"`
	Batch  *batchResponse  `json:"batch,omitempty"`
	Offer  *offerResponse  `json:"payment_offer,omitempty"`
}

func toResponse(s *sale.Sale) saleResponse {
	resp := saleResponse{
		ID:               s.ID,
		ClientID:         s.ClientID,
		ParcelID:         s.ParcelID,
		BatchID:          s.BatchID,
		OfferID:          s.OfferID,
		Price:            s.Price,
		Deposit:          s.Deposit,
		PartialPayment:   s.PartialPayment,
		RemainingPayment: s.RemainingPayment,
		CompanyFee:       s.CompanyFee,
		Method:           string(s.EffectiveMethod()),
		Status:           string(s.Status),
		Deadline:         s.Deadline,
		SaleDate:         s.SaleDate,
		SoldBy:           s.SoldBy,
		ConfirmedBy:      s.ConfirmedBy,
		ConfirmedAt:      s.ConfirmedAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}

	if s.Client != nil {
		resp.Client = &clientResponse{ID: s.Client.ID, Name: s.Client.Name, Phone: s.Client.Phone}
	}

	if s.Parcel != nil {
		resp.Parcel = &parcelResponse{
			ID:        s.Parcel.ID,
			Number:    s.Parcel.Number,
			SurfaceM2: s.Parcel.SurfaceM2,
			Status:    string(s.Parcel.Status),
		}
	}

	if s.Batch != nil {
		resp.Batch = &batchResponse{ID: s.Batch.ID, Name: s.Batch.Name}
	}

	if s.Offer != nil {
		resp.Offer = &offerResponse{
			ID:            s.Offer.ID,
			Name:          s.Offer.Name,
			PricePerM2:    s.Offer.PricePerM2,
			AdvanceMode:   string(s.Offer.AdvanceMode),
			AdvanceValue:  s.Offer.AdvanceValue,
			CalcMode:      string(s.Offer.CalcMode),
			MonthlyAmount: s.Offer.MonthlyAmount,
			Months:        s.Offer.Months,
		}
	}

	return resp
}

func toResponseList(sales []*sale.Sale) []saleResponse {
	resp := make([]saleResponse, len(sales))
	for i, s := range sales {
		resp[i] = toResponse(s)
	}

	return resp
}

type installmentResponse struct {
	ID      uuid.UUID  `json:"id"`
	Seq     int        `json:"seq"`
	Amount  int64      `json:"amount"`
	DueDate time.Time  `json:"due_date"`
	PaidAt  *time.Time `json:"paid_at,omitempty"`
}

func toInstallmentList(rows []*sale.InstallmentPayment) []installmentResponse {
	resp := make([]installmentResponse, len(rows))
	for i, row := range rows {
		resp[i] = installmentResponse{
			ID:      row.ID,
			Seq:     row.Seq,
			Amount:  row.Amount,
			DueDate: row.DueDate,
			PaidAt:  row.PaidAt,
		}
	}

	return resp
}
