package sale

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/parcel"
	"github.com/terrakit/terrakit/internal/plan"
)

var (
	ErrNotFound = errors.New("sale not found")

	// ErrConflict is returned when a conditional update touches zero rows:
	// another session moved the sale or its parcel first. Callers should
	// re-fetch and retry the whole transition, never resume a partial one.
	ErrConflict = errors.New("sale state changed by another session")
)

// ValidationError rejects a mutation before any store write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PaymentMethod is how the client pays. The empty string means the client has
// not picked a plan yet; such sales cannot be confirmed.
type PaymentMethod string

const (
	MethodFull        PaymentMethod = "full"
	MethodInstallment PaymentMethod = "installment"
	MethodPromise     PaymentMethod = "promise"
)

// Status is the lifecycle state of a sale.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Client is the reference data joined onto a sale row.
type Client struct {
	ID    uuid.UUID
	Name  string
	Phone string
}

// Batch is a named collection of parcels offered together.
type Batch struct {
	ID   uuid.UUID
	Name string
}

// Sale is the central record: one client reserving one parcel under one
// payment plan. Money fields are in cents. Joined reference data is attached
// the same way on every read path so downstream consumers never see a bare
// foreign key where they expect a record.
type Sale struct {
	ID       uuid.UUID
	ClientID uuid.UUID
	ParcelID uuid.UUID
	BatchID  uuid.UUID
	OfferID  *uuid.UUID

	Price            int64
	Deposit          int64
	PartialPayment   *int64 // promise only
	RemainingPayment *int64 // promise only
	CompanyFee       *int64 // set at confirmation

	Method   PaymentMethod
	Status   Status
	Deadline *time.Time
	SaleDate time.Time

	SoldBy      uuid.UUID
	ConfirmedBy *uuid.UUID
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   *time.Time

	// Loaded via JOIN
	Client *Client
	Parcel *parcel.Parcel
	Batch  *Batch
	Offer  *plan.Offer
}

// EffectiveMethod resolves the payment method used for lifecycle decisions.
// Legacy rows can carry a payment offer without a stored method; those are
// installment sales by construction, so the offer link wins over the blank.
func (s *Sale) EffectiveMethod() PaymentMethod {
	if s.Method == "" && s.OfferID != nil {
		return MethodInstallment
	}

	return s.Method
}

// InstallmentPayment is one scheduled installment of a confirmed installment
// sale. Rows are owned by the sale and deleted together on revert or removal.
type InstallmentPayment struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	Seq       int
	Amount    int64
	DueDate   time.Time
	PaidAt    *time.Time
	CreatedAt time.Time
}

// ListFilter narrows a sale listing. Limit 0 means no limit; the grouped
// confirmation view passes a large cap and groups client-side.
type ListFilter struct {
	Status   *Status
	BatchID  *uuid.UUID
	ClientID *uuid.UUID
	Method   *PaymentMethod
	Limit    int
	Offset   int
}
