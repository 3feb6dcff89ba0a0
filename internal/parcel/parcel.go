package parcel

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("parcel not found")

// Status is the sale availability of a parcel.
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
)

// InventoryRow is one parcel parsed from an inventory import, before it is
// attached to a batch.
type InventoryRow struct {
	Number    string
	SurfaceM2 float64
}

// Parcel is a single land piece inside a batch.
type Parcel struct {
	ID        uuid.UUID
	BatchID   uuid.UUID
	Number    string
	SurfaceM2 float64
	Status    Status
	CreatedAt time.Time
	UpdatedAt *time.Time
}
