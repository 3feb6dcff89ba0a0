package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("appointment not found")

	// ErrConflict is returned when a conditional update finds the
	// appointment no longer in the status the caller saw.
	ErrConflict = errors.New("appointment changed by another session")

	// ErrForbidden rejects privileged operations for non-owner actors.
	ErrForbidden = errors.New("operation restricted to owners")
)

// Status is the lifecycle state of an appointment. Everything after
// scheduled is terminal.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Appointment binds a sale and its client to a calendar slot. It has its own
// lifecycle, independent of the sale's.
type Appointment struct {
	ID       uuid.UUID
	SaleID   uuid.UUID
	ClientID uuid.UUID

	Date time.Time
	Time string // HH:MM slot within the day

	Status    Status
	Notes     string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// ValidationError rejects a mutation before any store write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
