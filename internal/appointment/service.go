package appointment

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/actor"
	"github.com/terrakit/terrakit/internal/audit"
)

// EntityType is the audit entity type for appointments.
const EntityType = "appointment"

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=appointment
type Repository interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) error

	// UpdateAppointment applies the row conditionally on the expected prior
	// status and returns ErrConflict on zero rows.
	UpdateAppointment(ctx context.Context, a *Appointment, expected Status) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
}

type ListFilter struct {
	SaleID   *uuid.UUID
	ClientID *uuid.UUID
	Status   *Status
	From     *time.Time
	To       *time.Time
}

type Service struct {
	repo     Repository
	recorder *audit.Service
}

func NewService(repo Repository, recorder *audit.Service) *Service {
	return &Service{repo: repo, recorder: recorder}
}

var timeSlotRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type ScheduleParams struct {
	SaleID   uuid.UUID
	ClientID uuid.UUID
	Date     time.Time
	Time     string
	Notes    string
}

func (s *Service) Schedule(ctx context.Context, act actor.Actor, params ScheduleParams) (*Appointment, error) {
	if params.SaleID == uuid.Nil {
		return nil, &ValidationError{Field: "sale_id", Reason: "required"}
	}

	if params.ClientID == uuid.Nil {
		return nil, &ValidationError{Field: "client_id", Reason: "required"}
	}

	if params.Date.IsZero() {
		return nil, &ValidationError{Field: "appointment_date", Reason: "required"}
	}

	if !timeSlotRe.MatchString(params.Time) {
		return nil, &ValidationError{Field: "appointment_time", Reason: "must be HH:MM"}
	}

	appt := &Appointment{
		SaleID:   params.SaleID,
		ClientID: params.ClientID,
		Date:     params.Date,
		Time:     params.Time,
		Notes:    params.Notes,
		Status:   StatusScheduled,
	}

	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Change{
		EntityType: EntityType,
		EntityID:   appt.ID,
		Action:     audit.ActionCreated,
		Actor:      act,
		After:      snapshot(appt),
	})

	return appt, nil
}

type RescheduleParams struct {
	Date  *time.Time
	Time  *string
	Notes *string
}

// Reschedule edits the slot of an appointment that is still scheduled.
// Terminal appointments are immutable.
func (s *Service) Reschedule(ctx context.Context, act actor.Actor, id uuid.UUID, params RescheduleParams) (*Appointment, error) {
	before, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if before.Status != StatusScheduled {
		return nil, fmt.Errorf("reschedule appointment in status %q: %w", before.Status, ErrConflict)
	}

	after := *before

	if params.Date != nil {
		after.Date = *params.Date
	}

	if params.Time != nil {
		if !timeSlotRe.MatchString(*params.Time) {
			return nil, &ValidationError{Field: "appointment_time", Reason: "must be HH:MM"}
		}

		after.Time = *params.Time
	}

	if params.Notes != nil {
		after.Notes = *params.Notes
	}

	if err := s.repo.UpdateAppointment(ctx, &after, StatusScheduled); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Change{
		EntityType: EntityType,
		EntityID:   id,
		Action:     audit.ActionUpdated,
		Actor:      act,
		Before:     snapshot(before),
		After:      snapshot(&after),
	})

	return &after, nil
}

func (s *Service) Complete(ctx context.Context, act actor.Actor, id uuid.UUID) (*Appointment, error) {
	return s.close(ctx, act, id, StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, act actor.Actor, id uuid.UUID) (*Appointment, error) {
	return s.close(ctx, act, id, StatusCancelled)
}

func (s *Service) MarkNoShow(ctx context.Context, act actor.Actor, id uuid.UUID) (*Appointment, error) {
	return s.close(ctx, act, id, StatusNoShow)
}

// close moves a scheduled appointment to one of its terminal states.
func (s *Service) close(ctx context.Context, act actor.Actor, id uuid.UUID, to Status) (*Appointment, error) {
	before, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if before.Status != StatusScheduled {
		return nil, fmt.Errorf("close appointment in status %q: %w", before.Status, ErrConflict)
	}

	after := *before
	after.Status = to

	if err := s.repo.UpdateAppointment(ctx, &after, StatusScheduled); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Change{
		EntityType: EntityType,
		EntityID:   id,
		Action:     audit.ActionUpdated,
		Actor:      act,
		Before:     snapshot(before),
		After:      snapshot(&after),
	})

	return &after, nil
}

// Delete removes an appointment outright. Owner-only; the pre-delete
// snapshot goes into the audit trail so the record can be reconstructed.
func (s *Service) Delete(ctx context.Context, act actor.Actor, id uuid.UUID) error {
	if !act.IsOwner() {
		return ErrForbidden
	}

	before, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteAppointment(ctx, id); err != nil {
		return err
	}

	s.record(ctx, audit.Change{
		EntityType: EntityType,
		EntityID:   id,
		Action:     audit.ActionDeleted,
		Actor:      act,
		Before:     snapshot(before),
	})

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	return s.repo.ListAppointments(ctx, filter)
}

// record writes the audit entry best-effort: the mutation already happened.
func (s *Service) record(ctx context.Context, change audit.Change) {
	if _, err := s.recorder.Record(ctx, change); err != nil {
		slog.Error("audit write failed", "entity_type", EntityType, "entity_id", change.EntityID, "error", err)
	}
}

func snapshot(a *Appointment) map[string]any {
	return map[string]any{
		"sale_id":          a.SaleID.String(),
		"client_id":        a.ClientID.String(),
		"appointment_date": a.Date.Format(time.DateOnly),
		"appointment_time": a.Time,
		"status":           string(a.Status),
		"notes":            a.Notes,
	}
}
