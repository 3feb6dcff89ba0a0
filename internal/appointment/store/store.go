package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/appointment"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

const selectColumns = `
	id, sale_id, client_id, appointment_date, appointment_time, status, notes, created_at, updated_at
`

func scanAppointment(sc scanner) (*appointment.Appointment, error) {
	var a appointment.Appointment

	var statusStr string

	var notes sql.NullString

	if err := sc.Scan(
		&a.ID, &a.SaleID, &a.ClientID, &a.Date, &a.Time, &statusStr, &notes, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	a.Status = appointment.Status(statusStr)
	a.Notes = notes.String

	return &a, nil
}

func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE id = $1`

	a, err := scanAppointment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appointment.ErrNotFound
		}

		return nil, fmt.Errorf("getting appointment: %w", err)
	}

	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context, filter appointment.ListFilter) ([]*appointment.Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE 1=1`

	var args []any

	argIdx := 1

	if filter.SaleID != nil {
		query += fmt.Sprintf(" AND sale_id = $%d", argIdx)

		args = append(args, *filter.SaleID)
		argIdx++
	}

	if filter.ClientID != nil {
		query += fmt.Sprintf(" AND client_id = $%d", argIdx)

		args = append(args, *filter.ClientID)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.From != nil {
		query += fmt.Sprintf(" AND appointment_date >= $%d", argIdx)

		args = append(args, *filter.From)
		argIdx++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND appointment_date <= $%d", argIdx)

		args = append(args, *filter.To)
	}

	query += " ORDER BY appointment_date ASC, appointment_time ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}
	defer rows.Close()

	var appts []*appointment.Appointment

	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning appointment: %w", err)
		}

		appts = append(appts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating appointment rows: %w", err)
	}

	return appts, nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *appointment.Appointment) error {
	query := `
		INSERT INTO appointments (sale_id, client_id, appointment_date, appointment_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		a.SaleID,
		a.ClientID,
		a.Date,
		a.Time,
		a.Status,
		a.Notes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating appointment: %w", err)
	}

	return nil
}

// UpdateAppointment writes the row only while it is still in the expected
// status; zero affected rows means another session closed it first.
func (s *Store) UpdateAppointment(ctx context.Context, a *appointment.Appointment, expected appointment.Status) error {
	query := `
		UPDATE appointments
		SET appointment_date = $1, appointment_time = $2, status = $3, notes = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6
	`

	res, err := s.db.ExecContext(ctx, query, a.Date, a.Time, a.Status, a.Notes, a.ID, expected)
	if err != nil {
		return fmt.Errorf("updating appointment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if affected == 0 {
		return appointment.ErrConflict
	}

	return nil
}

func (s *Store) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting appointment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if affected == 0 {
		return appointment.ErrNotFound
	}

	return nil
}
