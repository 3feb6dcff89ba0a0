package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/parcel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetParcel(ctx context.Context, id uuid.UUID) (*parcel.Parcel, error) {
	query := `
		SELECT id, batch_id, number, surface_m2, status, created_at, updated_at
		FROM land_pieces
		WHERE id = $1
	`

	var p parcel.Parcel

	var statusStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.BatchID, &p.Number, &p.SurfaceM2, &statusStr, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, parcel.ErrNotFound
		}

		return nil, fmt.Errorf("getting parcel: %w", err)
	}

	p.Status = parcel.Status(statusStr)

	return &p, nil
}

func (s *Store) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*parcel.Parcel, error) {
	query := `
		SELECT id, batch_id, number, surface_m2, status, created_at, updated_at
		FROM land_pieces
		WHERE batch_id = $1
		ORDER BY number ASC
	`

	rows, err := s.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("listing parcels: %w", err)
	}
	defer rows.Close()

	var parcels []*parcel.Parcel

	for rows.Next() {
		var p parcel.Parcel

		var statusStr string

		if err := rows.Scan(&p.ID, &p.BatchID, &p.Number, &p.SurfaceM2, &statusStr, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning parcel: %w", err)
		}

		p.Status = parcel.Status(statusStr)
		parcels = append(parcels, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating parcel rows: %w", err)
	}

	return parcels, nil
}

func (s *Store) CreateParcel(ctx context.Context, p *parcel.Parcel) error {
	query := `
		INSERT INTO land_pieces (batch_id, number, surface_m2, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.BatchID,
		p.Number,
		p.SurfaceM2,
		p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating parcel: %w", err)
	}

	return nil
}

// ExistingNumbers returns which of the given parcel numbers are already taken
// within the batch. Used by the inventory importer to report duplicates.
func (s *Store) ExistingNumbers(ctx context.Context, batchID uuid.UUID, numbers []string) (map[string]struct{}, error) {
	if len(numbers) == 0 {
		return nil, nil
	}

	query := `
		SELECT number
		FROM land_pieces
		WHERE batch_id = $1 AND number = ANY($2)
	`

	rows, err := s.db.QueryContext(ctx, query, batchID, numbers)
	if err != nil {
		return nil, fmt.Errorf("checking parcel numbers: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})

	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("scanning parcel number: %w", err)
		}

		existing[number] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating number rows: %w", err)
	}

	return existing, nil
}
