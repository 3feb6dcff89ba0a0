package parcel

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=parcel
type Repository interface {
	GetParcel(ctx context.Context, id uuid.UUID) (*Parcel, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*Parcel, error)
	CreateParcel(ctx context.Context, p *Parcel) error
	ExistingNumbers(ctx context.Context, batchID uuid.UUID, numbers []string) (map[string]struct{}, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ImportResult reports what an inventory import did. Duplicates are parcel
// numbers already present in the batch; nothing is created until the caller
// decides what to do with them.
type ImportResult struct {
	Created    []*Parcel
	Duplicates []string
}

// ImportInventory creates parcels from parsed inventory rows. When the batch
// already contains some of the numbers and skipDuplicates is false, nothing
// is written and the duplicates are reported back so the caller can confirm.
// With skipDuplicates set, the new rows are created and the duplicates
// silently dropped.
func (s *Service) ImportInventory(ctx context.Context, batchID uuid.UUID, rows []InventoryRow, skipDuplicates bool) (*ImportResult, error) {
	numbers := make([]string, len(rows))
	for i, row := range rows {
		numbers[i] = row.Number
	}

	existing, err := s.repo.ExistingNumbers(ctx, batchID, numbers)
	if err != nil {
		return nil, fmt.Errorf("checking existing parcel numbers: %w", err)
	}

	result := &ImportResult{}

	for _, row := range rows {
		if _, ok := existing[row.Number]; ok {
			result.Duplicates = append(result.Duplicates, row.Number)
		}
	}

	if len(result.Duplicates) > 0 && !skipDuplicates {
		return result, nil
	}

	for _, row := range rows {
		if _, ok := existing[row.Number]; ok {
			continue
		}

		p := &Parcel{
			BatchID:   batchID,
			Number:    row.Number,
			SurfaceM2: row.SurfaceM2,
			Status:    StatusAvailable,
		}

		if err := s.repo.CreateParcel(ctx, p); err != nil {
			return nil, fmt.Errorf("creating parcel %s: %w", row.Number, err)
		}

		result.Created = append(result.Created, p)
	}

	return result, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Parcel, error) {
	return s.repo.GetParcel(ctx, id)
}

func (s *Service) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*Parcel, error) {
	return s.repo.ListByBatch(ctx, batchID)
}
