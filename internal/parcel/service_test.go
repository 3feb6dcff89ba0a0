package parcel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/terrakit/terrakit/internal/parcel"
)

func TestService_ImportInventory(t *testing.T) {
	batchID := uuid.New()

	rows := []parcel.InventoryRow{
		{Number: "A-1", SurfaceM2: 250},
		{Number: "A-2", SurfaceM2: 310.5},
		{Number: "A-3", SurfaceM2: 500},
	}

	t.Run("AllNew", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := parcel.NewMockRepository(ctrl)
		repo.EXPECT().
			ExistingNumbers(gomock.Any(), batchID, []string{"A-1", "A-2", "A-3"}).
			Return(map[string]struct{}{}, nil)
		repo.EXPECT().
			CreateParcel(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *parcel.Parcel) error {
				assert.Equal(t, batchID, p.BatchID)
				assert.Equal(t, parcel.StatusAvailable, p.Status)
				p.ID = uuid.New()
				return nil
			}).
			Times(3)

		svc := parcel.NewService(repo)
		result, err := svc.ImportInventory(context.Background(), batchID, rows, false)

		require.NoError(t, err)
		assert.Len(t, result.Created, 3)
		assert.Empty(t, result.Duplicates)
	})

	t.Run("DuplicatesBlockWithoutSkip", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := parcel.NewMockRepository(ctrl)
		repo.EXPECT().
			ExistingNumbers(gomock.Any(), batchID, gomock.Any()).
			Return(map[string]struct{}{"A-2": {}}, nil)

		svc := parcel.NewService(repo)
		result, err := svc.ImportInventory(context.Background(), batchID, rows, false)

		require.NoError(t, err)
		assert.Empty(t, result.Created)
		assert.Equal(t, []string{"A-2"}, result.Duplicates)
	})

	t.Run("SkipDuplicatesCreatesRest", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := parcel.NewMockRepository(ctrl)
		repo.EXPECT().
			ExistingNumbers(gomock.Any(), batchID, gomock.Any()).
			Return(map[string]struct{}{"A-2": {}}, nil)
		repo.EXPECT().
			CreateParcel(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *parcel.Parcel) error {
				assert.NotEqual(t, "A-2", p.Number)
				return nil
			}).
			Times(2)

		svc := parcel.NewService(repo)
		result, err := svc.ImportInventory(context.Background(), batchID, rows, true)

		require.NoError(t, err)
		assert.Len(t, result.Created, 2)
		assert.Equal(t, []string{"A-2"}, result.Duplicates)
	})

	t.Run("RepoError", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := parcel.NewMockRepository(ctrl)
		repo.EXPECT().
			ExistingNumbers(gomock.Any(), batchID, gomock.Any()).
			Return(nil, errors.New("db error"))

		svc := parcel.NewService(repo)
		_, err := svc.ImportInventory(context.Background(), batchID, rows, false)

		assert.Error(t, err)
	})
}
