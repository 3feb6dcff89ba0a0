package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/terrakit/terrakit/internal/actor"
	"github.com/terrakit/terrakit/internal/audit"
)

func TestDiff(t *testing.T) {
	type testCase struct {
		name   string
		before map[string]any
		after  map[string]any
		want   map[string]audit.FieldChange
	}

	tests := []testCase{
		{
			name:   "SingleFieldChanged",
			before: map[string]any{"appointment_date": "2025-06-12", "status": "scheduled"},
			after:  map[string]any{"appointment_date": "2025-06-20", "status": "scheduled"},
			want: map[string]audit.FieldChange{
				"appointment_date": {Old: "2025-06-12", New: "2025-06-20"},
			},
		},
		{
			name:   "NoChanges",
			before: map[string]any{"status": "pending"},
			after:  map[string]any{"status": "pending"},
			want:   map[string]audit.FieldChange{},
		},
		{
			name:   "FieldAdded",
			before: map[string]any{"status": "pending"},
			after:  map[string]any{"status": "pending", "company_fee_amount": int64(25000)},
			want: map[string]audit.FieldChange{
				"company_fee_amount": {Old: nil, New: int64(25000)},
			},
		},
		{
			name:   "FieldRemoved",
			before: map[string]any{"status": "completed", "confirmed_by": "u-1"},
			after:  map[string]any{"status": "pending"},
			want: map[string]audit.FieldChange{
				"status":       {Old: "completed", New: "pending"},
				"confirmed_by": {Old: "u-1", New: nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, audit.Diff(tt.before, tt.after))
		})
	}
}

func TestService_Record(t *testing.T) {
	act := actor.Actor{ID: uuid.New(), Name: "Marta", Role: actor.RoleOwner}
	entityID := uuid.New()

	t.Run("CreatedStoresSnapshot", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := audit.NewMockRepository(ctrl)
		repo.EXPECT().
			AppendEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *audit.Entry) error {
				assert.Equal(t, "sale", e.EntityType)
				assert.Equal(t, act.ID, e.ActorID)
				assert.Equal(t, map[string]any{"status": "pending"}, e.Snapshot)
				assert.Empty(t, e.Changes)
				return nil
			})

		svc := audit.NewService(repo)

		entry, err := svc.Record(context.Background(), audit.Change{
			EntityType: "sale",
			EntityID:   entityID,
			Action:     audit.ActionCreated,
			Actor:      act,
			After:      map[string]any{"status": "pending"},
		})

		require.NoError(t, err)
		assert.NotNil(t, entry)
	})

	t.Run("DeletedStoresBeforeSnapshot", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := audit.NewMockRepository(ctrl)
		repo.EXPECT().
			AppendEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *audit.Entry) error {
				assert.Equal(t, map[string]any{"status": "cancelled"}, e.Snapshot)
				return nil
			})

		svc := audit.NewService(repo)

		_, err := svc.Record(context.Background(), audit.Change{
			EntityType: "sale",
			EntityID:   entityID,
			Action:     audit.ActionDeleted,
			Actor:      act,
			Before:     map[string]any{"status": "cancelled"},
		})

		require.NoError(t, err)
	})

	t.Run("UpdatedWithNoDiffWritesNothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := audit.NewMockRepository(ctrl)

		svc := audit.NewService(repo)

		entry, err := svc.Record(context.Background(), audit.Change{
			EntityType: "sale",
			EntityID:   entityID,
			Action:     audit.ActionUpdated,
			Actor:      act,
			Before:     map[string]any{"status": "pending"},
			After:      map[string]any{"status": "pending"},
		})

		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := audit.NewMockRepository(ctrl)

		svc := audit.NewService(repo)

		_, err := svc.Record(context.Background(), audit.Change{
			EntityType: "sale",
			EntityID:   entityID,
			Action:     audit.Action("exploded"),
			Actor:      act,
		})

		assert.Error(t, err)
	})

	t.Run("RepoError", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := audit.NewMockRepository(ctrl)
		repo.EXPECT().
			AppendEntry(gomock.Any(), gomock.Any()).
			Return(errors.New("db error"))

		svc := audit.NewService(repo)

		_, err := svc.Record(context.Background(), audit.Change{
			EntityType: "sale",
			EntityID:   entityID,
			Action:     audit.ActionCreated,
			Actor:      act,
			After:      map[string]any{"status": "pending"},
		})

		assert.Error(t, err)
	})
}
