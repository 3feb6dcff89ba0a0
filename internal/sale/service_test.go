package sale_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/terrakit/terrakit/internal/actor"
	"github.com/terrakit/terrakit/internal/parcel"
	"github.com/terrakit/terrakit/internal/plan"
	"github.com/terrakit/terrakit/internal/sale"
)

var testActor = actor.Actor{ID: uuid.New(), Name: "Ana", Role: actor.RoleStaff}

func i64ptr(v int64) *int64 { return &v }

func pendingSale(method sale.PaymentMethod) *sale.Sale {
	return &sale.Sale{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		ParcelID: uuid.New(),
		BatchID:  uuid.New(),
		Price:    10_000_000,
		Deposit:  400_000,
		Method:   method,
		Status:   sale.StatusPending,
		SaleDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestService_Reserve(t *testing.T) {
	type testCase struct {
		name      string
		params    sale.ReserveParams
		setupMock func(repo *sale.MockRepository, tx *sale.MockTransitionTx)
		wantErr   bool
	}

	validParams := sale.ReserveParams{
		ClientID: uuid.New(),
		ParcelID: uuid.New(),
		BatchID:  uuid.New(),
		Price:    500_000,
		Deposit:  50_000,
		Method:   sale.MethodFull,
	}

	tests := []testCase{
		{
			name:   "Success",
			params: validParams,
			setupMock: func(repo *sale.MockRepository, tx *sale.MockTransitionTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().
					UpdateParcelStatus(gomock.Any(), validParams.ParcelID, parcel.StatusAvailable, parcel.StatusReserved).
					Return(nil)
				tx.EXPECT().
					CreateSale(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, s *sale.Sale) error {
						s.ID = uuid.New()
						s.CreatedAt = time.Now()
						return nil
					})
				tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
		},
		{
			name: "ParcelAlreadyClaimed",
			params: sale.ReserveParams{
				ClientID: validParams.ClientID,
				ParcelID: validParams.ParcelID,
				BatchID:  validParams.BatchID,
				Price:    500_000,
			},
			setupMock: func(repo *sale.MockRepository, tx *sale.MockTransitionTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().
					UpdateParcelStatus(gomock.Any(), gomock.Any(), parcel.StatusAvailable, parcel.StatusReserved).
					Return(sale.ErrConflict)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: true,
		},
		{
			name: "MissingClient",
			params: sale.ReserveParams{
				ParcelID: uuid.New(),
				BatchID:  uuid.New(),
				Price:    500_000,
			},
			wantErr: true,
		},
		{
			name: "InstallmentWithoutOffer",
			params: sale.ReserveParams{
				ClientID: uuid.New(),
				ParcelID: uuid.New(),
				BatchID:  uuid.New(),
				Price:    500_000,
				Method:   sale.MethodInstallment,
			},
			wantErr: true,
		},
		{
			name: "PartialPaymentOnNonPromise",
			params: sale.ReserveParams{
				ClientID:       uuid.New(),
				ParcelID:       uuid.New(),
				BatchID:        uuid.New(),
				Price:          500_000,
				PartialPayment: i64ptr(100_000),
				Method:         sale.MethodFull,
			},
			wantErr: true,
		},
		{
			name: "NegativeDeposit",
			params: sale.ReserveParams{
				ClientID: uuid.New(),
				ParcelID: uuid.New(),
				BatchID:  uuid.New(),
				Price:    500_000,
				Deposit:  -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := sale.NewMockRepository(ctrl)
			tx := sale.NewMockTransitionTx(ctrl)

			if tt.setupMock != nil {
				tt.setupMock(repo, tx)
			}

			svc := sale.NewService(repo)
			got, err := svc.Reserve(context.Background(), testActor, tt.params)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, sale.StatusPending, got.Status)
			assert.Equal(t, testActor.ID, got.SoldBy)
			assert.NotEmpty(t, got.ID)
		})
	}
}

func TestService_Reserve_ComputesRemainingForPromise(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := sale.NewMockRepository(ctrl)
	tx := sale.NewMockTransitionTx(ctrl)

	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().UpdateParcelStatus(gomock.Any(), gomock.Any(), parcel.StatusAvailable, parcel.StatusReserved).Return(nil)
	tx.EXPECT().CreateSale(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)

	svc := sale.NewService(repo)

	partial := int64(30_000)
	got, err := svc.Reserve(context.Background(), testActor, sale.ReserveParams{
		ClientID:       uuid.New(),
		ParcelID:       uuid.New(),
		BatchID:        uuid.New(),
		Price:          100_000,
		PartialPayment: &partial,
		Method:         sale.MethodPromise,
	})

	require.NoError(t, err)
	require.NotNil(t, got.RemainingPayment)
	assert.Equal(t, int64(70_000), *got.RemainingPayment)
}

func TestService_Confirm(t *testing.T) {
	type testCase struct {
		name      string
		fee       int64
		before    func() *sale.Sale
		setupMock func(repo *sale.MockRepository, tx *sale.MockTransitionTx, before *sale.Sale)
		check     func(t *testing.T, got *sale.Sale)
		wantErr   bool
		errIs     error
	}

	fullTransition := func(repo *sale.MockRepository, tx *sale.MockTransitionTx, before *sale.Sale) {
		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().MarkConfirmed(gomock.Any(), before.ID, gomock.Any()).Return(nil)
		tx.EXPECT().
			UpdateParcelStatus(gomock.Any(), before.ParcelID, parcel.StatusReserved, parcel.StatusSold).
			Return(nil)
		tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)
	}

	tests := []testCase{
		{
			name:      "FullPayment",
			fee:       25_000,
			before:    func() *sale.Sale { return pendingSale(sale.MethodFull) },
			setupMock: fullTransition,
			check: func(t *testing.T, got *sale.Sale) {
				assert.Equal(t, sale.StatusCompleted, got.Status)
				require.NotNil(t, got.ConfirmedBy)
				assert.Equal(t, testActor.ID, *got.ConfirmedBy)
				require.NotNil(t, got.CompanyFee)
				assert.Equal(t, int64(25_000), *got.CompanyFee)
			},
		},
		{
			name: "InstallmentMaterializesLedger",
			before: func() *sale.Sale {
				s := pendingSale(sale.MethodInstallment)
				offerID := uuid.New()
				s.OfferID = &offerID
				s.Parcel = &parcel.Parcel{ID: s.ParcelID, Number: "A-12", SurfaceM2: 500}
				s.Offer = &plan.Offer{
					ID:           offerID,
					Name:         "Standard 24",
					PricePerM2:   20_000,
					AdvanceMode:  plan.AdvancePercent,
					AdvanceValue: 10,
					CalcMode:     plan.CalcByMonths,
					Months:       24,
				}
				return s
			},
			setupMock: func(repo *sale.MockRepository, tx *sale.MockTransitionTx, before *sale.Sale) {
				repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().MarkConfirmed(gomock.Any(), before.ID, gomock.Any()).Return(nil)
				tx.EXPECT().
					UpdateParcelStatus(gomock.Any(), before.ParcelID, parcel.StatusReserved, parcel.StatusSold).
					Return(nil)
				tx.EXPECT().
					InsertInstallments(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, rows []sale.InstallmentPayment) error {
						require.Len(t, rows, 24)

						var sum int64
						for i, row := range rows {
							assert.Equal(t, i+1, row.Seq)
							assert.Equal(t, before.ID, row.SaleID)
							sum += row.Amount
						}

						// 500 m2 * 20000 = 10_000_000 total, 10% advance,
						// 9_000_000 financed over 24 months.
						assert.Equal(t, int64(9_000_000), sum)
						assert.Equal(t, int64(375_000), rows[0].Amount)

						return nil
					})
				tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			check: func(t *testing.T, got *sale.Sale) {
				assert.Equal(t, sale.StatusCompleted, got.Status)
			},
		},
		{
			name: "LegacyBlankMethodInfersInstallment",
			before: func() *sale.Sale {
				s := pendingSale("")
				offerID := uuid.New()
				s.OfferID = &offerID
				s.Parcel = &parcel.Parcel{ID: s.ParcelID, Number: "B-3", SurfaceM2: 250}
				s.Offer = &plan.Offer{
					ID:           offerID,
					PricePerM2:   20_000,
					AdvanceMode:  plan.AdvanceFixed,
					AdvanceValue: 500_000,
					CalcMode:     plan.CalcByMonths,
					Months:       12,
				}
				return s
			},
			setupMock: func(repo *sale.MockRepository, tx *sale.MockTransitionTx, before *sale.Sale) {
				repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().MarkConfirmed(gomock.Any(), before.ID, gomock.Any()).Return(nil)
				tx.EXPECT().UpdateParcelStatus(gomock.Any(), before.ParcelID, parcel.StatusReserved, parcel.StatusSold).Return(nil)
				tx.EXPECT().
					InsertInstallments(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, rows []sale.InstallmentPayment) error {
						assert.Len(t, rows, 12)
						return nil
					})
				tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			check: func(t *testing.T, got *sale.Sale) {
				assert.Equal(t, sale.StatusCompleted, got.Status)
			},
		},
		{
			name: "PromisePartialExceedsPrice",
			before: func() *sale.Sale {
				s := pendingSale(sale.MethodPromise)
				s.PartialPayment = i64ptr(s.Price + 1)
				return s
			},
			setupMock: func(repo *sale.MockRepository, _ *sale.MockTransitionTx, before *sale.Sale) {
				repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
			},
			wantErr: true,
		},
		{
			name: "NoMethodSelected",
			before: func() *sale.Sale {
				return pendingSale("")
			},
			setupMock: func(repo *sale.MockRepository, _ *sale.MockTransitionTx, before *sale.Sale) {
				repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
			},
			wantErr: true,
		},
		{
			name: "AlreadyCompleted",
			before: func() *sale.Sale {
				s := pendingSale(sale.MethodFull)
				s.Status = sale.StatusCompleted
				return s
			},
			setupMock: func(repo *sale.MockRepository, _ *sale.MockTransitionTx, before *sale.Sale) {
				repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
			},
			wantErr: true,
			errIs:   sale.ErrConflict,
		},
		{
			name: "LostRaceOnConditionalUpdate",
			before: func() *sale.Sale {
				return pendingSale(sale.MethodFull)
			},
			setupMock: func(repo *sale.MockRepository, tx *sale.MockTransitionTx, before *sale.Sale) {
				repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().MarkConfirmed(gomock.Any(), before.ID, gomock.Any()).Return(sale.ErrConflict)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: true,
			errIs:   sale.ErrConflict,
		},
		{
			name:    "NegativeFee",
			fee:     -1,
			before:  func() *sale.Sale { return pendingSale(sale.MethodFull) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := sale.NewMockRepository(ctrl)
			tx := sale.NewMockTransitionTx(ctrl)
			before := tt.before()

			if tt.setupMock != nil {
				tt.setupMock(repo, tx, before)
			}

			svc := sale.NewService(repo)
			got, err := svc.Confirm(context.Background(), testActor, before.ID, tt.fee)

			if tt.wantErr {
				require.Error(t, err)

				if tt.errIs != nil {
					assert.ErrorIs(t, err, tt.errIs)
				}

				return
			}

			require.NoError(t, err)

			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestService_Cancel(t *testing.T) {
	t.Run("CompletedSaleReleasesSoldParcel", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)
		tx := sale.NewMockTransitionTx(ctrl)

		before := pendingSale(sale.MethodFull)
		before.Status = sale.StatusCompleted

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().MarkCancelled(gomock.Any(), before.ID, sale.StatusCompleted).Return(nil)
		tx.EXPECT().
			UpdateParcelStatus(gomock.Any(), before.ParcelID, parcel.StatusSold, parcel.StatusAvailable).
			Return(nil)
		tx.EXPECT().DeleteInstallments(gomock.Any(), before.ID).Return(nil)
		tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		svc := sale.NewService(repo)
		got, err := svc.Cancel(context.Background(), testActor, before.ID)

		require.NoError(t, err)
		assert.Equal(t, sale.StatusCancelled, got.Status)
	})

	t.Run("CancellationIsTerminal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)

		before := pendingSale(sale.MethodFull)
		before.Status = sale.StatusCancelled

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)

		svc := sale.NewService(repo)
		_, err := svc.Cancel(context.Background(), testActor, before.ID)

		assert.ErrorIs(t, err, sale.ErrConflict)
	})
}

func TestService_Revert(t *testing.T) {
	t.Run("ClearsConfirmationAndPartials", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)
		tx := sale.NewMockTransitionTx(ctrl)

		before := pendingSale(sale.MethodPromise)
		before.Status = sale.StatusCompleted
		confirmedBy := uuid.New()
		confirmedAt := time.Now()
		before.ConfirmedBy = &confirmedBy
		before.ConfirmedAt = &confirmedAt
		before.PartialPayment = i64ptr(2_000_000)
		before.RemainingPayment = i64ptr(8_000_000)

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().MarkReverted(gomock.Any(), before.ID).Return(nil)
		tx.EXPECT().
			UpdateParcelStatus(gomock.Any(), before.ParcelID, parcel.StatusSold, parcel.StatusReserved).
			Return(nil)
		tx.EXPECT().DeleteInstallments(gomock.Any(), before.ID).Return(nil)
		tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		svc := sale.NewService(repo)
		got, err := svc.Revert(context.Background(), testActor, before.ID)

		require.NoError(t, err)
		assert.Equal(t, sale.StatusPending, got.Status)
		assert.Nil(t, got.ConfirmedBy)
		assert.Nil(t, got.ConfirmedAt)
		assert.Nil(t, got.PartialPayment)
		assert.Nil(t, got.RemainingPayment)
	})

	t.Run("OnlyCompletedSalesRevert", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)

		before := pendingSale(sale.MethodFull)

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)

		svc := sale.NewService(repo)
		_, err := svc.Revert(context.Background(), testActor, before.ID)

		assert.ErrorIs(t, err, sale.ErrConflict)
	})
}

func TestService_Remove(t *testing.T) {
	t.Run("CancelledSaleSkipsParcelRelease", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)
		tx := sale.NewMockTransitionTx(ctrl)

		before := pendingSale(sale.MethodFull)
		before.Status = sale.StatusCancelled

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().DeleteInstallments(gomock.Any(), before.ID).Return(nil)
		tx.EXPECT().DeleteSale(gomock.Any(), before.ID).Return(nil)
		tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		svc := sale.NewService(repo)

		assert.NoError(t, svc.Remove(context.Background(), testActor, before.ID))
	})

	t.Run("ReservedSaleReleasesParcel", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)
		tx := sale.NewMockTransitionTx(ctrl)

		before := pendingSale(sale.MethodFull)

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().DeleteInstallments(gomock.Any(), before.ID).Return(nil)
		tx.EXPECT().DeleteSale(gomock.Any(), before.ID).Return(nil)
		tx.EXPECT().
			UpdateParcelStatus(gomock.Any(), before.ParcelID, parcel.StatusReserved, parcel.StatusAvailable).
			Return(nil)
		tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		svc := sale.NewService(repo)

		assert.NoError(t, svc.Remove(context.Background(), testActor, before.ID))
	})
}

func TestService_Update(t *testing.T) {
	t.Run("RecomputesRemainingForPromise", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)
		tx := sale.NewMockTransitionTx(ctrl)

		before := pendingSale(sale.MethodPromise)
		before.PartialPayment = i64ptr(2_000_000)

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().UpdateSale(gomock.Any(), gomock.Any()).Return(nil)
		tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		svc := sale.NewService(repo)
		got, err := svc.Update(context.Background(), testActor, before.ID, sale.UpdateParams{
			PartialPayment: i64ptr(3_000_000),
		})

		require.NoError(t, err)
		require.NotNil(t, got.RemainingPayment)
		assert.Equal(t, int64(7_000_000), *got.RemainingPayment)
	})

	t.Run("PartialPaymentOnlyForPromise", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)

		before := pendingSale(sale.MethodFull)

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)

		svc := sale.NewService(repo)
		_, err := svc.Update(context.Background(), testActor, before.ID, sale.UpdateParams{
			PartialPayment: i64ptr(100_000),
		})

		var validation *sale.ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("CompletedSaleIsImmutable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)

		before := pendingSale(sale.MethodFull)
		before.Status = sale.StatusCompleted

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)

		svc := sale.NewService(repo)
		_, err := svc.Update(context.Background(), testActor, before.ID, sale.UpdateParams{
			Price: i64ptr(1),
		})

		assert.ErrorIs(t, err, sale.ErrConflict)
	})

	t.Run("InvalidAmountsRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := sale.NewMockRepository(ctrl)

		before := pendingSale(sale.MethodFull)

		repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)

		svc := sale.NewService(repo)
		_, err := svc.Update(context.Background(), testActor, before.ID, sale.UpdateParams{
			Price: i64ptr(0),
		})

		var validation *sale.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}

func TestService_AfterCommitHooks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := sale.NewMockRepository(ctrl)
	tx := sale.NewMockTransitionTx(ctrl)

	before := pendingSale(sale.MethodFull)
	before.Status = sale.StatusCompleted

	repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().MarkCancelled(gomock.Any(), before.ID, sale.StatusCompleted).Return(nil)
	tx.EXPECT().UpdateParcelStatus(gomock.Any(), before.ParcelID, parcel.StatusSold, parcel.StatusAvailable).Return(nil)
	tx.EXPECT().DeleteInstallments(gomock.Any(), before.ID).Return(nil)
	tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)

	svc := sale.NewService(repo)

	var got []sale.Mutation
	svc.AfterCommit(func(_ context.Context, m sale.Mutation) {
		got = append(got, m)
	})

	_, err := svc.Cancel(context.Background(), testActor, before.ID)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, sale.MutationUpdated, got[0].Kind)
	assert.Equal(t, sale.StatusCompleted, got[0].Before.Status)
	assert.Equal(t, sale.StatusCancelled, got[0].After.Status)
	assert.Equal(t, testActor, got[0].Actor)
}

func TestService_Confirm_HookNotCalledOnFailedCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := sale.NewMockRepository(ctrl)
	tx := sale.NewMockTransitionTx(ctrl)

	before := pendingSale(sale.MethodFull)

	repo.EXPECT().GetSale(gomock.Any(), before.ID).Return(before, nil)
	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().MarkConfirmed(gomock.Any(), before.ID, gomock.Any()).Return(nil)
	tx.EXPECT().UpdateParcelStatus(gomock.Any(), before.ParcelID, parcel.StatusReserved, parcel.StatusSold).Return(nil)
	tx.EXPECT().PublishChange(gomock.Any(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(errors.New("serialization failure"))
	tx.EXPECT().Rollback().Return(nil)

	svc := sale.NewService(repo)

	called := false
	svc.AfterCommit(func(context.Context, sale.Mutation) { called = true })

	_, err := svc.Confirm(context.Background(), testActor, before.ID, 0)

	assert.Error(t, err)
	assert.False(t, called)
}
