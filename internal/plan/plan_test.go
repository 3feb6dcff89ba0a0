package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrakit/terrakit/internal/plan"
)

func TestCompute(t *testing.T) {
	type args struct {
		surfaceM2   float64
		offer       plan.Offer
		depositPaid int64
	}

	type testCase struct {
		name      string
		args      args
		want      plan.Plan
		wantField string
	}

	tests := []testCase{
		{
			name: "PercentAdvanceFixedMonths",
			args: args{
				surfaceM2: 500,
				offer: plan.Offer{
					PricePerM2:   20000, // 200.00 per m²
					AdvanceMode:  plan.AdvancePercent,
					AdvanceValue: 10,
					CalcMode:     plan.CalcByMonths,
					Months:       24,
				},
				depositPaid: 500000, // 5000.00 already received
			},
			want: plan.Plan{
				Total:               10000000,
				AdvanceTotal:        1000000,
				AdvanceAfterDeposit: 500000,
				MonthlyAmount:       375000, // 3750.00
				Months:              24,
			},
		},
		{
			name: "FixedAdvanceMonthlyAmount",
			args: args{
				surfaceM2: 300,
				offer: plan.Offer{
					PricePerM2:    15000,
					AdvanceMode:   plan.AdvanceFixed,
					AdvanceValue:  500000,
					CalcMode:      plan.CalcByMonthlyAmount,
					MonthlyAmount: 250000,
				},
			},
			want: plan.Plan{
				Total:               4500000,
				AdvanceTotal:        500000,
				AdvanceAfterDeposit: 500000,
				MonthlyAmount:       250000,
				Months:              16,
			},
		},
		{
			name: "DepositLargerThanAdvance",
			args: args{
				surfaceM2: 100,
				offer: plan.Offer{
					PricePerM2:   10000,
					AdvanceMode:  plan.AdvanceFixed,
					AdvanceValue: 100000,
					CalcMode:     plan.CalcByMonths,
					Months:       10,
				},
				depositPaid: 300000,
			},
			want: plan.Plan{
				Total:               1000000,
				AdvanceTotal:        100000,
				AdvanceAfterDeposit: 0,
				MonthlyAmount:       90000,
				Months:              10,
			},
		},
		{
			name: "UnevenDivisionRoundsHalfUp",
			args: args{
				surfaceM2: 100,
				offer: plan.Offer{
					PricePerM2:   10000,
					AdvanceMode:  plan.AdvanceFixed,
					AdvanceValue: 0,
					CalcMode:     plan.CalcByMonths,
					Months:       7,
				},
			},
			want: plan.Plan{
				Total:               1000000,
				AdvanceTotal:        0,
				AdvanceAfterDeposit: 0,
				MonthlyAmount:       142857, // 1000000/7 = 142857.14…, half-up
				Months:              7,
			},
		},
		{
			name: "ZeroMonthsRejected",
			args: args{
				surfaceM2: 100,
				offer: plan.Offer{
					PricePerM2:  10000,
					AdvanceMode: plan.AdvanceFixed,
					CalcMode:    plan.CalcByMonths,
					Months:      0,
				},
			},
			wantField: "months",
		},
		{
			name: "ZeroMonthlyAmountRejected",
			args: args{
				surfaceM2: 100,
				offer: plan.Offer{
					PricePerM2:  10000,
					AdvanceMode: plan.AdvanceFixed,
					CalcMode:    plan.CalcByMonthlyAmount,
				},
			},
			wantField: "monthly_amount",
		},
		{
			name: "AdvanceAboveTotalRejected",
			args: args{
				surfaceM2: 10,
				offer: plan.Offer{
					PricePerM2:   10000,
					AdvanceMode:  plan.AdvanceFixed,
					AdvanceValue: 200000,
					CalcMode:     plan.CalcByMonths,
					Months:       12,
				},
			},
			wantField: "advance_value",
		},
		{
			name: "PercentAbove100Rejected",
			args: args{
				surfaceM2: 10,
				offer: plan.Offer{
					PricePerM2:   10000,
					AdvanceMode:  plan.AdvancePercent,
					AdvanceValue: 150,
					CalcMode:     plan.CalcByMonths,
					Months:       12,
				},
			},
			wantField: "advance_value",
		},
		{
			// financed = 15 cents over 24 months: monthly rounds to 1 and
			// the settling entry would go negative (15 - 23 = -8).
			name: "TinyFinancedRemainderRejected",
			args: args{
				surfaceM2: 1,
				offer: plan.Offer{
					PricePerM2:   3000000,
					AdvanceMode:  plan.AdvanceFixed,
					AdvanceValue: 2999985,
					CalcMode:     plan.CalcByMonths,
					Months:       24,
				},
			},
			wantField: "months",
		},
		{
			// financed = 24 cents over 24 months is the smallest payable
			// plan: every installment is exactly one cent.
			name: "OneCentInstallmentsAllowed",
			args: args{
				surfaceM2: 1,
				offer: plan.Offer{
					PricePerM2:   3000000,
					AdvanceMode:  plan.AdvanceFixed,
					AdvanceValue: 2999976,
					CalcMode:     plan.CalcByMonths,
					Months:       24,
				},
			},
			want: plan.Plan{
				Total:               3000000,
				AdvanceTotal:        2999976,
				AdvanceAfterDeposit: 2999976,
				MonthlyAmount:       1,
				Months:              24,
			},
		},
		{
			name: "NegativeSurfaceRejected",
			args: args{
				surfaceM2: -5,
				offer: plan.Offer{
					PricePerM2:  10000,
					AdvanceMode: plan.AdvanceFixed,
					CalcMode:    plan.CalcByMonths,
					Months:      12,
				},
			},
			wantField: "surface_m2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := plan.Compute(tt.args.surfaceM2, tt.args.offer, tt.args.depositPaid)

			if tt.wantField != "" {
				var invalid *plan.InvalidPlanError

				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, tt.wantField, invalid.Field)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.Total, got.Total)
			assert.Equal(t, tt.want.AdvanceTotal, got.AdvanceTotal)
			assert.Equal(t, tt.want.AdvanceAfterDeposit, got.AdvanceAfterDeposit)
			assert.Equal(t, tt.want.MonthlyAmount, got.MonthlyAmount)
			assert.Equal(t, tt.want.Months, got.Months)
			assert.Len(t, got.Schedule, got.Months)
		})
	}
}

func TestCompute_ScheduleSumsToFinancedAmount(t *testing.T) {
	offers := []plan.Offer{
		{PricePerM2: 10000, AdvanceMode: plan.AdvanceFixed, AdvanceValue: 0, CalcMode: plan.CalcByMonths, Months: 7},
		{PricePerM2: 33333, AdvanceMode: plan.AdvancePercent, AdvanceValue: 15, CalcMode: plan.CalcByMonths, Months: 36},
		{PricePerM2: 25000, AdvanceMode: plan.AdvanceFixed, AdvanceValue: 120000, CalcMode: plan.CalcByMonthlyAmount, MonthlyAmount: 97000},
	}

	for _, offer := range offers {
		p, err := plan.Compute(123.45, offer, 0)
		require.NoError(t, err)

		var sum int64
		for _, amount := range p.Schedule {
			sum += amount
		}

		assert.Equal(t, p.Total-p.AdvanceTotal, sum)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	offer := plan.Offer{
		PricePerM2:   17350,
		AdvanceMode:  plan.AdvancePercent,
		AdvanceValue: 20,
		CalcMode:     plan.CalcByMonths,
		Months:       18,
	}

	first, err := plan.Compute(217.8, offer, 40000)
	require.NoError(t, err)

	second, err := plan.Compute(217.8, offer, 40000)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// Deriving the monthly amount from a month count and feeding it back through
// the fixed-monthly-amount mode must land on the original month count again.
func TestCompute_MonthsRoundTrip(t *testing.T) {
	for _, months := range []int{6, 12, 24, 36, 48} {
		offer := plan.Offer{
			PricePerM2:   20000,
			AdvanceMode:  plan.AdvancePercent,
			AdvanceValue: 10,
			CalcMode:     plan.CalcByMonths,
			Months:       months,
		}

		byMonths, err := plan.Compute(500, offer, 0)
		require.NoError(t, err)

		offer.CalcMode = plan.CalcByMonthlyAmount
		offer.MonthlyAmount = byMonths.MonthlyAmount

		byAmount, err := plan.Compute(500, offer, 0)
		require.NoError(t, err)

		assert.InDelta(t, months, byAmount.Months, 1)
	}
}
