package plan

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// AdvanceMode selects how an offer's advance is expressed.
type AdvanceMode string

const (
	AdvanceFixed   AdvanceMode = "fixed"   // advance_value is an amount in cents
	AdvancePercent AdvanceMode = "percent" // advance_value is a whole percentage of the total
)

// CalcMode selects which side of the installment equation is fixed.
type CalcMode string

const (
	CalcByMonthlyAmount CalcMode = "monthly_amount" // fixed monthly amount, derive months
	CalcByMonths        CalcMode = "months"         // fixed months, derive monthly amount
)

// Offer is an installment plan template. Amounts are in cents.
type Offer struct {
	ID            uuid.UUID
	Name          string
	PricePerM2    int64
	AdvanceMode   AdvanceMode
	AdvanceValue  int64
	CalcMode      CalcMode
	MonthlyAmount int64
	Months        int
}

// Plan is the computed payment schedule for a given parcel surface and offer.
// Schedule holds one amount per installment; the final entry absorbs the
// rounding remainder so the schedule sums exactly to Total - AdvanceTotal.
type Plan struct {
	Total               int64
	AdvanceTotal        int64
	AdvanceAfterDeposit int64
	MonthlyAmount       int64
	Months              int
	Schedule            []int64
}

// InvalidPlanError reports an offer configuration that cannot produce a
// payable schedule. Field names the offending offer field.
type InvalidPlanError struct {
	Field  string
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: %s: %s", e.Field, e.Reason)
}

// Compute derives the payment plan for a parcel of surfaceM2 square metres
// sold under the given offer, with depositPaid already received.
//
// The function is pure: the same inputs always produce the same plan. Callers
// recompute it freely (it backs both the quote endpoint and confirmation) and
// rely on the results never drifting.
func Compute(surfaceM2 float64, offer Offer, depositPaid int64) (Plan, error) {
	if surfaceM2 <= 0 {
		return Plan{}, &InvalidPlanError{Field: "surface_m2", Reason: "must be positive"}
	}

	if offer.PricePerM2 <= 0 {
		return Plan{}, &InvalidPlanError{Field: "price_per_m2", Reason: "must be positive"}
	}

	total := roundHalfUp(surfaceM2 * float64(offer.PricePerM2))

	advance, err := advanceTotal(total, offer)
	if err != nil {
		return Plan{}, err
	}

	if advance > total {
		return Plan{}, &InvalidPlanError{Field: "advance_value", Reason: "advance exceeds sale total"}
	}

	financed := total - advance

	var (
		monthly int64
		months  int
	)

	switch offer.CalcMode {
	case CalcByMonthlyAmount:
		if offer.MonthlyAmount <= 0 {
			return Plan{}, &InvalidPlanError{Field: "monthly_amount", Reason: "must be positive"}
		}

		monthly = offer.MonthlyAmount
		months = int((financed + monthly - 1) / monthly)
	case CalcByMonths:
		if offer.Months <= 0 {
			return Plan{}, &InvalidPlanError{Field: "months", Reason: "must be positive"}
		}

		months = offer.Months
		monthly = divHalfUp(financed, int64(months))
	default:
		return Plan{}, &InvalidPlanError{Field: "calc_mode", Reason: fmt.Sprintf("unknown mode %q", offer.CalcMode)}
	}

	if months <= 0 {
		return Plan{}, &InvalidPlanError{Field: "months", Reason: "plan yields no installments"}
	}

	if monthly <= 0 {
		return Plan{}, &InvalidPlanError{Field: "monthly_amount", Reason: "plan yields a non-positive installment"}
	}

	schedule := make([]int64, months)
	for i := range schedule {
		schedule[i] = monthly
	}

	// The last installment settles whatever rounding left over. When the
	// financed amount is only a few cents the rounded monthly can overshoot
	// it, leaving a non-positive settling entry; such a plan is not payable.
	last := financed - monthly*int64(months-1)
	if last <= 0 {
		return Plan{}, &InvalidPlanError{Field: "months", Reason: "plan yields a non-positive installment"}
	}

	schedule[months-1] = last

	advanceAfterDeposit := advance - depositPaid
	if advanceAfterDeposit < 0 {
		advanceAfterDeposit = 0
	}

	return Plan{
		Total:               total,
		AdvanceTotal:        advance,
		AdvanceAfterDeposit: advanceAfterDeposit,
		MonthlyAmount:       monthly,
		Months:              months,
		Schedule:            schedule,
	}, nil
}

func advanceTotal(total int64, offer Offer) (int64, error) {
	switch offer.AdvanceMode {
	case AdvanceFixed:
		if offer.AdvanceValue < 0 {
			return 0, &InvalidPlanError{Field: "advance_value", Reason: "must not be negative"}
		}

		return offer.AdvanceValue, nil
	case AdvancePercent:
		if offer.AdvanceValue < 0 || offer.AdvanceValue > 100 {
			return 0, &InvalidPlanError{Field: "advance_value", Reason: "percentage must be between 0 and 100"}
		}

		return divHalfUp(total*offer.AdvanceValue, 100), nil
	default:
		return 0, &InvalidPlanError{Field: "advance_mode", Reason: fmt.Sprintf("unknown mode %q", offer.AdvanceMode)}
	}
}

// divHalfUp divides a by b rounding half-up, for non-negative a and positive b.
func divHalfUp(a, b int64) int64 {
	return (2*a + b) / (2 * b)
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
