package grouping_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/terrakit/terrakit/internal/grouping"
	"github.com/terrakit/terrakit/internal/sale"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func i64ptr(v int64) *int64 { return &v }

func timeptr(v time.Time) *time.Time { return &v }

func newSale(clientName string, mutate func(s *sale.Sale)) *sale.Sale {
	clientID := uuid.New()
	s := &sale.Sale{
		ID:       uuid.New(),
		ClientID: clientID,
		ParcelID: uuid.New(),
		BatchID:  uuid.New(),
		Price:    10000000, // 100 000.00
		Deposit:  2000000,  // 20 000.00
		Method:   sale.MethodFull,
		Status:   sale.StatusPending,
		SaleDate: now.AddDate(0, -1, 0),
		Client:   &sale.Client{ID: clientID, Name: clientName},
	}

	if mutate != nil {
		mutate(s)
	}

	return s
}

func TestDerive(t *testing.T) {
	type testCase struct {
		name            string
		sale            *sale.Sale
		wantReceived    int64
		wantRemaining   int64
		wantOverdue     bool
		wantOverdueDays int
	}

	tests := []testCase{
		{
			name:          "FullPayment",
			sale:          newSale("Ana", nil),
			wantReceived:  2000000,
			wantRemaining: 8000000,
		},
		{
			name: "PromiseUsesPartialPayment",
			sale: newSale("Ana", func(s *sale.Sale) {
				s.Method = sale.MethodPromise
				s.PartialPayment = i64ptr(1500000)
				s.RemainingPayment = i64ptr(8500000)
			}),
			wantReceived:  1500000,
			wantRemaining: 8500000,
		},
		{
			name: "PromiseFallsBackToDeposit",
			sale: newSale("Ana", func(s *sale.Sale) {
				s.Method = sale.MethodPromise
			}),
			wantReceived:  2000000,
			wantRemaining: 8000000,
		},
		{
			name: "InstallmentUsesDeposit",
			sale: newSale("Ana", func(s *sale.Sale) {
				s.Method = sale.MethodInstallment
				offerID := uuid.New()
				s.OfferID = &offerID
			}),
			wantReceived:  2000000,
			wantRemaining: 8000000,
		},
		{
			name: "OverdueDeadline",
			sale: newSale("Ana", func(s *sale.Sale) {
				s.Deadline = timeptr(now.AddDate(0, 0, -10))
			}),
			wantReceived:    2000000,
			wantRemaining:   8000000,
			wantOverdue:     true,
			wantOverdueDays: 10,
		},
		{
			name: "FutureDeadlineNotOverdue",
			sale: newSale("Ana", func(s *sale.Sale) {
				s.Deadline = timeptr(now.AddDate(0, 0, 5))
			}),
			wantReceived:  2000000,
			wantRemaining: 8000000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := grouping.Derive(tt.sale, now)

			assert.Equal(t, tt.wantReceived, row.Received)
			assert.Equal(t, tt.wantRemaining, row.Remaining)
			assert.Equal(t, tt.wantOverdue, row.Overdue)
			assert.Equal(t, tt.wantOverdueDays, row.OverdueDays)
		})
	}
}

func TestDerive_ConservationForNonPromise(t *testing.T) {
	for _, deposit := range []int64{0, 1, 999999, 10000000} {
		s := newSale("Ana", func(s *sale.Sale) { s.Deposit = deposit })
		row := grouping.Derive(s, now)

		assert.Equal(t, s.Price, row.Received+row.Remaining)
	}
}

func TestEngine_Group_ClientsOrderedByCollatedName(t *testing.T) {
	engine := grouping.New(language.Und)

	sales := []*sale.Sale{
		newSale("Zacarias", nil),
		newSale("Álvaro", nil),
		newSale("beatriz", nil),
	}

	groups := engine.Group(sales, now)

	require.Len(t, groups, 3)
	// Byte order would put "Álvaro" last; collation slots it first and
	// compares case-insensitively.
	assert.Equal(t, "Álvaro", groups[0].Client.Name)
	assert.Equal(t, "beatriz", groups[1].Client.Name)
	assert.Equal(t, "Zacarias", groups[2].Client.Name)
}

func TestEngine_Group_SubGroupsByPlan(t *testing.T) {
	engine := grouping.New(language.Und)

	clientID := uuid.New()
	client := &sale.Client{ID: clientID, Name: "Carla"}

	offerA := uuid.New()
	offerB := uuid.New()

	withClient := func(mutate func(s *sale.Sale)) *sale.Sale {
		return newSale("Carla", func(s *sale.Sale) {
			s.ClientID = clientID
			s.Client = client

			mutate(s)
		})
	}

	sales := []*sale.Sale{
		withClient(func(s *sale.Sale) {
			s.Method = sale.MethodInstallment
			s.OfferID = &offerA
		}),
		withClient(func(s *sale.Sale) {
			s.Method = sale.MethodInstallment
			s.OfferID = &offerB
		}),
		withClient(func(s *sale.Sale) { s.Method = sale.MethodFull }),
		withClient(func(s *sale.Sale) {
			// Legacy row: no stored method, but offer-linked. Groups with
			// the other offerA installments.
			s.Method = ""
			s.OfferID = &offerA
		}),
	}

	groups := engine.Group(sales, now)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Groups, 3)

	sizes := make(map[grouping.GroupKey]int)
	for _, pg := range groups[0].Groups {
		sizes[pg.Key] = len(pg.Rows)
	}

	assert.Equal(t, 2, sizes[grouping.GroupKey{Method: sale.MethodInstallment, OfferID: offerA}])
	assert.Equal(t, 1, sizes[grouping.GroupKey{Method: sale.MethodInstallment, OfferID: offerB}])
	assert.Equal(t, 1, sizes[grouping.GroupKey{Method: sale.MethodFull}])
}

func TestEngine_Group_SalesSortedMostRecentFirst(t *testing.T) {
	engine := grouping.New(language.Und)

	clientID := uuid.New()
	client := &sale.Client{ID: clientID, Name: "Dora"}

	old := newSale("Dora", func(s *sale.Sale) {
		s.ClientID = clientID
		s.Client = client
		s.SaleDate = now.AddDate(0, -6, 0)
	})
	recent := newSale("Dora", func(s *sale.Sale) {
		s.ClientID = clientID
		s.Client = client
		s.SaleDate = now.AddDate(0, 0, -2)
	})

	groups := engine.Group([]*sale.Sale{old, recent}, now)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Groups, 1)

	rows := groups[0].Groups[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, recent.ID, rows[0].Sale.ID)
	assert.Equal(t, old.ID, rows[1].Sale.ID)
}

func TestEngine_Group_Totals(t *testing.T) {
	engine := grouping.New(language.Und)

	clientID := uuid.New()
	client := &sale.Client{ID: clientID, Name: "Elias"}

	first := newSale("Elias", func(s *sale.Sale) {
		s.ClientID = clientID
		s.Client = client
		s.Deposit = 1000000
	})
	second := newSale("Elias", func(s *sale.Sale) {
		s.ClientID = clientID
		s.Client = client
		s.Deposit = 3000000
	})

	groups := engine.Group([]*sale.Sale{first, second}, now)

	require.Len(t, groups, 1)
	assert.Equal(t, int64(4000000), groups[0].ReceivedTotal)
	assert.Equal(t, int64(16000000), groups[0].RemainingTotal)
}

func TestEngine_Group_Idempotent(t *testing.T) {
	engine := grouping.New(language.Und)

	offerID := uuid.New()
	sales := []*sale.Sale{
		newSale("Zacarias", nil),
		newSale("Ana", func(s *sale.Sale) {
			s.Method = sale.MethodPromise
			s.PartialPayment = i64ptr(500000)
		}),
		newSale("Ana", func(s *sale.Sale) {
			s.Method = sale.MethodInstallment
			s.OfferID = &offerID
			s.Deadline = timeptr(now.AddDate(0, 0, -3))
		}),
	}

	first := engine.Group(sales, now)
	second := engine.Group(sales, now)

	assert.Equal(t, first, second)
}
