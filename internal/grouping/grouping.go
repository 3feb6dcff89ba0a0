// Package grouping projects flat sale rows into the client-centric
// hierarchy the confirmation view shows: client → payment plan → sales,
// with received/remaining totals per level.
//
// The projection is pure and idempotent. It never mutates its input, and
// running it twice over the same rows yields identical groups and totals.
package grouping

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/terrakit/terrakit/internal/sale"
)

// Row is one sale with its derived payment figures.
type Row struct {
	Sale        *sale.Sale
	Received    int64
	Remaining   int64
	Overdue     bool
	OverdueDays int
}

// GroupKey identifies a payment-plan sub-group within a client. Installment
// sales split further by offer so two different plans never share totals.
type GroupKey struct {
	Method  sale.PaymentMethod
	OfferID uuid.UUID // uuid.Nil unless Method is installment
}

// PlanGroup is one payment-plan bucket of a client's sales, most recent
// sale first.
type PlanGroup struct {
	Key            GroupKey
	Rows           []Row
	ReceivedTotal  int64
	RemainingTotal int64
}

// ClientGroup is all of one client's sales, partitioned by payment plan.
type ClientGroup struct {
	Client         sale.Client
	Groups         []PlanGroup
	ReceivedTotal  int64
	RemainingTotal int64
}

// Engine groups sales. The collator makes client ordering locale-aware
// instead of byte-order.
type Engine struct {
	collator *collate.Collator
}

func New(tag language.Tag) *Engine {
	return &Engine{collator: collate.New(tag, collate.IgnoreCase)}
}

// Group partitions rows by client, sub-partitions by payment plan, and
// derives the payment figures. now anchors the overdue calculation so the
// projection stays deterministic for a fixed input.
func (e *Engine) Group(sales []*sale.Sale, now time.Time) []ClientGroup {
	byClient := make(map[uuid.UUID][]*sale.Sale)

	var clientOrder []uuid.UUID

	for _, s := range sales {
		if _, seen := byClient[s.ClientID]; !seen {
			clientOrder = append(clientOrder, s.ClientID)
		}

		byClient[s.ClientID] = append(byClient[s.ClientID], s)
	}

	groups := make([]ClientGroup, 0, len(clientOrder))

	for _, clientID := range clientOrder {
		groups = append(groups, e.groupClient(byClient[clientID], now))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return e.collator.CompareString(groups[i].Client.Name, groups[j].Client.Name) < 0
	})

	return groups
}

func (e *Engine) groupClient(sales []*sale.Sale, now time.Time) ClientGroup {
	cg := ClientGroup{}
	if sales[0].Client != nil {
		cg.Client = *sales[0].Client
	} else {
		cg.Client = sale.Client{ID: sales[0].ClientID}
	}

	byPlan := make(map[GroupKey][]*sale.Sale)

	var keyOrder []GroupKey

	for _, s := range sales {
		key := keyFor(s)
		if _, seen := byPlan[key]; !seen {
			keyOrder = append(keyOrder, key)
		}

		byPlan[key] = append(byPlan[key], s)
	}

	for _, key := range keyOrder {
		pg := PlanGroup{Key: key}

		members := make([]*sale.Sale, len(byPlan[key]))
		copy(members, byPlan[key])

		sort.SliceStable(members, func(i, j int) bool {
			return members[i].SaleDate.After(members[j].SaleDate)
		})

		for _, s := range members {
			row := Derive(s, now)
			pg.Rows = append(pg.Rows, row)
			pg.ReceivedTotal += row.Received
			pg.RemainingTotal += row.Remaining
		}

		cg.Groups = append(cg.Groups, pg)
		cg.ReceivedTotal += pg.ReceivedTotal
		cg.RemainingTotal += pg.RemainingTotal
	}

	return cg
}

func keyFor(s *sale.Sale) GroupKey {
	method := s.EffectiveMethod()

	key := GroupKey{Method: method}
	if method == sale.MethodInstallment && s.OfferID != nil {
		key.OfferID = *s.OfferID
	}

	return key
}

// Derive computes the per-row payment figures. Promise sales count the
// partial payment as received (falling back to the deposit); everything else
// counts the deposit. Remaining honors an explicitly stored promise
// remainder, otherwise it is price minus received, so for non-promise sales
// received + remaining always equals the sale price.
func Derive(s *sale.Sale, now time.Time) Row {
	row := Row{Sale: s}

	if s.EffectiveMethod() == sale.MethodPromise {
		switch {
		case s.PartialPayment != nil:
			row.Received = *s.PartialPayment
		default:
			row.Received = s.Deposit
		}

		if s.RemainingPayment != nil {
			row.Remaining = *s.RemainingPayment
		} else {
			row.Remaining = s.Price - row.Received
		}
	} else {
		row.Received = s.Deposit
		row.Remaining = s.Price - s.Deposit
	}

	if s.Deadline != nil && now.After(*s.Deadline) {
		row.Overdue = true
		row.OverdueDays = int(now.Sub(*s.Deadline).Hours() / 24)
	}

	return row
}
