package sale

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/terrakit/terrakit/internal/audit"
	"github.com/terrakit/terrakit/internal/notify"
)

// EntityType is the audit entity type for sales.
const EntityType = "sale"

// AuditHook records every committed mutation in the audit trail.
// Best-effort: a failed write is logged and swallowed.
func AuditHook(recorder *audit.Service) MutationHook {
	return func(ctx context.Context, m Mutation) {
		change := audit.Change{
			EntityType: EntityType,
			Action:     audit.Action(m.Kind),
			Actor:      m.Actor,
		}

		switch {
		case m.After != nil:
			change.EntityID = m.After.ID
			change.After = Snapshot(m.After)
		case m.Before != nil:
			change.EntityID = m.Before.ID
		}

		if m.Before != nil {
			change.Before = Snapshot(m.Before)
		}

		if _, err := recorder.Record(ctx, change); err != nil {
			slog.Error("audit write failed", "entity_type", EntityType, "entity_id", change.EntityID, "error", err)
		}
	}
}

// NotifyHook tells the owners about lifecycle events. Fire-and-forget.
func NotifyHook(notifier notify.Notifier) MutationHook {
	return func(ctx context.Context, m Mutation) {
		ev, ok := notificationFor(m)
		if !ok {
			return
		}

		if err := notifier.NotifyOwners(ctx, ev); err != nil {
			slog.Warn("owner notification failed", "type", ev.Type, "subject_id", ev.SubjectID, "error", err)
		}
	}
}

func notificationFor(m Mutation) (notify.Event, bool) {
	switch m.Kind {
	case MutationCreated:
		return notify.Event{
			Type:        "sale_reserved",
			Title:       "New reservation",
			Body:        fmt.Sprintf("Parcel reserved for %s", clientName(m.After)),
			SubjectType: EntityType,
			SubjectID:   m.After.ID,
			Metadata:    map[string]any{"actor": m.Actor.Name},
		}, true
	case MutationUpdated:
		if m.Before == nil || m.After == nil || m.Before.Status == m.After.Status {
			return notify.Event{}, false
		}

		var evType, title string

		switch m.After.Status {
		case StatusCompleted:
			evType, title = "sale_confirmed", "Sale confirmed"
		case StatusCancelled:
			evType, title = "sale_cancelled", "Sale cancelled"
		case StatusPending:
			evType, title = "sale_reverted", "Sale reverted to pending"
		}

		return notify.Event{
			Type:        evType,
			Title:       title,
			Body:        fmt.Sprintf("Sale for %s moved to %s", clientName(m.After), m.After.Status),
			SubjectType: EntityType,
			SubjectID:   m.After.ID,
			Metadata:    map[string]any{"actor": m.Actor.Name},
		}, true
	case MutationDeleted:
		return notify.Event{
			Type:        "sale_removed",
			Title:       "Sale removed",
			Body:        fmt.Sprintf("Sale for %s was removed", clientName(m.Before)),
			SubjectType: EntityType,
			SubjectID:   m.Before.ID,
			Metadata:    map[string]any{"actor": m.Actor.Name},
		}, true
	}

	return notify.Event{}, false
}

func clientName(s *Sale) string {
	if s != nil && s.Client != nil {
		return s.Client.Name
	}

	return "client"
}

// Snapshot flattens a sale into the field map the audit trail stores.
// Values are JSON-scalar so diffs stay readable in the log viewer.
func Snapshot(s *Sale) map[string]any {
	m := map[string]any{
		"client_id":      s.ClientID.String(),
		"parcel_id":      s.ParcelID.String(),
		"batch_id":       s.BatchID.String(),
		"sale_price":     s.Price,
		"deposit_amount": s.Deposit,
		"payment_method": string(s.Method),
		"status":         string(s.Status),
		"sale_date":      s.SaleDate.Format(time.DateOnly),
	}

	m["payment_offer_id"] = nilOr(s.OfferID, func() any { return s.OfferID.String() })
	m["partial_payment_amount"] = nilOr(s.PartialPayment, func() any { return *s.PartialPayment })
	m["remaining_payment_amount"] = nilOr(s.RemainingPayment, func() any { return *s.RemainingPayment })
	m["company_fee_amount"] = nilOr(s.CompanyFee, func() any { return *s.CompanyFee })
	m["deadline_date"] = nilOr(s.Deadline, func() any { return s.Deadline.Format(time.DateOnly) })
	m["confirmed_by"] = nilOr(s.ConfirmedBy, func() any { return s.ConfirmedBy.String() })
	m["confirmed_at"] = nilOr(s.ConfirmedAt, func() any { return s.ConfirmedAt.Format(time.RFC3339) })

	return m
}

func nilOr[T any](ptr *T, value func() any) any {
	if ptr == nil {
		return nil
	}

	return value()
}
