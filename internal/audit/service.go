package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/actor"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=audit
type Repository interface {
	AppendEntry(ctx context.Context, entry *Entry) error
	ListEntries(ctx context.Context, entityType string, entityID uuid.UUID) ([]*Entry, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Change describes a domain mutation to record. For updates both Before and
// After are set and only the differing fields are stored; for created and
// deleted exactly one side is set and stored whole.
type Change struct {
	EntityType string
	EntityID   uuid.UUID
	Action     Action
	Actor      actor.Actor
	Before     map[string]any
	After      map[string]any
}

// Record appends one audit entry. Callers on the domain-mutation path treat
// a returned error as best-effort: log it and carry on, since losing an
// audit row must never undo a committed transition.
func (s *Service) Record(ctx context.Context, change Change) (*Entry, error) {
	entry := &Entry{
		EntityType: change.EntityType,
		EntityID:   change.EntityID,
		Action:     change.Action,
		ActorID:    change.Actor.ID,
		ActorName:  change.Actor.Name,
	}

	switch change.Action {
	case ActionCreated:
		entry.Snapshot = change.After
	case ActionDeleted:
		entry.Snapshot = change.Before
	case ActionUpdated:
		entry.Changes = Diff(change.Before, change.After)
		if len(entry.Changes) == 0 {
			// Nothing actually changed; no entry to write.
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("unknown audit action %q", change.Action)
	}

	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("appending audit entry: %w", err)
	}

	return entry, nil
}

// List returns the audit trail for one entity, newest first.
func (s *Service) List(ctx context.Context, entityType string, entityID uuid.UUID) ([]*Entry, error) {
	return s.repo.ListEntries(ctx, entityType, entityID)
}
