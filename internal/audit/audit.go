package audit

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Action is what happened to the subject entity.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// FieldChange is one field's before/after pair inside an update entry.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Entry is one append-only audit record. Entries reference their subject but
// never own it: they survive the subject's deletion, and nothing ever
// updates or removes them.
type Entry struct {
	ID         uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     Action
	ActorID    uuid.UUID
	ActorName  string

	// Changes holds the per-field diff for updates. Created and deleted
	// entries carry the full payload in Snapshot instead.
	Changes  map[string]FieldChange
	Snapshot map[string]any

	CreatedAt time.Time
}

// Diff returns the fields whose values differ between the two snapshots,
// keyed by field name. Fields present in only one snapshot count as changed.
func Diff(before, after map[string]any) map[string]FieldChange {
	changes := make(map[string]FieldChange)

	for key, oldVal := range before {
		newVal, ok := after[key]
		if !ok {
			changes[key] = FieldChange{Old: oldVal, New: nil}
			continue
		}

		if !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = FieldChange{Old: oldVal, New: newVal}
		}
	}

	for key, newVal := range after {
		if _, ok := before[key]; !ok {
			changes[key] = FieldChange{Old: nil, New: newVal}
		}
	}

	return changes
}
