package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendEntry inserts one audit row. There is deliberately no update or
// delete path in this store: the table is append-only.
func (s *Store) AppendEntry(ctx context.Context, entry *audit.Entry) error {
	changes, err := marshalNullable(entry.Changes)
	if err != nil {
		return fmt.Errorf("encoding changes: %w", err)
	}

	snapshot, err := marshalNullable(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	query := `
		INSERT INTO audit_logs (entity_type, entity_id, action, actor_id, actor_name, changes, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		entry.ActorID,
		entry.ActorName,
		changes,
		snapshot,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}

	return nil
}

func (s *Store) ListEntries(ctx context.Context, entityType string, entityID uuid.UUID) ([]*audit.Entry, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, actor_name, changes, snapshot, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry

	for rows.Next() {
		var entry audit.Entry

		var actionStr string

		var changes, snapshot []byte

		if err := rows.Scan(
			&entry.ID, &entry.EntityType, &entry.EntityID, &actionStr,
			&entry.ActorID, &entry.ActorName, &changes, &snapshot, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.Action = audit.Action(actionStr)

		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &entry.Changes); err != nil {
				return nil, fmt.Errorf("decoding changes: %w", err)
			}
		}

		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &entry.Snapshot); err != nil {
				return nil, fmt.Errorf("decoding snapshot: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}

	return entries, nil
}

func marshalNullable(v any) (any, error) {
	switch m := v.(type) {
	case map[string]audit.FieldChange:
		if len(m) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(m) == 0 {
			return nil, nil
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return b, nil
}
