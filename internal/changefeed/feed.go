// Package changefeed propagates row-level change cues for the sales table to
// every interested session. Store transactions emit pg_notify inside the
// transition transaction, so cues are only delivered for committed changes;
// the listener side fans them out to in-process subscribers.
//
// Delivery is at-least-once with no ordering guarantee. Subscribers treat an
// event as a cue to re-fetch, never as an authoritative payload.
package changefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const channelName = "sales_changes"

// Event identifies a changed row. Payloads stay minimal on purpose: the
// receiver re-fetches whatever view it is showing.
type Event struct {
	Table  string    `json:"table"`
	Action string    `json:"action"`
	ID     uuid.UUID `json:"id"`
}

// Payload renders the event as the pg_notify payload.
func (e Event) Payload() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// ChannelName is the Postgres notification channel transition transactions
// publish to.
func ChannelName() string { return channelName }

// Hub fans incoming events out to subscribers. A subscriber that cannot keep
// up has its channel closed instead of blocking the hub; it is expected to
// resubscribe and re-fetch, which the at-least-once contract permits.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. The returned channel is closed when
// ctx is done or the subscriber falls too far behind.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.drop(ch)
	}()

	return ch
}

// Broadcast delivers the event to all current subscribers.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Full buffer: drop the subscriber rather than stall everyone.
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *Hub) drop(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Listener holds a dedicated connection in LISTEN mode and feeds the hub.
type Listener struct {
	connString string
	hub        *Hub
}

func NewListener(connString string, hub *Hub) *Listener {
	return &Listener{connString: connString, hub: hub}
}

// Run listens until ctx is cancelled, reconnecting with backoff on
// connection loss. Notifications that fail to decode are logged and skipped.
func (l *Listener) Run(ctx context.Context) {
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}

			slog.Error("change feed listener disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channelName); err != nil {
		return err
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal([]byte(notification.Payload), &ev); err != nil {
			slog.Warn("ignoring malformed change notification", "payload", notification.Payload, "error", err)
			continue
		}

		l.hub.Broadcast(ev)
	}
}
