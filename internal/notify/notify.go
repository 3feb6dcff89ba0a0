// Package notify pushes owner-facing notifications about sale activity.
// Delivery is fire-and-forget: the domain transition has already committed
// by the time a notification goes out, so failures are logged and dropped.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Event is one owner notification.
type Event struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	SubjectType string         `json:"subject_type"`
	SubjectID   uuid.UUID      `json:"subject_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type Notifier interface {
	NotifyOwners(ctx context.Context, ev Event) error
}

// Webhook posts events to the push-delivery service.
type Webhook struct {
	client *http.Client
	url    string
	token  string
}

func NewWebhook(url, token string) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		token:  token,
	}
}

func (w *Webhook) NotifyOwners(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected: status %d", resp.StatusCode)
	}

	return nil
}

// Noop discards every notification. Used when no webhook is configured and
// in tests.
type Noop struct{}

func (Noop) NotifyOwners(context.Context, Event) error { return nil }
