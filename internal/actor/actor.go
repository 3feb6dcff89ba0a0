// Package actor identifies the staff member behind a request. The auth
// middleware resolves it from the bearer token; services use it for
// provenance fields and the audit trail.
package actor

import (
	"context"

	"github.com/google/uuid"
)

// Role controls access to privileged operations.
type Role string

const (
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
)

type Actor struct {
	ID   uuid.UUID
	Name string
	Role Role
}

func (a Actor) IsOwner() bool {
	return a.Role == RoleOwner
}

type contextKey struct{}

func WithContext(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor attached to the request, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
