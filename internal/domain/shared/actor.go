package shared

import (
	"context"

	"github.com/google/uuid"
)

// ActorKind distinguishes human principals from the reserved system principal.
type ActorKind string

const (
	ActorKindUser   ActorKind = "user"
	ActorKindSystem ActorKind = "system"
)

// Actor is the principal on whose behalf an operation runs. Every write
// operation receives one; it ends up in CreatedBy/LastModifiedBy.
type Actor struct {
	ID   uuid.UUID
	Kind ActorKind
}

// SystemActor is the reserved principal used by schedulers and sweeps.
var SystemActor = Actor{ID: uuid.Nil, Kind: ActorKindSystem}

// NewUserActor returns an actor for an authenticated user.
func NewUserActor(id uuid.UUID) Actor {
	return Actor{ID: id, Kind: ActorKindUser}
}

// IsSystem reports whether a is the reserved system principal.
func (a Actor) IsSystem() bool {
	return a.Kind == ActorKindSystem
}

// Validate rejects zero-value actors and user actors without an ID.
func (a Actor) Validate() error {
	switch a.Kind {
	case ActorKindSystem:
		return nil
	case ActorKindUser:
		if a.ID == uuid.Nil {
			return NewMissingFieldError("actor id")
		}
		return nil
	default:
		return NewMissingFieldError("actor")
	}
}

// String returns the actor as "<kind>:<id>", used in logs.
func (a Actor) String() string {
	if a.IsSystem() {
		return string(ActorKindSystem)
	}
	return string(a.Kind) + ":" + a.ID.String()
}

// RecordID returns the ID persisted in audit columns, nil for the system actor.
func (a Actor) RecordID() *uuid.UUID {
	if a.IsSystem() {
		return nil
	}
	id := a.ID
	return &id
}

type actorKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored in ctx, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
