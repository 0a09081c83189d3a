package shared

import "context"

// Role distinguishes buyers from staff.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
)

// Actor is the authenticated caller of an engine operation. A nil *Actor
// means an anonymous request.
type Actor struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}

// IsStaff reports whether the actor carries the staff role.
func (a *Actor) IsStaff() bool {
	return a != nil && a.Role == RoleStaff
}

// IsUser reports whether the actor is a registered (non-anonymous) caller.
func (a *Actor) IsUser() bool {
	return a != nil && a.UserID != ""
}

// DisplayName returns the actor's name, falling back to the given default.
func (a *Actor) DisplayName(fallback string) string {
	if a == nil || a.Name == "" {
		return fallback
	}
	return a.Name
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context; nil when anonymous.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
