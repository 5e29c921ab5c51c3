package middleware

import (
	"context"

	pkgAuth "github.com/angelmondragon/surplus-engine/pkg/auth"
)

type actorKey struct{}

// WithActor attaches the authenticated caller to ctx.
func WithActor(ctx context.Context, actor pkgAuth.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller set by Auth. ok is false for
// anonymous requests.
func ActorFromContext(ctx context.Context) (pkgAuth.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(pkgAuth.Actor)
	if !ok || actor.IsZero() || !actor.Role.IsValid() {
		return pkgAuth.Actor{}, false
	}
	return actor, true
}

// UserIDFromContext is the caller's id as a string, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.UserID.String()
	}
	return ""
}
