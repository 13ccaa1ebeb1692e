package auth

import "context"

type actorKey struct{}

// WithActor stores the authenticated user id on the context.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext returns the authenticated user id, if any.
func ActorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && id != ""
}
