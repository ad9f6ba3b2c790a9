package auth

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/lifecycle"
)

type (
	actorContextKey   struct{}
	sessionContextKey struct{}
)

// WithActor stores the authenticated actor for the rest of the request.
func WithActor(ctx context.Context, actor lifecycle.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (lifecycle.Actor, bool) {
	if ctx == nil {
		return nil, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(lifecycle.Actor)
	return actor, ok && actor != nil
}

// WithSession stores the claims of the token that authenticated the request.
func WithSession(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, claims)
}

func SessionFromContext(ctx context.Context) (*Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(sessionContextKey{}).(*Claims)
	return claims, ok && claims != nil
}
