// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them; keeping the
// package free of net/http lets services import only what they need.
package requestcontext

import (
	"context"
	"time"

	"custodia/pkg/domain"
)

type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Actor retrieves the authenticated actor from the context.
// Returns the zero Actor if not set (unauthenticated request).
func Actor(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorKey{}).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{}
}

// WithActor injects the authenticated actor into the context.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. All operations within a
// single request share one "now" so ledger entries and review timestamps agree.
// Falls back to time.Now() for non-HTTP contexts (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
