// Package requestid correlates the log lines and backend calls made on
// behalf of a single API request. The id is minted (or adopted from the
// caller) by the HTTP middleware and rides the request context into every
// downstream persistence call.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header the id travels in, both inbound from API
// callers and outbound to the persistence backend.
const Header = "X-Request-ID"

type ctxKey struct{}

// With returns a context carrying the given request id.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From extracts the request id, or "" when the context carries none.
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure returns a context guaranteed to carry a request id, minting a
// fresh uuid when the caller did not supply one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := From(ctx); id != "" {
		return ctx, id
	}
	id := uuid.New().String()
	return With(ctx, id), id
}
