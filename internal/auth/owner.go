// Package auth carries the authenticated owner through a request context.
// Credentials are issued and verified by an external identity provider;
// this package only transports the resulting owner id.
package auth

import "context"

type ownerKey struct{}

// WithOwner returns a copy of ctx carrying ownerID.
// An empty ownerID leaves ctx unauthenticated.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	if ownerID == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the owner id stored in ctx, if any.
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok && id != ""
}
