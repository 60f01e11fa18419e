// Package auth issues and verifies bearer credentials, hashes passwords and
// carries a verified identity on a request context.
package auth

import "context"

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached by WithIdentity, or nil for an
// anonymous request.
func FromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok {
		return nil
	}
	return &id
}
