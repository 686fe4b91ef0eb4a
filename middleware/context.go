package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/teftar/api/jwtauth"
)

// Context key type to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the verified caller
	IdentityKey contextKey = "identity"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// WithIdentity attaches a verified identity to the context. The identity is
// stored by value so handlers only ever see a copy.
func WithIdentity(ctx context.Context, identity jwtauth.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// IdentityFromContext retrieves the verified identity. ok is false outside a
// route guarded by RequireAuth.
func IdentityFromContext(ctx context.Context) (jwtauth.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(jwtauth.Identity)
	return identity, ok
}

// GetUserIDFromContext returns the verified caller's user ID, or uuid.Nil
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	if identity, ok := IdentityFromContext(ctx); ok {
		return identity.UserID
	}
	return uuid.Nil
}
